// Package config loads and validates ontosync configuration from defaults,
// an optional TOML config file, and ONTOSYNC_* environment overrides.
//
// Configuration errors are fatal at startup: a run never begins against a
// half-validated configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Run modes.
const (
	// ModeFull reloads every term from the remote catalog.
	ModeFull = "full"
	// ModeIncremental skips terms whose content fingerprint is unchanged.
	ModeIncremental = "incremental"
	// ModeTest behaves like full but caps the number of fetched records.
	ModeTest = "test"
)

// Policies for parent references that exhaust resolution retries.
const (
	// UnresolvedWarn drops the reference with a logged warning (default).
	UnresolvedWarn = "warn"
	// UnresolvedFail promotes resolver exhaustion to a run-fatal error.
	UnresolvedFail = "fail"
)

// Config is the complete runtime configuration for a sync run.
type Config struct {
	Mode               string        `mapstructure:"mode"`
	BatchSize          int           `mapstructure:"batch_size"`
	RecordLimit        int           `mapstructure:"record_limit"`
	RequestDelay       time.Duration `mapstructure:"request_delay"`
	MaxResolveWorkers  int           `mapstructure:"max_resolve_workers"`
	OnUnresolvedParent string        `mapstructure:"on_unresolved_parent"`

	Source    SourceConfig    `mapstructure:"source"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// SourceConfig identifies the remote term catalog.
type SourceConfig struct {
	ID      string `mapstructure:"id"`
	BaseURL string `mapstructure:"base_url"`
	// PageSize is the number of terms requested per page.
	PageSize int `mapstructure:"page_size"`
	// CatalogFile optionally points at a sources.toml whose entry for ID
	// overrides BaseURL, PageSize, and XrefNamespaces.
	CatalogFile string `mapstructure:"catalog_file"`
	// XrefNamespaces are the database tags accepted when extracting
	// cross-references from raw terms.
	XrefNamespaces []string `mapstructure:"xref_namespaces"`
}

// StoreConfig selects and addresses the relational store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres". Empty means detect from DSN.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LogConfig controls optional rotating file output. Logging always goes to
// stderr; a non-empty File adds a rotating copy.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DaemonConfig controls the periodic sync daemon.
type DaemonConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// DashboardConfig controls the monitoring WebSocket/metrics server.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Default returns the built-in configuration, matching a conservative test
// run against the public EFO catalog.
func Default() *Config {
	return &Config{
		Mode:               ModeTest,
		BatchSize:          250,
		RecordLimit:        100,
		RequestDelay:       100 * time.Millisecond,
		MaxResolveWorkers:  50,
		OnUnresolvedParent: UnresolvedWarn,
		Source: SourceConfig{
			ID:             "efo",
			BaseURL:        "https://www.ebi.ac.uk/ols4/api",
			PageSize:       20,
			XrefNamespaces: []string{"MSH", "MeSH", "MESH"},
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    ".ontosync/ontosync.db",
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Daemon: DaemonConfig{
			Interval: 15 * time.Minute,
		},
		Dashboard: DashboardConfig{
			Enabled: false,
			Port:    8080,
		},
	}
}

// Load reads configuration from the given file path (or searches the working
// directory for ontosync.toml when path is empty), applies ONTOSYNC_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ONTOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("ontosync")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// No config file is fine; defaults and env apply.
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Source.CatalogFile != "" {
		catalog, err := LoadCatalog(cfg.Source.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load source catalog: %w", err)
		}
		if err := cfg.ApplyCatalog(catalog); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("mode", def.Mode)
	v.SetDefault("batch_size", def.BatchSize)
	v.SetDefault("record_limit", def.RecordLimit)
	v.SetDefault("request_delay", def.RequestDelay)
	v.SetDefault("max_resolve_workers", def.MaxResolveWorkers)
	v.SetDefault("on_unresolved_parent", def.OnUnresolvedParent)
	v.SetDefault("source.id", def.Source.ID)
	v.SetDefault("source.base_url", def.Source.BaseURL)
	v.SetDefault("source.page_size", def.Source.PageSize)
	v.SetDefault("source.catalog_file", def.Source.CatalogFile)
	v.SetDefault("source.xref_namespaces", def.Source.XrefNamespaces)
	v.SetDefault("store.driver", def.Store.Driver)
	v.SetDefault("store.dsn", def.Store.DSN)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("daemon.interval", def.Daemon.Interval)
	v.SetDefault("dashboard.enabled", def.Dashboard.Enabled)
	v.SetDefault("dashboard.port", def.Dashboard.Port)
}

// Validate checks every field that a run depends on. Any error here aborts
// startup before network or store activity begins.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFull, ModeIncremental, ModeTest:
	default:
		return fmt.Errorf("invalid mode %q: must be full, incremental, or test", c.Mode)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.RecordLimit < 0 {
		return fmt.Errorf("record_limit cannot be negative, got %d", c.RecordLimit)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request_delay cannot be negative, got %s", c.RequestDelay)
	}
	if c.MaxResolveWorkers < 1 {
		return fmt.Errorf("max_resolve_workers must be at least 1, got %d", c.MaxResolveWorkers)
	}

	switch c.OnUnresolvedParent {
	case UnresolvedWarn, UnresolvedFail:
	default:
		return fmt.Errorf("invalid on_unresolved_parent %q: must be warn or fail", c.OnUnresolvedParent)
	}

	if c.Source.ID == "" {
		return fmt.Errorf("source.id is required")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Source.PageSize < 1 {
		return fmt.Errorf("source.page_size must be at least 1, got %d", c.Source.PageSize)
	}

	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}

	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("log.max_size_mb cannot be negative, got %d", c.Log.MaxSizeMB)
	}
	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups cannot be negative, got %d", c.Log.MaxBackups)
	}

	if c.Daemon.Interval <= 0 {
		return fmt.Errorf("daemon.interval must be positive, got %s", c.Daemon.Interval)
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port < 1 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be in 1-65535, got %d", c.Dashboard.Port)
	}

	return nil
}
