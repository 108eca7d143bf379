package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Mode != ModeTest {
		t.Errorf("expected default mode %q, got %q", ModeTest, cfg.Mode)
	}
	if cfg.BatchSize != 250 {
		t.Errorf("expected default batch_size 250, got %d", cfg.BatchSize)
	}
	if cfg.MaxResolveWorkers != 50 {
		t.Errorf("expected default max_resolve_workers 50, got %d", cfg.MaxResolveWorkers)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	// Run from a temp dir so a stray ontosync.toml cannot leak in.
	restore := chdir(t, t.TempDir())
	defer restore()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without file failed: %v", err)
	}
	if cfg.Source.ID != "efo" {
		t.Errorf("expected default source id efo, got %q", cfg.Source.ID)
	}
	if cfg.RequestDelay != 100*time.Millisecond {
		t.Errorf("expected default request_delay 100ms, got %s", cfg.RequestDelay)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ontosync.toml")
	content := `
mode = "incremental"
batch_size = 50
request_delay = "250ms"

[source]
id = "efo"
page_size = 100

[store]
driver = "sqlite"
dsn = "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mode != ModeIncremental {
		t.Errorf("expected mode incremental, got %q", cfg.Mode)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("expected batch_size 50, got %d", cfg.BatchSize)
	}
	if cfg.RequestDelay != 250*time.Millisecond {
		t.Errorf("expected request_delay 250ms, got %s", cfg.RequestDelay)
	}
	if cfg.Source.PageSize != 100 {
		t.Errorf("expected page_size 100, got %d", cfg.Source.PageSize)
	}
	// Unset fields keep defaults.
	if cfg.MaxResolveWorkers != 50 {
		t.Errorf("expected default max_resolve_workers, got %d", cfg.MaxResolveWorkers)
	}
}

func TestEnvOverride(t *testing.T) {
	restore := chdir(t, t.TempDir())
	defer restore()

	t.Setenv("ONTOSYNC_MODE", "full")
	t.Setenv("ONTOSYNC_BATCH_SIZE", "10")
	t.Setenv("ONTOSYNC_STORE_DSN", "/tmp/override.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mode != ModeFull {
		t.Errorf("expected env mode full, got %q", cfg.Mode)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("expected env batch_size 10, got %d", cfg.BatchSize)
	}
	if cfg.Store.DSN != "/tmp/override.db" {
		t.Errorf("expected env store dsn, got %q", cfg.Store.DSN)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "hourly" }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative batch size", func(c *Config) { c.BatchSize = -5 }},
		{"negative record limit", func(c *Config) { c.RecordLimit = -1 }},
		{"negative delay", func(c *Config) { c.RequestDelay = -time.Second }},
		{"zero workers", func(c *Config) { c.MaxResolveWorkers = 0 }},
		{"bad unresolved policy", func(c *Config) { c.OnUnresolvedParent = "ignore" }},
		{"empty source id", func(c *Config) { c.Source.ID = "" }},
		{"empty base url", func(c *Config) { c.Source.BaseURL = "" }},
		{"zero page size", func(c *Config) { c.Source.PageSize = 0 }},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }},
		{"zero daemon interval", func(c *Config) { c.Daemon.Interval = 0 }},
		{"bad dashboard port", func(c *Config) { c.Dashboard.Enabled = true; c.Dashboard.Port = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.toml")
	content := `
[[source]]
id = "efo"
label = "Experimental Factor Ontology"
base_url = "https://ols.example.org/api"
page_size = 500
xref_namespaces = ["MSH"]

[[source]]
id = "mondo"
label = "Mondo Disease Ontology"
base_url = "https://ols.example.org/api"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(catalog.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(catalog.Sources))
	}

	src, ok := catalog.Lookup("efo")
	if !ok {
		t.Fatal("expected to find efo in catalog")
	}
	if src.PageSize != 500 {
		t.Errorf("expected page_size 500, got %d", src.PageSize)
	}

	if _, ok := catalog.Lookup("hp"); ok {
		t.Error("expected hp lookup to miss")
	}

	cfg := Default()
	if err := cfg.ApplyCatalog(catalog); err != nil {
		t.Fatalf("ApplyCatalog failed: %v", err)
	}
	if cfg.Source.BaseURL != "https://ols.example.org/api" {
		t.Errorf("expected catalog base_url applied, got %q", cfg.Source.BaseURL)
	}
	if cfg.Source.PageSize != 500 {
		t.Errorf("expected catalog page_size applied, got %d", cfg.Source.PageSize)
	}

	cfg.Source.ID = "missing"
	if err := cfg.ApplyCatalog(catalog); err == nil {
		t.Error("expected error applying catalog with unknown source id")
	}
}

func TestLoadCatalogRejections(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		return path
	}

	empty := write("empty.toml", "# no sources\n")
	if _, err := LoadCatalog(empty); err == nil {
		t.Error("expected error for empty catalog")
	}

	noID := write("noid.toml", "[[source]]\nbase_url = \"https://x\"\n")
	if _, err := LoadCatalog(noID); err == nil {
		t.Error("expected error for source without id")
	}

	dup := write("dup.toml", `
[[source]]
id = "efo"
base_url = "https://a"

[[source]]
id = "efo"
base_url = "https://b"
`)
	if _, err := LoadCatalog(dup); err == nil {
		t.Error("expected error for duplicate source id")
	}
}

// chdir switches the working directory for a test and returns the restore
// function.
func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	return func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	}
}
