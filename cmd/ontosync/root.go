package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ontodb/ontosync/internal/config"
	"github.com/ontodb/ontosync/internal/store"
	_ "github.com/ontodb/ontosync/internal/store/postgres"
	_ "github.com/ontodb/ontosync/internal/store/sqlite"
)

var version = "0.4.0"

var rootCmd = &cobra.Command{
	Use:   "ontosync",
	Short: "Sync ontology terms from an OLS catalog into a local store",
	Long: `ontosync mirrors an ontology from an OLS-style terminology catalog into a
local database for fast offline queries.

It fetches terms page by page, fingerprints their content, and writes only
what changed. The store keeps the term hierarchy, cross-references to other
vocabularies, and a history of every sync execution.

Quick start:
  ontosync db init               # Create the store
  ontosync sync --mode full      # Mirror the whole ontology
  ontosync status                # Inspect what was synced

Configuration is read from ontosync.toml in the current directory (or the
file given with --config), with ONTOSYNC_* environment variables taking
precedence.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: ./ontosync.toml)")
	rootCmd.PersistentFlags().String("db", "", "Store DSN override (sqlite path or postgres:// URL)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "data", Title: "Data Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

// loadConfig reads the configuration for the current invocation and applies
// persistent flag overrides on top of file and environment values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dsn, _ := cmd.Flags().GetString("db"); dsn != "" {
		cfg.Store.DSN = dsn
		cfg.Store.Driver = store.DetectDriver(dsn)
	}
	return cfg, nil
}

// newLogger builds the process logger. Output always goes to stderr; when a
// log file is configured a rotating copy is written there too.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	w := io.Writer(os.Stderr)
	if cfg.Log.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}
	return log.New(w, prefix, log.LstdFlags)
}

// openStore opens the configured backend and makes sure the schema exists.
// The caller owns the returned store and must Close it.
func openStore(cfg *config.Config, logger *log.Logger) (store.Store, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN, logger)
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return st, nil
}
