package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ontodb/ontosync/internal/config"
	"github.com/ontodb/ontosync/internal/daemon"
	"github.com/ontodb/ontosync/internal/dashboard"
	"github.com/ontodb/ontosync/internal/ols"
	"github.com/ontodb/ontosync/internal/pipeline"
	"github.com/ontodb/ontosync/internal/store"
	"github.com/ontodb/ontosync/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Run the periodic sync daemon, optionally with the web dashboard",
	Long: `Run ontosync in the foreground as a long-lived service.

The daemon syncs the configured catalog on a fixed interval and watches the
config file, reloading sync settings without a restart. Store DSN changes
still require a restart.

With dashboard.enabled in config (or --dashboard / --port on the command
line) it also serves:
  - A WebSocket feed of sync progress at /ws
  - Current store stats at /api/status
  - Prometheus metrics at /metrics

Example usage:
  ontosync serve                      # Daemon only
  ontosync serve --port 9000          # Daemon plus dashboard on port 9000
  ontosync serve --interval 5m`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if on, _ := cmd.Flags().GetBool("dashboard"); on {
			cfg.Dashboard.Enabled = true
		}
		if cmd.Flags().Changed("port") {
			port, _ := cmd.Flags().GetInt("port")
			cfg.Dashboard.Enabled = true
			cfg.Dashboard.Port = port
		}
		if cmd.Flags().Changed("interval") {
			interval, _ := cmd.Flags().GetDuration("interval")
			cfg.Daemon.Interval = interval
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger(cfg, "[serve] ")

		st, err := openStore(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		// The dashboard is optional; the daemon runs either way
		var server *dashboard.Server
		var handler *dashboard.Handler
		if cfg.Dashboard.Enabled {
			server = dashboard.NewServer(st, &dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: logger,
			})
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			handler = dashboard.NewHandler(server, logger)
		}

		var engineMu sync.Mutex
		engine := buildEngine(cfg, st, logger, handler)

		// Watch the default config file if none was named explicitly
		if configPath == "" {
			if _, err := os.Stat("ontosync.toml"); err == nil {
				configPath = "ontosync.toml"
			}
		}

		d, err := daemon.New(func(ctx context.Context) error {
			engineMu.Lock()
			e := engine
			engineMu.Unlock()
			_, err := e.Run(ctx)
			return err
		}, &daemon.Config{
			SyncInterval: cfg.Daemon.Interval,
			ConfigPath:   configPath,
			RunOnStart:   true,
			Logger:       logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		dsn := cfg.Store.DSN
		d.OnReload(func() error {
			next, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := next.Validate(); err != nil {
				return err
			}
			if next.Store.DSN != dsn {
				logger.Printf("Warning: store.dsn changed in config, restart to apply")
			}
			engineMu.Lock()
			engine = buildEngine(next, st, logger, handler)
			engineMu.Unlock()
			return nil
		})

		// Seed dashboard gauges before the first scheduled sync lands
		if handler != nil {
			statsCtx, cancelStats := context.WithTimeout(context.Background(), 5*time.Second)
			handler.RefreshStats(statsCtx)
			cancelStats()
		}

		fmt.Printf("%s Starting sync daemon (every %v)...\n", ui.RenderAccent("🚀"), cfg.Daemon.Interval)
		fmt.Printf("   Source: %s (%s)\n", cfg.Source.ID, cfg.Source.BaseURL)
		fmt.Printf("   Store: %s\n", cfg.Store.DSN)
		if server != nil {
			fmt.Printf("   Dashboard: http://localhost:%d\n", cfg.Dashboard.Port)
			fmt.Printf("   WebSocket: ws://localhost:%d/ws\n", cfg.Dashboard.Port)
			fmt.Printf("   Metrics: http://localhost:%d/metrics\n", cfg.Dashboard.Port)
		}
		if configPath != "" {
			fmt.Printf("   Watching config: %s\n", configPath)
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Start daemon (this blocks until the context is cancelled)
		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			os.Exit(1)
		}

		if server != nil {
			fmt.Println("\nShutting down dashboard...")
			if err := server.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
				os.Exit(1)
			}
		}
		fmt.Println("Daemon stopped")
	},
}

// buildEngine wires a sync engine from the given config. The daemon never
// runs capped test syncs; a test-mode config degrades to incremental.
func buildEngine(cfg *config.Config, st store.Store, logger *log.Logger, handler *dashboard.Handler) *pipeline.Engine {
	runCfg := *cfg
	if runCfg.Mode == config.ModeTest {
		runCfg.Mode = config.ModeIncremental
	}

	client := ols.NewClient(ols.ClientConfig{
		BaseURL:           runCfg.Source.BaseURL,
		OntologyID:        runCfg.Source.ID,
		PageSize:          runCfg.Source.PageSize,
		RequestDelay:      runCfg.RequestDelay,
		MaxResolveWorkers: runCfg.MaxResolveWorkers,
		Logger:            logger,
	})

	engine := pipeline.New(&runCfg, client, st, logger)
	if handler != nil {
		engine.OnEvent(handler.HandleEvent)
	}
	return engine
}

func init() {
	serveCmd.Flags().Bool("dashboard", false, "Serve the web dashboard even if disabled in config")
	serveCmd.Flags().IntP("port", "p", 8080, "Dashboard port (implies --dashboard)")
	serveCmd.Flags().Duration("interval", 0, "Sync interval (default: from config)")
	rootCmd.AddCommand(serveCmd)
}
