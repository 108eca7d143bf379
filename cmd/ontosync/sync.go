package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ontodb/ontosync/internal/ols"
	"github.com/ontodb/ontosync/internal/pipeline"
	"github.com/ontodb/ontosync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Sync ontology terms from the catalog into the store",
	Long: `Fetch terms from the configured catalog and write them to the store.

Modes:
  full          Fetch every page and upsert all terms
  incremental   Fetch every page but skip terms whose fingerprint is unchanged
  test          Like incremental, capped at record_limit terms

Each run is recorded in the execution history with its counts and the
source version reported by the catalog.

Example usage:
  ontosync sync                      # Use the mode from config
  ontosync sync --mode full          # Force a full mirror
  ontosync sync --mode test --limit 50`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
			cfg.Mode = mode
		}
		if cmd.Flags().Changed("limit") {
			limit, _ := cmd.Flags().GetInt("limit")
			cfg.RecordLimit = limit
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger(cfg, "[ontosync] ")

		st, err := openStore(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		client := ols.NewClient(ols.ClientConfig{
			BaseURL:           cfg.Source.BaseURL,
			OntologyID:        cfg.Source.ID,
			PageSize:          cfg.Source.PageSize,
			RequestDelay:      cfg.RequestDelay,
			MaxResolveWorkers: cfg.MaxResolveWorkers,
			Logger:            logger,
		})
		engine := pipeline.New(cfg, client, st, logger)

		// Ctrl+C cancels the run; the engine records the aborted execution
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Syncing %s from %s (%s mode)...\n",
			ui.RenderAccent("🔄"), cfg.Source.ID, cfg.Source.BaseURL, cfg.Mode)
		start := time.Now()

		res, err := engine.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		elapsed := time.Since(start)
		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), elapsed.Round(time.Millisecond))
		fmt.Printf("   Fetched: %d\n", res.TermsFetched)
		fmt.Printf("   Inserted: %d\n", res.TermsInserted)
		fmt.Printf("   Updated: %d\n", res.TermsUpdated)
		fmt.Printf("   Unchanged: %d\n", res.TermsUnchanged)
		if res.TermsSkipped > 0 {
			fmt.Printf("   %s Skipped: %d (see log for details)\n", ui.RenderWarn("⚠"), res.TermsSkipped)
		}
		fmt.Printf("   Relations: %d inserted, %d skipped\n", res.RelationsInserted, res.RelationsSkipped)
		fmt.Printf("   XRefs: %d\n", res.XRefsInserted)
		if res.ParentRefsFailed > 0 {
			fmt.Printf("   %s Unresolved parents: %d\n", ui.RenderWarn("⚠"), res.ParentRefsFailed)
		}
		if res.SourceVersion != "" {
			fmt.Printf("   Source version: %s\n", res.SourceVersion)
		}
	},
}

func init() {
	syncCmd.Flags().StringP("mode", "m", "", "Sync mode: full, incremental, or test (default: from config)")
	syncCmd.Flags().Int("limit", 0, "Max terms to fetch in test mode (default: from config)")
	rootCmd.AddCommand(syncCmd)
}
