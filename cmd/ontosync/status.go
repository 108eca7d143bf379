package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ontodb/ontosync/internal/store"
	"github.com/ontodb/ontosync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show store contents and the last sync result",
	Long: `Display the current state of the ontology store.

Shows:
  - Store location and size
  - Number of terms, relationships, and cross-references
  - The last successful sync (mode, counts, source version)`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		// For file-backed stores, a missing file means nothing was synced yet
		driver := cfg.Store.Driver
		if driver == "" {
			driver = store.DetectDriver(cfg.Store.DSN)
		}
		if driver == "sqlite" {
			if _, err := os.Stat(cfg.Store.DSN); os.IsNotExist(err) {
				fmt.Printf("\n%s Store not initialized\n", ui.RenderWarn("⚠"))
				fmt.Printf("   Run 'ontosync sync' to create it\n\n")
				return
			}
		}

		logger := newLogger(cfg, "[ontosync] ")
		st, err := openStore(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		ctx := context.Background()

		termCount, err := st.CountTerms(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting terms: %v\n", err)
			os.Exit(1)
		}
		relCount, err := st.CountRelations(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting relations: %v\n", err)
			os.Exit(1)
		}
		xrefCount, err := st.CountXRefs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting xrefs: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s Ontology Store Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Source: %s (%s)\n", cfg.Source.ID, cfg.Source.BaseURL)
		fmt.Printf("Store: %s (%s)\n", cfg.Store.DSN, driver)
		if driver == "sqlite" {
			if info, err := os.Stat(cfg.Store.DSN); err == nil {
				fmt.Printf("Size: %s\n", formatSize(info.Size()))
			}
		}
		fmt.Printf("Terms: %d\n", termCount)
		fmt.Printf("Relationships: %d\n", relCount)
		fmt.Printf("Cross-references: %d\n", xrefCount)

		last, err := st.LastSuccessfulExecution(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading execution history: %v\n", err)
			os.Exit(1)
		}
		if last == nil {
			fmt.Printf("\n%s No successful sync recorded yet\n\n", ui.RenderWarn("⚠"))
			return
		}

		fmt.Printf("\nLast sync: %s (%s mode)\n", ui.RenderPass("✓"), last.Mode)
		if last.CompletedAt != nil {
			fmt.Printf("Completed: %s (%v)\n",
				last.CompletedAt.Format("2006-01-02 15:04:05"), last.Duration().Round(time.Millisecond))
		}
		fmt.Printf("Counts: %d fetched, %d inserted, %d updated, %d unchanged\n",
			last.TermsFetched, last.TermsInserted, last.TermsUpdated, last.TermsUnchanged)
		if last.TermsSkipped > 0 {
			fmt.Printf("%s Skipped: %d\n", ui.RenderWarn("⚠"), last.TermsSkipped)
		}
		if last.SourceVersion != "" {
			fmt.Printf("Source version: %s\n", last.SourceVersion)
		}
		fmt.Println()
	},
}

// formatSize renders a byte count the way humans read database sizes.
func formatSize(size int64) string {
	if size > 1024*1024 {
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	}
	if size > 1024 {
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	}
	return fmt.Sprintf("%d bytes", size)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
