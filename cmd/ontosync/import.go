package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ontodb/ontosync/internal/snapshot"
	"github.com/ontodb/ontosync/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	Short:   "Import terms from a snapshot file",
	Long: `Load terms from a snapshot file into the store.

Records are validated and upserted; invalid records are reported and
skipped without aborting the import. Relations whose parent is not part of
the snapshot are skipped too.

Example usage:
  ontosync import terms.jsonl
  ontosync import review.yaml --dry-run
  ontosync import terms.jsonl --backup`,
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetBool("backup")

		logger := newLogger(cfg, "[ontosync] ")
		st, err := openStore(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		res, err := snapshot.Import(context.Background(), st, snapshot.ImportOptions{
			Path:   path,
			DryRun: dryRun,
			Backup: backup,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during import: %v\n", err)
			os.Exit(1)
		}

		if dryRun {
			fmt.Printf("%s Dry run: %d terms would be imported, %d skipped\n",
				ui.RenderAccent("🔍"), res.TermsImported, res.TermsSkipped)
		} else {
			fmt.Printf("%s Imported %d terms from %s\n", ui.RenderPass("✓"), res.TermsImported, path)
			fmt.Printf("   Relations: %d inserted, %d skipped\n", res.RelationsImported, res.RelationsSkipped)
			fmt.Printf("   XRefs: %d\n", res.XRefsImported)
			if res.BackupCreated != "" {
				fmt.Printf("   Backup: %s\n", res.BackupCreated)
			}
		}

		if len(res.Errors) > 0 {
			fmt.Printf("\n%s %d records had problems:\n", ui.RenderWarn("⚠"), len(res.Errors))
			shown := res.Errors
			if len(shown) > 10 {
				shown = shown[:10]
			}
			for _, msg := range shown {
				fmt.Printf("   - %s\n", msg)
			}
			if len(res.Errors) > 10 {
				fmt.Printf("   ... and %d more\n", len(res.Errors)-10)
			}
		}
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "Validate the snapshot without writing anything")
	importCmd.Flags().Bool("backup", false, "Export current store contents before importing")
	rootCmd.AddCommand(importCmd)
}
