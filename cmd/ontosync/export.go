package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ontodb/ontosync/internal/snapshot"
	"github.com/ontodb/ontosync/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export <file>",
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	Short:   "Export synced terms to a snapshot file",
	Long: `Write every stored term, with its hierarchy and cross-references, to a
portable snapshot file.

The format follows the file extension: .yaml/.yml produces a YAML document
for human review, anything else produces JSON Lines for machine pipelines.
Use --format to override.

Example usage:
  ontosync export terms.jsonl
  ontosync export review.yaml
  ontosync export backup --format jsonl`,
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = snapshot.DetectFormat(path)
		}

		logger := newLogger(cfg, "[ontosync] ")
		st, err := openStore(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		res, err := snapshot.Export(context.Background(), st, snapshot.ExportOptions{
			Path:   path,
			Format: format,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during export: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Exported %d terms to %s (%s)\n",
			ui.RenderPass("✓"), res.TermsWritten, res.Path, res.Format)
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "", "Snapshot format: jsonl or yaml (default: by file extension)")
	rootCmd.AddCommand(exportCmd)
}
