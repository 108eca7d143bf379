package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/ontodb/ontosync/internal/store"
	"github.com/ontodb/ontosync/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "sync",
	Short:   "List recent sync executions",
	Long: `List sync executions recorded in the store, newest first.

The --since filter accepts natural language as well as RFC 3339 timestamps:
  ontosync history --since "2 hours ago"
  ontosync history --since yesterday
  ontosync history --since 2026-08-20T00:00:00Z
  ontosync history --status failed --limit 5`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		mode, _ := cmd.Flags().GetString("mode")
		sinceStr, _ := cmd.Flags().GetString("since")

		filter := store.ExecutionFilter{Limit: limit, Status: status, Mode: mode}
		if sinceStr != "" {
			since, err := parseSince(sinceStr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			filter.Since = since
		}

		logger := newLogger(cfg, "[ontosync] ")
		st, err := openStore(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		execs, err := st.ListExecutions(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing executions: %v\n", err)
			os.Exit(1)
		}

		if len(execs) == 0 {
			fmt.Printf("\n%s No executions match\n\n", ui.RenderWarn("⚠"))
			return
		}

		fmt.Printf("\n%s Sync History\n\n", ui.RenderAccent("📜"))
		for _, exec := range execs {
			marker := ui.RenderPass("✓")
			switch exec.Status {
			case store.StatusFailed:
				marker = ui.RenderError("✗")
			case store.StatusRunning:
				marker = ui.RenderAccent("…")
			}

			fmt.Printf("#%d  %s %s  %s mode  started %s\n",
				exec.ID, marker, exec.Status, exec.Mode,
				exec.StartedAt.Format("2006-01-02 15:04:05"))
			if exec.CompletedAt != nil {
				fmt.Printf("     fetched=%d inserted=%d updated=%d unchanged=%d skipped=%d in %v\n",
					exec.TermsFetched, exec.TermsInserted, exec.TermsUpdated,
					exec.TermsUnchanged, exec.TermsSkipped,
					exec.Duration().Round(time.Millisecond))
			}
			if exec.SourceVersion != "" {
				fmt.Printf("     %s\n", ui.RenderDim("source version "+exec.SourceVersion))
			}
			if exec.ErrorMessage != "" {
				fmt.Printf("     %s %s\n", ui.RenderError("✗"), exec.ErrorMessage)
			}
		}
		fmt.Println()
	},
}

// parseSince turns a --since value into a timestamp. RFC 3339 is tried
// first, then natural language ("2 hours ago", "yesterday").
func parseSince(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse --since value %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand --since value %q", s)
	}
	return r.Time, nil
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Max executions to show")
	historyCmd.Flags().String("status", "", "Filter by status: running, success, or failed")
	historyCmd.Flags().String("mode", "", "Filter by sync mode: full, incremental, or test")
	historyCmd.Flags().String("since", "", "Only executions started after this time")
	rootCmd.AddCommand(historyCmd)
}
