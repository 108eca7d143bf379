package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ontodb/ontosync/internal/loadtest"
	"github.com/ontodb/ontosync/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "advanced",
	Short:   "Benchmark store query latency under concurrent load",
	Long: `Populate a throwaway store with synthetic terms and hierarchy, then
measure query latency with many concurrent readers.

The readers run the fingerprint lookup every incremental sync starts with,
so the numbers predict how the store behaves when syncs and dashboard
queries overlap.

Examples:
  # Default settings (1000 terms, 50 workers, 10 queries each)
  ontosync bench

  # Heavier load against PostgreSQL
  ontosync bench --terms 10000 --workers 200 --store postgres://localhost/bench

  # Output results as JSON
  ontosync bench --json`,
	Run: runBench,
}

func init() {
	benchCmd.Flags().Int("terms", 1000, "Number of synthetic terms to create")
	benchCmd.Flags().Int("workers", 50, "Number of concurrent readers to simulate")
	benchCmd.Flags().Int("queries", 10, "Number of queries per reader")
	benchCmd.Flags().Float64("parent-pct", 0.7, "Fraction of terms given a parent (0.0-1.0)")
	benchCmd.Flags().String("store", "", "Store DSN for the test data (default: temp SQLite file)")
	benchCmd.Flags().Bool("verify", false, "Also run the concurrent-read consistency check")
	benchCmd.Flags().Bool("keep", false, "Keep the test store after the run")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) {
	terms, _ := cmd.Flags().GetInt("terms")
	workers, _ := cmd.Flags().GetInt("workers")
	queries, _ := cmd.Flags().GetInt("queries")
	parentPct, _ := cmd.Flags().GetFloat64("parent-pct")
	dsn, _ := cmd.Flags().GetString("store")
	verify, _ := cmd.Flags().GetBool("verify")
	keep, _ := cmd.Flags().GetBool("keep")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Validate flags
	if terms <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --terms must be positive\n")
		os.Exit(1)
	}
	if workers <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --workers must be positive\n")
		os.Exit(1)
	}
	if queries <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --queries must be positive\n")
		os.Exit(1)
	}
	if parentPct < 0 || parentPct > 1 {
		fmt.Fprintf(os.Stderr, "Error: --parent-pct must be between 0.0 and 1.0\n")
		os.Exit(1)
	}

	tempStore := dsn == ""
	if tempStore {
		dsn = filepath.Join(os.TempDir(), fmt.Sprintf("ontosync-bench-%d.db", os.Getpid()))
		os.Remove(dsn)
	}

	if !jsonOutput {
		fmt.Printf("%s Creating test store with %d terms (%.0f%% parented)...\n",
			ui.RenderAccent("🔄"), terms, parentPct*100)
	}

	ts, err := loadtest.CreateTestStore(dsn, terms, parentPct)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating test store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		ts.Close()
		if tempStore && !keep {
			os.Remove(dsn)
		}
	}()

	if !jsonOutput {
		fmt.Printf("%s Test store ready: %d roots, %d children, %d relations\n",
			ui.RenderPass("✓"), len(ts.RootIDs), len(ts.ChildIDs), ts.Relations)
		fmt.Printf("%s Running %d workers x %d queries...\n", ui.RenderAccent("🔄"), workers, queries)
	}

	start := time.Now()
	stats, err := ts.RunConcurrentQueries(workers, queries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during benchmark: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	if verify {
		if !jsonOutput {
			fmt.Printf("%s Verifying read consistency under load...\n", ui.RenderAccent("🔄"))
		}
		if err := ts.VerifyNoRaceConditions(workers, 2*time.Second); err != nil {
			fmt.Fprintf(os.Stderr, "Error: consistency check failed: %v\n", err)
			os.Exit(1)
		}
		if !jsonOutput {
			fmt.Printf("%s No inconsistent reads observed\n", ui.RenderPass("✓"))
		}
	}

	if jsonOutput {
		outputBenchJSON(ts, stats, terms, workers, queries, parentPct, elapsed)
	} else {
		stats.PrintStats()
		fmt.Printf("Throughput: %.0f queries/sec\n", float64(stats.TotalQueries)/elapsed.Seconds())
		if keep || !tempStore {
			fmt.Printf("Store: %s\n", dsn)
		}
	}

	if stats.Errors > 0 {
		os.Exit(1)
	}
}

func outputBenchJSON(ts *loadtest.TestStore, stats *loadtest.LatencyStats,
	terms, workers, queries int, parentPct float64, elapsed time.Duration) {
	output := map[string]interface{}{
		"config": map[string]interface{}{
			"terms":              terms,
			"workers":            workers,
			"queries_per_worker": queries,
			"parent_pct":         parentPct,
		},
		"latency": map[string]interface{}{
			"min_ms":  stats.Min.Milliseconds(),
			"p50_ms":  stats.P50.Milliseconds(),
			"mean_ms": stats.Mean.Milliseconds(),
			"p95_ms":  stats.P95.Milliseconds(),
			"p99_ms":  stats.P99.Milliseconds(),
			"max_ms":  stats.Max.Milliseconds(),
		},
		"throughput": map[string]interface{}{
			"qps":     float64(stats.TotalQueries) / elapsed.Seconds(),
			"queries": stats.TotalQueries,
		},
		"store": map[string]interface{}{
			"roots":     len(ts.RootIDs),
			"children":  len(ts.ChildIDs),
			"relations": ts.Relations,
		},
		"duration_ms": elapsed.Milliseconds(),
		"errors":      stats.Errors,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
