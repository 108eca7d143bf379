package loadtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/ontodb/ontosync/internal/store/sqlite"
)

// TestCreateTestStore verifies that the synthetic store has the expected shape.
func TestCreateTestStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")

	ts, err := CreateTestStore(dsn, 100, 0.7)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Close()

	if len(ts.TermIDs) != 100 {
		t.Errorf("Expected 100 terms, got %d", len(ts.TermIDs))
	}

	// Roots and children partition the term set
	total := len(ts.RootIDs) + len(ts.ChildIDs)
	if total != ts.TotalTerms {
		t.Errorf("Roots (%d) + children (%d) = %d, expected %d",
			len(ts.RootIDs), len(ts.ChildIDs), total, ts.TotalTerms)
	}

	if len(ts.ChildIDs) == 0 {
		t.Error("Expected some child terms, got 0")
	}
	if len(ts.RootIDs) == 0 {
		t.Error("Expected some root terms, got 0")
	}
	if ts.Relations == 0 {
		t.Error("Expected some relationships, got 0")
	}

	count, err := ts.Store.CountTerms(context.Background())
	if err != nil {
		t.Fatalf("Failed to count terms: %v", err)
	}
	if count != 100 {
		t.Errorf("Expected 100 stored terms, got %d", count)
	}

	t.Logf("Store created: %d total, %d roots, %d children, %d relationships",
		ts.TotalTerms, len(ts.RootIDs), len(ts.ChildIDs), ts.Relations)
}

// TestConcurrentQueries_Small verifies basic concurrent query functionality.
func TestConcurrentQueries_Small(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")

	ts, err := CreateTestStore(dsn, 100, 0.7)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Close()

	// Run 10 concurrent workers, 5 queries each
	stats, err := ts.RunConcurrentQueries(10, 5)
	if err != nil {
		t.Fatalf("Concurrent queries failed: %v", err)
	}

	if stats.Errors > 0 {
		t.Errorf("Got %d errors during queries", stats.Errors)
	}

	if stats.TotalQueries != 50 {
		t.Errorf("Expected 50 total queries, got %d", stats.TotalQueries)
	}

	stats.PrintStats()

	// Basic sanity check, generous for CI environments
	if stats.Mean > 250*time.Millisecond {
		t.Errorf("Mean query time too high: %v", stats.Mean)
	}
}

// TestConcurrentQueries_ManyWorkers exercises the fingerprint query under
// heavier parallelism.
func TestConcurrentQueries_ManyWorkers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	dsn := filepath.Join(t.TempDir(), "test.db")

	ts, err := CreateTestStore(dsn, 1000, 0.7)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Close()

	t.Logf("Store stats: %+v", ts.GetStats())

	start := time.Now()
	queryStats, err := ts.RunConcurrentQueries(50, 10)
	totalDuration := time.Since(start)

	if err != nil {
		t.Fatalf("Concurrent queries failed: %v", err)
	}
	if queryStats.Errors > 0 {
		t.Errorf("Got %d errors during queries", queryStats.Errors)
	}

	queryStats.PrintStats()
	t.Logf("Total test duration: %v", totalDuration)
	t.Logf("Throughput: %.2f queries/second", float64(queryStats.TotalQueries)/totalDuration.Seconds())

	if totalDuration > 30*time.Second {
		t.Errorf("Total duration %v exceeds 30s for 50 workers", totalDuration)
	}
}

// TestNoRaceConditions verifies that concurrent access doesn't corrupt reads.
func TestNoRaceConditions(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")

	ts, err := CreateTestStore(dsn, 200, 0.7)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Close()

	if err := ts.VerifyNoRaceConditions(8, 200*time.Millisecond); err != nil {
		t.Errorf("Race verification failed: %v", err)
	}
}

// TestLatencyStatsComputation checks percentile math on a known distribution.
func TestLatencyStatsComputation(t *testing.T) {
	durations := make([]time.Duration, 100)
	for i := 0; i < 100; i++ {
		durations[i] = time.Duration(i+1) * time.Millisecond
	}

	stats := computeLatencyStats(durations)

	if stats.TotalQueries != 100 {
		t.Errorf("Expected 100 queries, got %d", stats.TotalQueries)
	}
	if stats.Min != 1*time.Millisecond {
		t.Errorf("Expected min 1ms, got %v", stats.Min)
	}
	if stats.Max != 100*time.Millisecond {
		t.Errorf("Expected max 100ms, got %v", stats.Max)
	}
	if stats.Mean != 50500*time.Microsecond {
		t.Errorf("Expected mean 50.5ms, got %v", stats.Mean)
	}
	if stats.P50 != 51*time.Millisecond {
		t.Errorf("Expected P50 51ms, got %v", stats.P50)
	}
	if stats.P95 != 96*time.Millisecond {
		t.Errorf("Expected P95 96ms, got %v", stats.P95)
	}
	if stats.P99 != 100*time.Millisecond {
		t.Errorf("Expected P99 100ms, got %v", stats.P99)
	}
}

func BenchmarkStoredHashes_1000Terms(b *testing.B) {
	dsn := filepath.Join(b.TempDir(), "bench.db")

	ts, err := CreateTestStore(dsn, 1000, 0.7)
	if err != nil {
		b.Fatalf("Failed to create test store: %v", err)
	}
	defer ts.Close()

	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := ts.Store.StoredHashes(ctx); err != nil {
			b.Fatalf("Query failed: %v", err)
		}
	}
}
