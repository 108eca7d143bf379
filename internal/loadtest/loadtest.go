// Package loadtest provides load testing utilities for the ontology store.
//
// This package populates a store with synthetic terms and hierarchy, then
// simulates concurrent readers (optionally against a churning writer)
// hitting the fingerprint and lookup queries the incremental sync path
// depends on, reporting latency percentiles.
package loadtest

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ontodb/ontosync/internal/ontology"
	"github.com/ontodb/ontosync/internal/store"
)

const (
	seedBatchSize   = 500
	writerBatchSize = 25
)

// TestStore represents a populated store for load testing.
type TestStore struct {
	Store      store.Store
	TermIDs    []string
	RootIDs    []string
	ChildIDs   []string
	TotalTerms int
	ParentPct  float64
	Relations  int
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
	Durations    []time.Duration
}

// CreateTestStore opens the store for dsn and populates it with numTerms
// synthetic terms.
//
// The store is populated with:
//   - Terms with labels, descriptions, synonyms, and cross-references
//   - A hierarchy where roughly parentPct of terms have a parent
//   - Content fingerprints computed like a real sync would
//
// The parentPct parameter controls what fraction of terms are children
// (typical: 0.7 for 70%).
func CreateTestStore(dsn string, numTerms int, parentPct float64) (*TestStore, error) {
	st, err := store.Open("", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	ctx := context.Background()
	if err := st.InitSchema(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ts := &TestStore{
		Store:      st,
		TermIDs:    make([]string, 0, numTerms),
		RootIDs:    make([]string, 0),
		ChildIDs:   make([]string, 0),
		TotalTerms: numTerms,
		ParentPct:  parentPct,
	}

	// Generate term data
	terms := generateTerms(numTerms)
	generateHierarchy(terms, parentPct)

	idByTermID := make(map[string]int64, numTerms)
	for start := 0; start < len(terms); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(terms) {
			end = len(terms)
		}
		br, err := st.UpsertTermBatch(ctx, terms[start:end])
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to insert batch %d-%d: %w", start, end, err)
		}
		for k, v := range br.IDByTermID {
			idByTermID[k] = v
		}
	}

	// Wire the hierarchy
	iriToID, err := st.IRIToIDMap(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to load iri map: %w", err)
	}

	var rels []store.Relation
	for _, term := range terms {
		ts.TermIDs = append(ts.TermIDs, term.TermID)
		if len(term.ParentIRIs) == 0 {
			ts.RootIDs = append(ts.RootIDs, term.TermID)
			continue
		}
		ts.ChildIDs = append(ts.ChildIDs, term.TermID)
		for _, p := range term.ParentIRIs {
			rels = append(rels, store.Relation{
				ChildID:  idByTermID[term.TermID],
				ParentID: iriToID[p],
			})
		}
	}

	inserted, err := st.InsertRelations(ctx, rels)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to insert relationships: %w", err)
	}
	ts.Relations = inserted

	return ts, nil
}

// Close closes the test store connection.
func (ts *TestStore) Close() error {
	if ts.Store != nil {
		return ts.Store.Close()
	}
	return nil
}

// RunConcurrentQueries simulates N concurrent sync workers reading the
// stored fingerprint map, the query every incremental run starts with.
//
// Each worker performs queriesPerWorker queries, recording latency for each.
// Returns aggregated latency statistics.
func (ts *TestStore) RunConcurrentQueries(numWorkers int, queriesPerWorker int) (*LatencyStats, error) {
	var wg sync.WaitGroup
	var allDurations []time.Duration
	var errorCount int

	resultsChan := make(chan []time.Duration, numWorkers)
	errorsChan := make(chan error, numWorkers)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			durations := make([]time.Duration, 0, queriesPerWorker)
			ctx := context.Background()

			for j := 0; j < queriesPerWorker; j++ {
				start := time.Now()

				hashes, err := ts.Store.StoredHashes(ctx)
				elapsed := time.Since(start)

				durations = append(durations, elapsed)

				if err != nil {
					errorsChan <- fmt.Errorf("worker %d query %d failed: %w", workerID, j, err)
					return
				}
				if len(hashes) != ts.TotalTerms {
					errorsChan <- fmt.Errorf("worker %d query %d returned %d hashes, want %d",
						workerID, j, len(hashes), ts.TotalTerms)
					return
				}
			}

			resultsChan <- durations
		}(i)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	for err := range errorsChan {
		if err != nil {
			errorCount++
			fmt.Printf("Error: %v\n", err)
		}
	}

	for durations := range resultsChan {
		allDurations = append(allDurations, durations...)
	}

	if len(allDurations) == 0 {
		return nil, fmt.Errorf("no successful queries completed")
	}

	stats := computeLatencyStats(allDurations)
	stats.Errors = errorCount

	return stats, nil
}

// generateTerms creates a slice of synthetic terms with realistic shape.
func generateTerms(count int) []*ontology.Term {
	terms := make([]*ontology.Term, count)

	for i := 0; i < count; i++ {
		termID := fmt.Sprintf("LOAD:%07d", i)
		term := &ontology.Term{
			TermID:      termID,
			IRI:         fmt.Sprintf("http://purl.obolibrary.org/obo/LOAD_%07d", i),
			Label:       fmt.Sprintf("synthetic term %d", i),
			Description: fmt.Sprintf("Synthetic term %d generated for store load testing", i),
		}

		// Vary optional fields so rows are not uniform
		if i%3 == 0 {
			term.Synonyms = []string{
				fmt.Sprintf("alias %d", i),
				fmt.Sprintf("alt label %d", i),
			}
		}
		if i%2 == 0 {
			term.XRefs = []ontology.XRef{{ID: fmt.Sprintf("D%06d", i), Database: "MSH"}}
		}

		terms[i] = term
	}

	return terms
}

// generateHierarchy links roughly parentPct of terms to a parent.
//
// Children are drawn from the second half of the slice and parents from
// the first half, so the hierarchy is acyclic. Fingerprints are computed
// after linking, the same order a real sync uses.
func generateHierarchy(terms []*ontology.Term, parentPct float64) {
	if parentPct > 0 && parentPct < 1 && len(terms) > 1 {
		numToLink := int(float64(len(terms)) * parentPct)

		// Use deterministic random for reproducibility
		rng := rand.New(rand.NewSource(42))

		for i := 0; i < numToLink; i++ {
			parentIdx := rng.Intn(len(terms) / 2)
			childIdx := len(terms)/2 + rng.Intn(len(terms)/2)
			if parentIdx >= childIdx {
				continue
			}

			child := terms[childIdx]
			parentIRI := terms[parentIdx].IRI
			if containsString(child.ParentIRIs, parentIRI) {
				continue
			}
			child.ParentRefs = append(child.ParentRefs, parentIRI)
			child.ParentIRIs = append(child.ParentIRIs, parentIRI)
		}
	}

	for _, term := range terms {
		term.ComputeHash()
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	// Sort durations for percentile calculation
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	mean := sum / time.Duration(len(durations))

	p50 := sorted[len(sorted)*50/100]
	p95 := sorted[len(sorted)*95/100]
	p99 := sorted[len(sorted)*99/100]

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         mean,
		P50:          p50,
		P95:          p95,
		P99:          p99,
		TotalQueries: len(durations),
		Durations:    sorted,
	}
}

// PrintStats formats and prints latency statistics.
func (s *LatencyStats) PrintStats() {
	fmt.Printf("Latency Statistics:\n")
	fmt.Printf("  Total Queries: %d\n", s.TotalQueries)
	fmt.Printf("  Errors:        %d\n", s.Errors)
	fmt.Printf("  Min:           %v\n", s.Min)
	fmt.Printf("  P50 (Median):  %v\n", s.P50)
	fmt.Printf("  Mean:          %v\n", s.Mean)
	fmt.Printf("  P95:           %v\n", s.P95)
	fmt.Printf("  P99:           %v\n", s.P99)
	fmt.Printf("  Max:           %v\n", s.Max)
}

// VerifyNoRaceConditions runs concurrent readers against one churning
// writer to verify that the store returns consistent rows under parallel
// access.
func (ts *TestStore) VerifyNoRaceConditions(numWorkers int, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	errorsChan := make(chan error, numWorkers+1)

	// The writer re-upserts a slice of existing rows with changed labels,
	// so readers observe in-flight update transactions, not just a static
	// table.
	wg.Add(1)
	go func() {
		defer wg.Done()
		n := writerBatchSize
		if n > ts.TotalTerms {
			n = ts.TotalTerms
		}
		for rev := 0; ; rev++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			batch := generateTerms(n)
			for _, t := range batch {
				t.Label = fmt.Sprintf("%s rev %d", t.Label, rev)
				t.ComputeHash()
			}
			if _, err := ts.Store.UpsertTermBatch(ctx, batch); err != nil && ctx.Err() == nil {
				errorsChan <- fmt.Errorf("writer upsert failed: %w", err)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for {
				select {
				case <-ctx.Done():
					return
				default:
					terms, err := ts.Store.ListTerms(ctx)
					if err != nil && ctx.Err() == nil {
						errorsChan <- fmt.Errorf("worker %d read failed: %w", workerID, err)
						return
					}

					// Verify data consistency
					for _, term := range terms {
						if term.TermID == "" {
							errorsChan <- fmt.Errorf("worker %d found term with empty ID", workerID)
							return
						}
						if term.Label == "" {
							errorsChan <- fmt.Errorf("worker %d found term %s with empty label", workerID, term.TermID)
							return
						}
						if term.ContentHash == "" {
							errorsChan <- fmt.Errorf("worker %d found term %s with empty fingerprint", workerID, term.TermID)
							return
						}
					}

					// Small sleep to avoid hammering
					time.Sleep(1 * time.Millisecond)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errorsChan)

	for err := range errorsChan {
		if err != nil {
			return err
		}
	}

	return nil
}

// GetStats returns statistics about the test store.
func (ts *TestStore) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_terms":    ts.TotalTerms,
		"root_terms":     len(ts.RootIDs),
		"child_terms":    len(ts.ChildIDs),
		"relationships":  ts.Relations,
		"parent_percent": float64(len(ts.ChildIDs)) / float64(ts.TotalTerms) * 100,
	}
}
