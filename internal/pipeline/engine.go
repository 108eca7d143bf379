package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"golang.org/x/mod/semver"

	"github.com/ontodb/ontosync/internal/config"
	"github.com/ontodb/ontosync/internal/ols"
	"github.com/ontodb/ontosync/internal/ontology"
	"github.com/ontodb/ontosync/internal/store"
)

// Engine drives one sync run end to end.
type Engine struct {
	cfg         *config.Config
	client      *ols.Client
	store       store.Store
	transformer *Transformer
	loader      *Loader
	logger      *log.Logger
	events      EventFunc
}

// Result summarizes one sync run.
type Result struct {
	ExecutionID int64  `json:"execution_id"`
	Mode        string `json:"mode"`
	Status      string `json:"status"`

	TermsFetched   int `json:"terms_fetched"`
	TermsInserted  int `json:"terms_inserted"`
	TermsUpdated   int `json:"terms_updated"`
	TermsUnchanged int `json:"terms_unchanged"`
	TermsSkipped   int `json:"terms_skipped"`

	RelationsInserted int `json:"relations_inserted"`
	RelationsSkipped  int `json:"relations_skipped"`
	XRefsInserted     int `json:"xrefs_inserted"`
	ParentRefsFailed  int `json:"parent_refs_failed"`

	SourceVersion string        `json:"source_version,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// New creates an engine. If logger is nil, a default logger writing to
// stderr is used.
func New(cfg *config.Config, client *ols.Client, st store.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[pipeline] ", log.LstdFlags)
	}
	return &Engine{
		cfg:         cfg,
		client:      client,
		store:       st,
		transformer: NewTransformer(cfg.Source.XrefNamespaces),
		loader:      NewLoader(st, cfg.BatchSize, logger),
		logger:      logger,
	}
}

// OnEvent registers a handler for pipeline events.
func (e *Engine) OnEvent(fn EventFunc) {
	e.events = fn
}

// Run executes one sync run. A journal row is created before the first
// fetch and finalized whatever happens, so failed runs stay visible in the
// history. The returned result carries the counters even when err is
// non-nil.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	execID, err := e.store.CreateExecution(ctx, e.cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	res := &Result{ExecutionID: execID, Mode: e.cfg.Mode}
	e.logger.Printf("Starting %s sync of %s (execution %d)", e.cfg.Mode, e.cfg.Source.ID, execID)
	e.emit(Event{Type: EventRunStarted, ExecutionID: execID, Message: e.cfg.Mode})

	runErr := e.run(ctx, res)

	res.Status = store.StatusSuccess
	errMsg := ""
	if runErr != nil {
		res.Status = store.StatusFailed
		errMsg = runErr.Error()
	}
	res.Duration = time.Since(start)

	// Finalize on a fresh context so a cancelled run still gets its row.
	if cerr := e.store.CompleteExecution(context.Background(), store.ExecutionUpdate{
		ID:             execID,
		Status:         res.Status,
		TermsFetched:   res.TermsFetched,
		TermsInserted:  res.TermsInserted,
		TermsUpdated:   res.TermsUpdated,
		TermsUnchanged: res.TermsUnchanged,
		TermsSkipped:   res.TermsSkipped,
		SourceVersion:  res.SourceVersion,
		ErrorMessage:   errMsg,
	}); cerr != nil {
		e.logger.Printf("WARNING: Failed to finalize execution %d: %v", execID, cerr)
		if runErr == nil {
			runErr = cerr
		}
	}

	e.emit(Event{Type: EventRunCompleted, ExecutionID: execID, Message: res.Status, Result: res})
	if runErr != nil {
		e.logger.Printf("Sync failed after %s: %v", res.Duration.Round(time.Millisecond), runErr)
		return res, runErr
	}
	e.logger.Printf("Sync complete in %s: fetched=%d inserted=%d updated=%d unchanged=%d skipped=%d relations=%d",
		res.Duration.Round(time.Millisecond), res.TermsFetched, res.TermsInserted,
		res.TermsUpdated, res.TermsUnchanged, res.TermsSkipped, res.RelationsInserted)
	return res, nil
}

func (e *Engine) run(ctx context.Context, res *Result) error {
	// The version lookup is advisory: log and move on if it fails.
	if version, err := e.client.FetchOntologyVersion(ctx); err != nil {
		e.logger.Printf("WARNING: Could not determine source version: %v", err)
	} else if version != "" {
		res.SourceVersion = version
		e.noteVersionChange(ctx, version)
	}

	var known map[string]string
	if e.cfg.Mode == config.ModeIncremental {
		var err error
		known, err = e.store.StoredHashes(ctx)
		if err != nil {
			return fmt.Errorf("failed to load stored hashes: %w", err)
		}
		e.logger.Printf("Incremental mode: comparing against %d stored terms", len(known))
	}

	terms, err := e.fetchAndTransform(ctx, known, res)
	if err != nil {
		return err
	}
	e.logger.Printf("Fetched %d terms, %d to load", res.TermsFetched, len(terms))

	if err := e.resolveParents(ctx, terms, res); err != nil {
		return err
	}

	lr, err := e.loader.LoadTerms(ctx, terms)
	if err != nil {
		return err
	}
	res.TermsInserted = lr.Inserted
	res.TermsUpdated = lr.Updated
	res.TermsUnchanged += lr.Unchanged

	// Parents may have been stored by earlier runs, so pass two resolves
	// against the whole table, not just this run's batches.
	iriToID, err := e.store.IRIToIDMap(ctx)
	if err != nil {
		return fmt.Errorf("failed to load iri map: %w", err)
	}

	er, err := e.loader.LoadEdges(ctx, terms, lr.IDByTermID, iriToID)
	if err != nil {
		return err
	}
	res.RelationsInserted = er.RelationsInserted
	res.RelationsSkipped = er.RelationsSkipped
	res.XRefsInserted = er.XRefsInserted

	return nil
}

// fetchAndTransform walks the paginated terms listing, normalizing and
// validating as it goes. Invalid terms are counted as skipped; in
// incremental mode, terms whose stored hash matches are counted as
// unchanged and dropped before resolution.
func (e *Engine) fetchAndTransform(ctx context.Context, known map[string]string, res *Result) ([]*ontology.Term, error) {
	var out []*ontology.Term
	seen := make(map[string]bool)
	limit := 0
	if e.cfg.Mode == config.ModeTest {
		limit = e.cfg.RecordLimit
	}

	for page := 0; ; page++ {
		tp, err := e.client.FetchTermsPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(tp.Embedded.Terms) == 0 {
			break
		}
		e.emit(Event{Type: EventPageFetched, ExecutionID: res.ExecutionID,
			Message: fmt.Sprintf("page %d: %d terms", page, len(tp.Embedded.Terms))})

		for i := range tp.Embedded.Terms {
			raw := &tp.Embedded.Terms[i]
			res.TermsFetched++

			term, err := e.transformer.Normalize(raw)
			if err != nil {
				res.TermsSkipped++
				e.logger.Printf("WARNING: Skipping invalid term %q: %v", raw.OboID, err)
				e.emit(Event{Type: EventTermSkipped, ExecutionID: res.ExecutionID,
					Message: fmt.Sprintf("%s: %v", raw.OboID, err)})
				continue
			}
			if seen[term.TermID] {
				continue
			}
			seen[term.TermID] = true

			if known != nil {
				if h, ok := known[term.TermID]; ok && h == term.ContentHash {
					res.TermsUnchanged++
					continue
				}
			}

			out = append(out, term)
			if limit > 0 && len(out) >= limit {
				e.logger.Printf("Record limit %d reached, stopping fetch", limit)
				return out, nil
			}
		}

		if tp.Page.TotalPages > 0 && page >= tp.Page.TotalPages-1 {
			break
		}
	}
	return out, nil
}

// resolveParents resolves the distinct parent references of all terms and
// attaches the resulting IRIs. References that exhaust their retries are
// dropped with a warning, or fail the run under the strict policy.
func (e *Engine) resolveParents(ctx context.Context, terms []*ontology.Term, res *Result) error {
	refSet := make(map[string]bool)
	for _, t := range terms {
		for _, ref := range t.ParentRefs {
			refSet[ref] = true
		}
	}
	if len(refSet) == 0 {
		return nil
	}
	refs := make([]string, 0, len(refSet))
	for ref := range refSet {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	e.logger.Printf("Resolving %d parent references", len(refs))
	resolved, failed := e.client.ResolveParents(ctx, refs)
	if err := ctx.Err(); err != nil {
		return err
	}

	res.ParentRefsFailed = len(failed)
	if len(failed) > 0 {
		if e.cfg.OnUnresolvedParent == config.UnresolvedFail {
			return fmt.Errorf("failed to resolve %d parent references", len(failed))
		}
		e.logger.Printf("WARNING: Dropped %d unresolvable parent references", len(failed))
	}

	for _, t := range terms {
		for _, ref := range t.ParentRefs {
			t.ParentIRIs = append(t.ParentIRIs, resolved[ref]...)
		}
	}
	return nil
}

// noteVersionChange compares the current source version against the last
// successful run and logs movement. Purely informational.
func (e *Engine) noteVersionChange(ctx context.Context, current string) {
	last, err := e.store.LastSuccessfulExecution(ctx)
	if err != nil || last == nil || last.SourceVersion == "" || last.SourceVersion == current {
		return
	}
	prev := last.SourceVersion
	pv, cv := "v"+prev, "v"+current
	if semver.IsValid(pv) && semver.IsValid(cv) {
		switch semver.Compare(cv, pv) {
		case 1:
			e.logger.Printf("Source version advanced: %s -> %s", prev, current)
		case -1:
			e.logger.Printf("WARNING: Source version regressed: %s -> %s", prev, current)
		}
		return
	}
	e.logger.Printf("Source version changed: %s -> %s", prev, current)
}
