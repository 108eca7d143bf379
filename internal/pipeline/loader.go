package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/ontodb/ontosync/internal/ontology"
	"github.com/ontodb/ontosync/internal/store"
)

// Loader writes normalized terms to the store in two passes.
type Loader struct {
	store     store.Store
	batchSize int
	logger    *log.Logger
}

// NewLoader builds a loader that writes batches of batchSize terms per
// transaction.
func NewLoader(st store.Store, batchSize int, logger *log.Logger) *Loader {
	if batchSize < 1 {
		batchSize = 250
	}
	return &Loader{store: st, batchSize: batchSize, logger: logger}
}

// LoadResult aggregates pass-one counters across all batches.
type LoadResult struct {
	Inserted  int
	Updated   int
	Unchanged int

	IDByTermID map[string]int64
	IDByIRI    map[string]int64
}

// LoadTerms runs pass one: terms are upserted batch by batch, each batch
// in its own transaction. A store failure aborts the run; batches already
// committed stay committed, which is safe because a later run converges on
// the same content.
func (l *Loader) LoadTerms(ctx context.Context, terms []*ontology.Term) (*LoadResult, error) {
	res := &LoadResult{
		IDByTermID: make(map[string]int64, len(terms)),
		IDByIRI:    make(map[string]int64, len(terms)),
	}
	for start := 0; start < len(terms); start += l.batchSize {
		end := start + l.batchSize
		if end > len(terms) {
			end = len(terms)
		}
		br, err := l.store.UpsertTermBatch(ctx, terms[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to load term batch %d-%d: %w", start, end, err)
		}
		res.Inserted += br.Inserted
		res.Updated += br.Updated
		res.Unchanged += br.Unchanged
		for k, v := range br.IDByTermID {
			res.IDByTermID[k] = v
		}
		for k, v := range br.IDByIRI {
			res.IDByIRI[k] = v
		}
		l.logger.Printf("Loaded terms %d-%d of %d (inserted=%d updated=%d unchanged=%d)",
			start+1, end, len(terms), br.Inserted, br.Updated, br.Unchanged)
	}
	return res, nil
}

// EdgeResult aggregates pass-two counters.
type EdgeResult struct {
	RelationsInserted int
	// RelationsSkipped counts edges dropped because an endpoint is not
	// stored. Skips are never fatal.
	RelationsSkipped int
	XRefsInserted    int
}

// LoadEdges runs pass two: parent edges and cross-references are written
// once every term row exists. Child ids come from this run's batches;
// parent ids resolve through the store-wide IRI map so parents loaded in
// earlier runs still connect.
func (l *Loader) LoadEdges(ctx context.Context, terms []*ontology.Term, idByTermID map[string]int64, iriToID map[string]int64) (*EdgeResult, error) {
	res := &EdgeResult{}

	var rels []store.Relation
	for _, t := range terms {
		childID, ok := idByTermID[t.TermID]
		if !ok {
			res.RelationsSkipped += len(t.ParentIRIs)
			continue
		}
		for _, parentIRI := range t.ParentIRIs {
			parentID, ok := iriToID[parentIRI]
			if !ok {
				res.RelationsSkipped++
				l.logger.Printf("Skipping relationship %s -> %s: parent not stored", t.TermID, parentIRI)
				continue
			}
			rels = append(rels, store.Relation{ChildID: childID, ParentID: parentID})
		}
	}
	inserted, err := l.store.InsertRelations(ctx, rels)
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}
	res.RelationsInserted = inserted

	var xrefs []store.XRef
	for _, t := range terms {
		id, ok := idByTermID[t.TermID]
		if !ok {
			continue
		}
		for _, x := range t.XRefs {
			xrefs = append(xrefs, store.XRef{TermDBID: id, XRefID: x.ID, Database: x.Database})
		}
	}
	xrefInserted, err := l.store.InsertXRefs(ctx, xrefs)
	if err != nil {
		return nil, fmt.Errorf("failed to load cross-references: %w", err)
	}
	res.XRefsInserted = xrefInserted

	return res, nil
}
