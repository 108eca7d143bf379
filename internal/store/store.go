// Package store defines the storage contract for synced ontology data and a
// registry of pluggable backends.
//
// A Store keeps four linked tables (terms, synonyms, relationships,
// cross-references) plus an execution journal that records every sync run.
// Backends register themselves from init() in their own packages, so callers
// import the drivers they want and open by name:
//
//	import (
//	    "github.com/ontodb/ontosync/internal/store"
//	    _ "github.com/ontodb/ontosync/internal/store/sqlite"
//	)
//
//	st, err := store.Open("sqlite", ".ontosync/ontosync.db", nil)
//
// Loading happens in two passes. Pass one upserts terms in batches, each
// batch in its own transaction, classifying every term as inserted, updated,
// or unchanged by comparing content hashes. Pass two writes relationships
// and cross-references once all term rows exist, so the child and parent of
// an edge always resolve to real database ids.
package store

import (
	"context"
	"time"

	"github.com/ontodb/ontosync/internal/ontology"
)

// Execution statuses recorded in the journal.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Store is the storage backend contract. Implementations must be safe for
// concurrent use by multiple goroutines.
type Store interface {
	// InitSchema creates tables and indexes. Idempotent.
	InitSchema(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error

	// UpsertTermBatch writes one batch of terms inside a single
	// transaction and classifies each term against the stored content
	// hash. The result maps both term ids and IRIs to database ids for
	// every term in the batch.
	UpsertTermBatch(ctx context.Context, terms []*ontology.Term) (*BatchResult, error)

	// InsertRelations writes parent edges, ignoring duplicates.
	// Returns how many rows were newly inserted.
	InsertRelations(ctx context.Context, rels []Relation) (int, error)

	// InsertXRefs writes cross-references, ignoring duplicates.
	// Returns how many rows were newly inserted.
	InsertXRefs(ctx context.Context, refs []XRef) (int, error)

	// StoredHashes returns term id -> content hash for every stored term.
	StoredHashes(ctx context.Context) (map[string]string, error)

	// IRIToIDMap returns IRI -> database id for every stored term.
	IRIToIDMap(ctx context.Context) (map[string]int64, error)

	// ListTerms returns every stored term fully joined with its synonyms,
	// resolved parent IRIs, and cross-references.
	ListTerms(ctx context.Context) ([]*ontology.Term, error)

	// DeleteTerm removes a term and its linked rows. Idempotent.
	DeleteTerm(ctx context.Context, termID string) error

	// CountTerms, CountRelations, and CountXRefs report table sizes.
	CountTerms(ctx context.Context) (int, error)
	CountRelations(ctx context.Context) (int, error)
	CountXRefs(ctx context.Context) (int, error)

	// CreateExecution opens a journal row in the running state and
	// returns its id.
	CreateExecution(ctx context.Context, mode string) (int64, error)

	// CompleteExecution finalizes a journal row with its terminal status
	// and counts.
	CompleteExecution(ctx context.Context, upd ExecutionUpdate) error

	// LastSuccessfulExecution returns the most recent successful run, or
	// nil when none exists.
	LastSuccessfulExecution(ctx context.Context) (*Execution, error)

	// ListExecutions returns journal rows, newest first.
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error)

	// Reset deletes all synced data and the execution journal.
	Reset(ctx context.Context) error
}

// Relation is a parent edge between two stored terms.
type Relation struct {
	ChildID  int64
	ParentID int64
	// Kind defaults to ontology.RelationIsA when empty.
	Kind string
}

// XRef links a stored term to an external vocabulary identifier.
type XRef struct {
	TermDBID int64
	XRefID   string
	Database string
}

// BatchResult summarizes one UpsertTermBatch call.
type BatchResult struct {
	Inserted  int
	Updated   int
	Unchanged int

	// IDByTermID and IDByIRI map every term in the batch to its
	// database id, whether the row was inserted or already present.
	IDByTermID map[string]int64
	IDByIRI    map[string]int64
}

// Execution is one row of the sync journal.
type Execution struct {
	ID          int64
	StartedAt   time.Time
	CompletedAt *time.Time
	Mode        string
	Status      string

	TermsFetched   int
	TermsInserted  int
	TermsUpdated   int
	TermsUnchanged int
	TermsSkipped   int

	SourceVersion string
	ErrorMessage  string
}

// Duration returns the run's wall time, or 0 while it is still running.
func (e *Execution) Duration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

// ExecutionUpdate finalizes a journal row.
type ExecutionUpdate struct {
	ID     int64
	Status string

	TermsFetched   int
	TermsInserted  int
	TermsUpdated   int
	TermsUnchanged int
	TermsSkipped   int

	SourceVersion string
	ErrorMessage  string
}

// ExecutionFilter restricts ListExecutions.
type ExecutionFilter struct {
	// Limit restricts the number of results (0 = no limit).
	Limit int
	// Since filters to runs started at or after this time (zero = all).
	Since time.Time
	// Status filters to a single status (empty = all).
	Status string
	// Mode filters to a single sync mode (empty = all).
	Mode string
}
