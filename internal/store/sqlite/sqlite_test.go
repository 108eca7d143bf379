package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ontodb/ontosync/internal/ontology"
	"github.com/ontodb/ontosync/internal/store"
)

// openTestStore creates an initialized store backed by a temp file.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	s := st.(*Store)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return s
}

func testTerm(termID, iri, label string) *ontology.Term {
	term := &ontology.Term{
		TermID:      termID,
		IRI:         iri,
		Label:       label,
		Description: "a description",
		Synonyms:    []string{"first synonym", "second synonym"},
	}
	term.ComputeHash()
	return term
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	st, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer st.Close()
}

func TestInitSchema_Idempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}

	// Check that all tables exist
	tables := []string{"terms", "term_synonyms", "term_relationships", "term_xrefs", "sync_executions"}
	for _, table := range tables {
		var count int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := s.conn.QueryRow(query, table).Scan(&count); err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

func TestUpsertTermBatch_Classification(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testTerm("EFO:0000001", "http://www.ebi.ac.uk/efo/EFO_0000001", "alpha")
	b := testTerm("EFO:0000002", "http://www.ebi.ac.uk/efo/EFO_0000002", "beta")

	res1, err := s.UpsertTermBatch(ctx, []*ontology.Term{a, b})
	if err != nil {
		t.Fatalf("UpsertTermBatch() failed: %v", err)
	}
	if res1.Inserted != 2 || res1.Updated != 0 || res1.Unchanged != 0 {
		t.Errorf("first run = %d/%d/%d, want 2/0/0", res1.Inserted, res1.Updated, res1.Unchanged)
	}
	if len(res1.IDByTermID) != 2 || len(res1.IDByIRI) != 2 {
		t.Errorf("id maps = %d/%d entries, want 2/2", len(res1.IDByTermID), len(res1.IDByIRI))
	}

	// Identical content: everything unchanged.
	res2, err := s.UpsertTermBatch(ctx, []*ontology.Term{a, b})
	if err != nil {
		t.Fatalf("UpsertTermBatch() rerun failed: %v", err)
	}
	if res2.Inserted != 0 || res2.Updated != 0 || res2.Unchanged != 2 {
		t.Errorf("rerun = %d/%d/%d, want 0/0/2", res2.Inserted, res2.Updated, res2.Unchanged)
	}

	// Changed content hash: row updated in place, id stable.
	b2 := testTerm("EFO:0000002", "http://www.ebi.ac.uk/efo/EFO_0000002", "beta revised")
	res3, err := s.UpsertTermBatch(ctx, []*ontology.Term{a, b2})
	if err != nil {
		t.Fatalf("UpsertTermBatch() update failed: %v", err)
	}
	if res3.Inserted != 0 || res3.Updated != 1 || res3.Unchanged != 1 {
		t.Errorf("update run = %d/%d/%d, want 0/1/1", res3.Inserted, res3.Updated, res3.Unchanged)
	}
	if res3.IDByTermID["EFO:0000002"] != res1.IDByTermID["EFO:0000002"] {
		t.Error("database id changed across update")
	}

	var label string
	if err := s.conn.QueryRow(`SELECT label FROM terms WHERE term_id = ?`, "EFO:0000002").Scan(&label); err != nil {
		t.Fatalf("Failed to query updated term: %v", err)
	}
	if label != "beta revised" {
		t.Errorf("label = %q, want beta revised", label)
	}
}

func TestUpsertTermBatch_ReplacesSynonymsOnUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	term := &ontology.Term{
		TermID:   "EFO:0000010",
		IRI:      "http://www.ebi.ac.uk/efo/EFO_0000010",
		Label:    "gamma",
		Synonyms: []string{"old name", "shared name"},
	}
	term.ComputeHash()
	if _, err := s.UpsertTermBatch(ctx, []*ontology.Term{term}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	revised := &ontology.Term{
		TermID:   "EFO:0000010",
		IRI:      "http://www.ebi.ac.uk/efo/EFO_0000010",
		Label:    "gamma",
		Synonyms: []string{"shared name", "new name"},
	}
	revised.ComputeHash()
	if _, err := s.UpsertTermBatch(ctx, []*ontology.Term{revised}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	rows, err := s.conn.Query(`
		SELECT synonym FROM term_synonyms s JOIN terms t ON t.id = s.term_id
		WHERE t.term_id = ? ORDER BY synonym`, "EFO:0000010")
	if err != nil {
		t.Fatalf("Failed to query synonyms: %v", err)
	}
	defer rows.Close()

	var synonyms []string
	for rows.Next() {
		var syn string
		if err := rows.Scan(&syn); err != nil {
			t.Fatalf("Failed to scan synonym: %v", err)
		}
		synonyms = append(synonyms, syn)
	}
	want := []string{"new name", "shared name"}
	if !reflect.DeepEqual(synonyms, want) {
		t.Errorf("synonyms = %v, want %v", synonyms, want)
	}
}

func TestInsertRelations_IgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	child := testTerm("EFO:0000020", "http://www.ebi.ac.uk/efo/EFO_0000020", "child")
	parent := testTerm("EFO:0000021", "http://www.ebi.ac.uk/efo/EFO_0000021", "parent")
	res, err := s.UpsertTermBatch(ctx, []*ontology.Term{child, parent})
	if err != nil {
		t.Fatalf("UpsertTermBatch() failed: %v", err)
	}

	rel := store.Relation{
		ChildID:  res.IDByTermID["EFO:0000020"],
		ParentID: res.IDByTermID["EFO:0000021"],
	}
	n, err := s.InsertRelations(ctx, []store.Relation{rel})
	if err != nil {
		t.Fatalf("InsertRelations() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("first insert = %d rows, want 1", n)
	}

	n, err = s.InsertRelations(ctx, []store.Relation{rel})
	if err != nil {
		t.Fatalf("InsertRelations() rerun failed: %v", err)
	}
	if n != 0 {
		t.Errorf("duplicate insert = %d rows, want 0", n)
	}

	var kind string
	if err := s.conn.QueryRow(`SELECT relationship_type FROM term_relationships LIMIT 1`).Scan(&kind); err != nil {
		t.Fatalf("Failed to query relationship: %v", err)
	}
	if kind != ontology.RelationIsA {
		t.Errorf("relationship_type = %q, want %q", kind, ontology.RelationIsA)
	}
}

func TestInsertXRefs_IgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	term := testTerm("EFO:0000030", "http://www.ebi.ac.uk/efo/EFO_0000030", "xref holder")
	res, err := s.UpsertTermBatch(ctx, []*ontology.Term{term})
	if err != nil {
		t.Fatalf("UpsertTermBatch() failed: %v", err)
	}

	ref := store.XRef{TermDBID: res.IDByTermID["EFO:0000030"], XRefID: "D012345"}
	n, err := s.InsertXRefs(ctx, []store.XRef{ref})
	if err != nil {
		t.Fatalf("InsertXRefs() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("first insert = %d rows, want 1", n)
	}

	n, err = s.InsertXRefs(ctx, []store.XRef{ref})
	if err != nil {
		t.Fatalf("InsertXRefs() rerun failed: %v", err)
	}
	if n != 0 {
		t.Errorf("duplicate insert = %d rows, want 0", n)
	}

	var db string
	if err := s.conn.QueryRow(`SELECT xref_db FROM term_xrefs LIMIT 1`).Scan(&db); err != nil {
		t.Fatalf("Failed to query xref: %v", err)
	}
	if db != "MSH" {
		t.Errorf("xref_db = %q, want MSH default", db)
	}
}

func TestStoredHashesAndIRIMap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testTerm("EFO:0000040", "http://www.ebi.ac.uk/efo/EFO_0000040", "hashed")
	res, err := s.UpsertTermBatch(ctx, []*ontology.Term{a})
	if err != nil {
		t.Fatalf("UpsertTermBatch() failed: %v", err)
	}

	hashes, err := s.StoredHashes(ctx)
	if err != nil {
		t.Fatalf("StoredHashes() failed: %v", err)
	}
	if hashes["EFO:0000040"] != a.ContentHash {
		t.Errorf("stored hash = %q, want %q", hashes["EFO:0000040"], a.ContentHash)
	}

	iriMap, err := s.IRIToIDMap(ctx)
	if err != nil {
		t.Fatalf("IRIToIDMap() failed: %v", err)
	}
	if iriMap[a.IRI] != res.IDByTermID["EFO:0000040"] {
		t.Errorf("iri map id = %d, want %d", iriMap[a.IRI], res.IDByTermID["EFO:0000040"])
	}
}

func TestListTerms_JoinsLinkedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	child := testTerm("EFO:0000050", "http://www.ebi.ac.uk/efo/EFO_0000050", "child term")
	parent := testTerm("EFO:0000051", "http://www.ebi.ac.uk/efo/EFO_0000051", "parent term")
	res, err := s.UpsertTermBatch(ctx, []*ontology.Term{child, parent})
	if err != nil {
		t.Fatalf("UpsertTermBatch() failed: %v", err)
	}
	childID := res.IDByTermID["EFO:0000050"]
	parentID := res.IDByTermID["EFO:0000051"]

	if _, err := s.InsertRelations(ctx, []store.Relation{{ChildID: childID, ParentID: parentID}}); err != nil {
		t.Fatalf("InsertRelations() failed: %v", err)
	}
	if _, err := s.InsertXRefs(ctx, []store.XRef{{TermDBID: childID, XRefID: "D000077", Database: "MSH"}}); err != nil {
		t.Fatalf("InsertXRefs() failed: %v", err)
	}

	terms, err := s.ListTerms(ctx)
	if err != nil {
		t.Fatalf("ListTerms() failed: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("got %d terms, want 2", len(terms))
	}

	// Ordered by term_id, so child comes first.
	got := terms[0]
	if got.TermID != "EFO:0000050" {
		t.Fatalf("first term = %s, want EFO:0000050", got.TermID)
	}
	if !reflect.DeepEqual(got.Synonyms, []string{"first synonym", "second synonym"}) {
		t.Errorf("synonyms = %v", got.Synonyms)
	}
	if !reflect.DeepEqual(got.ParentIRIs, []string{parent.IRI}) {
		t.Errorf("parent iris = %v, want [%s]", got.ParentIRIs, parent.IRI)
	}
	if len(got.XRefs) != 1 || got.XRefs[0].ID != "D000077" || got.XRefs[0].Database != "MSH" {
		t.Errorf("xrefs = %v", got.XRefs)
	}
}

func TestDeleteTerm_Cascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	child := testTerm("EFO:0000060", "http://www.ebi.ac.uk/efo/EFO_0000060", "child")
	parent := testTerm("EFO:0000061", "http://www.ebi.ac.uk/efo/EFO_0000061", "parent")
	res, err := s.UpsertTermBatch(ctx, []*ontology.Term{child, parent})
	if err != nil {
		t.Fatalf("UpsertTermBatch() failed: %v", err)
	}
	if _, err := s.InsertRelations(ctx, []store.Relation{{
		ChildID:  res.IDByTermID["EFO:0000060"],
		ParentID: res.IDByTermID["EFO:0000061"],
	}}); err != nil {
		t.Fatalf("InsertRelations() failed: %v", err)
	}

	if err := s.DeleteTerm(ctx, "EFO:0000061"); err != nil {
		t.Fatalf("DeleteTerm() failed: %v", err)
	}
	n, err := s.CountRelations(ctx)
	if err != nil {
		t.Fatalf("CountRelations() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("relations after cascade = %d, want 0", n)
	}

	// Deleting a missing term is a no-op.
	if err := s.DeleteTerm(ctx, "EFO:0000061"); err != nil {
		t.Errorf("second DeleteTerm() failed: %v", err)
	}
}

func TestExecutionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateExecution(ctx, "full")
	if err != nil {
		t.Fatalf("CreateExecution() failed: %v", err)
	}

	execs, err := s.ListExecutions(ctx, store.ExecutionFilter{})
	if err != nil {
		t.Fatalf("ListExecutions() failed: %v", err)
	}
	if len(execs) != 1 || execs[0].Status != store.StatusRunning {
		t.Fatalf("running execution not visible: %+v", execs)
	}
	if execs[0].CompletedAt != nil {
		t.Error("running execution has a completion time")
	}

	err = s.CompleteExecution(ctx, store.ExecutionUpdate{
		ID:             id,
		Status:         store.StatusSuccess,
		TermsFetched:   6,
		TermsInserted:  5,
		TermsUnchanged: 0,
		TermsSkipped:   1,
		SourceVersion:  "3.62.0",
	})
	if err != nil {
		t.Fatalf("CompleteExecution() failed: %v", err)
	}

	last, err := s.LastSuccessfulExecution(ctx)
	if err != nil {
		t.Fatalf("LastSuccessfulExecution() failed: %v", err)
	}
	if last == nil {
		t.Fatal("LastSuccessfulExecution() returned nil")
	}
	if last.ID != id || last.TermsFetched != 6 || last.TermsInserted != 5 || last.TermsSkipped != 1 {
		t.Errorf("last execution = %+v", last)
	}
	if last.SourceVersion != "3.62.0" {
		t.Errorf("source version = %q", last.SourceVersion)
	}
	if last.CompletedAt == nil {
		t.Error("completed execution missing completion time")
	}

	// Completing an unknown row reports a lookup failure.
	err = s.CompleteExecution(ctx, store.ExecutionUpdate{ID: 9999, Status: store.StatusFailed})
	if !errors.Is(err, store.ErrExecutionNotFound) {
		t.Errorf("err = %v, want ErrExecutionNotFound", err)
	}
}

func TestLastSuccessfulExecution_NoneYet(t *testing.T) {
	s := openTestStore(t)

	last, err := s.LastSuccessfulExecution(context.Background())
	if err != nil {
		t.Fatalf("LastSuccessfulExecution() failed: %v", err)
	}
	if last != nil {
		t.Errorf("expected nil execution, got %+v", last)
	}
}

func TestListExecutions_Filters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, status := range []string{store.StatusSuccess, store.StatusFailed, store.StatusSuccess} {
		id, err := s.CreateExecution(ctx, "incremental")
		if err != nil {
			t.Fatalf("CreateExecution(%d) failed: %v", i, err)
		}
		if err := s.CompleteExecution(ctx, store.ExecutionUpdate{ID: id, Status: status}); err != nil {
			t.Fatalf("CompleteExecution(%d) failed: %v", i, err)
		}
	}

	successes, err := s.ListExecutions(ctx, store.ExecutionFilter{Status: store.StatusSuccess})
	if err != nil {
		t.Fatalf("ListExecutions(success) failed: %v", err)
	}
	if len(successes) != 2 {
		t.Errorf("success rows = %d, want 2", len(successes))
	}

	limited, err := s.ListExecutions(ctx, store.ExecutionFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListExecutions(limit) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited rows = %d, want 1", len(limited))
	}

	none, err := s.ListExecutions(ctx, store.ExecutionFilter{Since: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("ListExecutions(since) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("future-since rows = %d, want 0", len(none))
	}

	all, err := s.ListExecutions(ctx, store.ExecutionFilter{Since: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("ListExecutions(past since) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("past-since rows = %d, want 3", len(all))
	}

	id, err := s.CreateExecution(ctx, "full")
	if err != nil {
		t.Fatalf("CreateExecution(full) failed: %v", err)
	}
	if err := s.CompleteExecution(ctx, store.ExecutionUpdate{ID: id, Status: store.StatusSuccess}); err != nil {
		t.Fatalf("CompleteExecution(full) failed: %v", err)
	}

	fulls, err := s.ListExecutions(ctx, store.ExecutionFilter{Mode: "full"})
	if err != nil {
		t.Fatalf("ListExecutions(mode) failed: %v", err)
	}
	if len(fulls) != 1 {
		t.Errorf("full-mode rows = %d, want 1", len(fulls))
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	term := testTerm("EFO:0000070", "http://www.ebi.ac.uk/efo/EFO_0000070", "doomed")
	if _, err := s.UpsertTermBatch(ctx, []*ontology.Term{term}); err != nil {
		t.Fatalf("UpsertTermBatch() failed: %v", err)
	}
	if _, err := s.CreateExecution(ctx, "full"); err != nil {
		t.Fatalf("CreateExecution() failed: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}

	n, err := s.CountTerms(ctx)
	if err != nil {
		t.Fatalf("CountTerms() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("terms after reset = %d, want 0", n)
	}
	execs, err := s.ListExecutions(ctx, store.ExecutionFilter{})
	if err != nil {
		t.Fatalf("ListExecutions() failed: %v", err)
	}
	if len(execs) != 0 {
		t.Errorf("executions after reset = %d, want 0", len(execs))
	}
}

func TestOpenThroughRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")

	// Empty driver name falls back to DSN detection.
	st, err := store.Open("", path, nil)
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	defer st.Close()

	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	if _, ok := st.(*Store); !ok {
		t.Errorf("detected store is %T, want *sqlite.Store", st)
	}
}
