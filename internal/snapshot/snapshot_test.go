package snapshot

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ontodb/ontosync/internal/ontology"
	"github.com/ontodb/ontosync/internal/store"
	"github.com/ontodb/ontosync/internal/store/sqlite"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return st
}

func seedTerm(id, iri, label string, parents ...string) *ontology.Term {
	t := &ontology.Term{
		TermID:     id,
		IRI:        iri,
		Label:      label,
		ParentIRIs: parents,
	}
	t.ComputeHash()
	return t
}

// seedStore loads three terms with two relationships and two xrefs.
func seedStore(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	root := seedTerm("D000001", "http://id.nlm.nih.gov/mesh/D000001", "calcimycin")
	root.Description = "An ionophorous antibiotic."
	root.Synonyms = []string{"A-23187", "A23187"}
	root.XRefs = []ontology.XRef{{ID: "D000001", Database: "MSH"}}
	root.ComputeHash()

	childA := seedTerm("D000002", "http://id.nlm.nih.gov/mesh/D000002", "temefos",
		"http://id.nlm.nih.gov/mesh/D000001")
	childA.XRefs = []ontology.XRef{{ID: "D000002", Database: "MSH"}}
	childA.ComputeHash()

	childB := seedTerm("D000003", "http://id.nlm.nih.gov/mesh/D000003", "abattoirs",
		"http://id.nlm.nih.gov/mesh/D000001")
	childB.ComputeHash()

	terms := []*ontology.Term{root, childA, childB}
	br, err := st.UpsertTermBatch(ctx, terms)
	if err != nil {
		t.Fatalf("failed to seed terms: %v", err)
	}

	iriToID, err := st.IRIToIDMap(ctx)
	if err != nil {
		t.Fatalf("failed to load iri map: %v", err)
	}
	var rels []store.Relation
	var xrefs []store.XRef
	for _, term := range terms {
		id := br.IDByTermID[term.TermID]
		for _, p := range term.ParentIRIs {
			rels = append(rels, store.Relation{ChildID: id, ParentID: iriToID[p]})
		}
		for _, x := range term.XRefs {
			xrefs = append(xrefs, store.XRef{TermDBID: id, XRefID: x.ID, Database: x.Database})
		}
	}
	if _, err := st.InsertRelations(ctx, rels); err != nil {
		t.Fatalf("failed to seed relationships: %v", err)
	}
	if _, err := st.InsertXRefs(ctx, xrefs); err != nil {
		t.Fatalf("failed to seed xrefs: %v", err)
	}
}

func TestExportImport_JSONLRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)
	seedStore(t, src)

	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	exp, err := Export(ctx, src, ExportOptions{Path: path})
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	if exp.TermsWritten != 3 {
		t.Errorf("expected 3 terms written, got %d", exp.TermsWritten)
	}
	if exp.Format != FormatJSONL {
		t.Errorf("expected jsonl format, got %s", exp.Format)
	}

	dst := openTestStore(t)
	res, err := Import(ctx, dst, ImportOptions{Path: path})
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if res.TermsImported != 3 {
		t.Errorf("expected 3 terms imported, got %d", res.TermsImported)
	}
	if res.RelationsImported != 2 {
		t.Errorf("expected 2 relationships imported, got %d", res.RelationsImported)
	}
	if res.XRefsImported != 2 {
		t.Errorf("expected 2 xrefs imported, got %d", res.XRefsImported)
	}
	if len(res.Errors) != 0 {
		t.Errorf("expected no errors, got %v", res.Errors)
	}

	srcTerms, err := src.ListTerms(ctx)
	if err != nil {
		t.Fatalf("failed to list source terms: %v", err)
	}
	dstTerms, err := dst.ListTerms(ctx)
	if err != nil {
		t.Fatalf("failed to list imported terms: %v", err)
	}
	if len(dstTerms) != len(srcTerms) {
		t.Fatalf("expected %d terms after import, got %d", len(srcTerms), len(dstTerms))
	}
	for i := range srcTerms {
		if dstTerms[i].TermID != srcTerms[i].TermID {
			t.Errorf("term %d: expected %s, got %s", i, srcTerms[i].TermID, dstTerms[i].TermID)
		}
		if dstTerms[i].Label != srcTerms[i].Label {
			t.Errorf("term %s: expected label %q, got %q",
				srcTerms[i].TermID, srcTerms[i].Label, dstTerms[i].Label)
		}
		if dstTerms[i].ContentHash != srcTerms[i].ContentHash {
			t.Errorf("term %s: content hash changed across roundtrip", srcTerms[i].TermID)
		}
		if len(dstTerms[i].Synonyms) != len(srcTerms[i].Synonyms) {
			t.Errorf("term %s: expected %d synonyms, got %d",
				srcTerms[i].TermID, len(srcTerms[i].Synonyms), len(dstTerms[i].Synonyms))
		}
	}

	// Importing the same snapshot again should be a no-op.
	res2, err := Import(ctx, dst, ImportOptions{Path: path})
	if err != nil {
		t.Fatalf("failed to re-import: %v", err)
	}
	if res2.RelationsImported != 0 || res2.XRefsImported != 0 {
		t.Errorf("expected idempotent re-import, got %d relationships, %d xrefs",
			res2.RelationsImported, res2.XRefsImported)
	}
	count, err := dst.CountTerms(ctx)
	if err != nil {
		t.Fatalf("failed to count terms: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 terms after re-import, got %d", count)
	}
}

func TestExport_YAML(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)
	seedStore(t, src)

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	exp, err := Export(ctx, src, ExportOptions{Path: path})
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	if exp.Format != FormatYAML {
		t.Errorf("expected yaml format, got %s", exp.Format)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to parse snapshot: %v", err)
	}
	if doc.TermCount != 3 {
		t.Errorf("expected term_count 3, got %d", doc.TermCount)
	}
	if len(doc.Terms) != 3 {
		t.Fatalf("expected 3 terms, got %d", len(doc.Terms))
	}
	if doc.Terms[0].TermID != "D000001" {
		t.Errorf("expected first term D000001, got %s", doc.Terms[0].TermID)
	}

	// A YAML snapshot should import like a JSONL one.
	dst := openTestStore(t)
	res, err := Import(ctx, dst, ImportOptions{Path: path})
	if err != nil {
		t.Fatalf("failed to import yaml snapshot: %v", err)
	}
	if res.TermsImported != 3 {
		t.Errorf("expected 3 terms imported, got %d", res.TermsImported)
	}
	if res.RelationsImported != 2 {
		t.Errorf("expected 2 relationships imported, got %d", res.RelationsImported)
	}
}

func TestImport_DryRun(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)
	seedStore(t, src)

	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	if _, err := Export(ctx, src, ExportOptions{Path: path}); err != nil {
		t.Fatalf("failed to export: %v", err)
	}

	dst := openTestStore(t)
	res, err := Import(ctx, dst, ImportOptions{Path: path, DryRun: true})
	if err != nil {
		t.Fatalf("failed to dry-run import: %v", err)
	}
	if res.TermsImported != 3 {
		t.Errorf("expected 3 terms counted, got %d", res.TermsImported)
	}
	count, err := dst.CountTerms(ctx)
	if err != nil {
		t.Fatalf("failed to count terms: %v", err)
	}
	if count != 0 {
		t.Errorf("expected dry run to write nothing, found %d terms", count)
	}
}

func TestImport_InvalidRecordsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	lines := []string{
		`{"term_id":"D000001","iri":"http://id.nlm.nih.gov/mesh/D000001","label":"calcimycin"}`,
		`{"term_id":"D000002","iri":"http://id.nlm.nih.gov/mesh/D000002","label":""}`,
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	st := openTestStore(t)
	res, err := Import(context.Background(), st, ImportOptions{Path: path})
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if res.TermsImported != 1 {
		t.Errorf("expected 1 term imported, got %d", res.TermsImported)
	}
	if res.TermsSkipped != 1 {
		t.Errorf("expected 1 term skipped, got %d", res.TermsSkipped)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", res.Errors)
	}
	if !strings.Contains(res.Errors[0], "D000002") {
		t.Errorf("expected error to name the bad record, got %q", res.Errors[0])
	}
}

func TestImport_MalformedJSONReportsRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	content := `{"term_id":"D000001","iri":"http://id.nlm.nih.gov/mesh/D000001","label":"calcimycin"}
{not json`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	st := openTestStore(t)
	_, err := Import(context.Background(), st, ImportOptions{Path: path})
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !strings.Contains(err.Error(), "record 2") {
		t.Errorf("expected error to name record 2, got %v", err)
	}
}

func TestImport_BackupWritesCurrentState(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)
	seedStore(t, src)

	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	if _, err := Export(ctx, src, ExportOptions{Path: path}); err != nil {
		t.Fatalf("failed to export: %v", err)
	}

	// Destination already holds one term; the backup should capture it.
	dst := openTestStore(t)
	existing := seedTerm("D999999", "http://id.nlm.nih.gov/mesh/D999999", "placeholder")
	if _, err := dst.UpsertTermBatch(ctx, []*ontology.Term{existing}); err != nil {
		t.Fatalf("failed to seed destination: %v", err)
	}

	res, err := Import(ctx, dst, ImportOptions{Path: path, Backup: true})
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if res.BackupCreated == "" {
		t.Fatal("expected a backup path")
	}
	if !strings.Contains(res.BackupCreated, ".backup.") {
		t.Errorf("unexpected backup name: %s", res.BackupCreated)
	}

	data, err := os.ReadFile(res.BackupCreated)
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if !strings.Contains(string(data), "D999999") {
		t.Error("expected backup to contain the pre-import term")
	}
}

func TestImport_MissingFile(t *testing.T) {
	st := openTestStore(t)
	_, err := Import(context.Background(), st, ImportOptions{Path: filepath.Join(t.TempDir(), "missing.jsonl")})
	if err == nil {
		t.Fatal("expected error for missing snapshot file")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected missing-file error, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"snapshot.jsonl", FormatJSONL},
		{"snapshot.yaml", FormatYAML},
		{"snapshot.yml", FormatYAML},
		{"SNAPSHOT.YAML", FormatYAML},
		{"terms.json", FormatJSONL},
		{"noext", FormatJSONL},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}
