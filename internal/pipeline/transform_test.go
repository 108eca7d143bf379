package pipeline

import (
	"reflect"
	"testing"

	"github.com/ontodb/ontosync/internal/ols"
)

func TestNormalize_Valid(t *testing.T) {
	tr := NewTransformer([]string{"MSH", "MeSH", "MESH"})
	raw := &ols.RawTerm{
		OboID:       "EFO:0000001",
		IRI:         "http://www.ebi.ac.uk/efo/EFO_0000001",
		Label:       "experimental factor",
		Description: []string{"first description", "second description"},
		Synonyms:    []string{"factor", "", "factor"},
		OboXRefs:    []ols.OboXRef{{Database: "MeSH", ID: "D005060"}},
		Annotation: ols.Annotation{DatabaseCrossReference: []string{
			"MSH:D005061",
			"UMLS:C0015127",
		}},
	}

	term, err := tr.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}
	if term.TermID != "EFO:0000001" || term.IRI != raw.IRI {
		t.Errorf("identifiers = %q / %q", term.TermID, term.IRI)
	}
	if term.Description != "first description" {
		t.Errorf("description = %q, want the first entry", term.Description)
	}
	if !reflect.DeepEqual(term.Synonyms, []string{"factor"}) {
		t.Errorf("synonyms = %v, want deduplicated [factor]", term.Synonyms)
	}
	if len(term.XRefs) != 2 {
		t.Fatalf("xrefs = %v, want 2 entries", term.XRefs)
	}
	if term.XRefs[0].ID != "D005060" || term.XRefs[0].Database != "MSH" {
		t.Errorf("xref[0] = %+v", term.XRefs[0])
	}
	if term.XRefs[1].ID != "D005061" {
		t.Errorf("xref[1] = %+v", term.XRefs[1])
	}
	if term.ContentHash == "" {
		t.Error("content hash not computed")
	}
}

func TestNormalize_InvalidIsRejected(t *testing.T) {
	tr := NewTransformer(nil)
	tests := []struct {
		name string
		raw  ols.RawTerm
	}{
		{"empty label", ols.RawTerm{OboID: "EFO:1", IRI: "http://x/1", Label: "  "}},
		{"empty identifier", ols.RawTerm{IRI: "http://x/1", Label: "ok"}},
		{"empty iri", ols.RawTerm{OboID: "EFO:1", Label: "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tr.Normalize(&tt.raw); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNormalize_TrimsFields(t *testing.T) {
	tr := NewTransformer(nil)
	raw := &ols.RawTerm{
		OboID:       " EFO:0000003 ",
		IRI:         " http://www.ebi.ac.uk/efo/EFO_0000003 ",
		Label:       "  cell line  ",
		Description: []string{"  a cultured cell population  "},
	}

	term, err := tr.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}
	if term.TermID != "EFO:0000003" {
		t.Errorf("term id = %q", term.TermID)
	}
	if term.Label != "cell line" {
		t.Errorf("label = %q", term.Label)
	}
	if term.Description != "a cultured cell population" {
		t.Errorf("description = %q", term.Description)
	}
}

func TestNormalize_HashStableUnderOrdering(t *testing.T) {
	tr := NewTransformer(nil)
	a := &ols.RawTerm{
		OboID:    "EFO:0000002",
		IRI:      "http://www.ebi.ac.uk/efo/EFO_0000002",
		Label:    "study design",
		Synonyms: []string{"design", "plan"},
	}
	b := &ols.RawTerm{
		OboID:    "EFO:0000002",
		IRI:      "http://www.ebi.ac.uk/efo/EFO_0000002",
		Label:    "study design",
		Synonyms: []string{"plan", "design"},
	}

	ta, err := tr.Normalize(a)
	if err != nil {
		t.Fatalf("Normalize(a) failed: %v", err)
	}
	tb, err := tr.Normalize(b)
	if err != nil {
		t.Fatalf("Normalize(b) failed: %v", err)
	}
	if ta.ContentHash != tb.ContentHash {
		t.Errorf("hash differs under synonym reordering: %s vs %s", ta.ContentHash, tb.ContentHash)
	}
}
