package ontology

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := &Term{
		TermID: "EFO:0000408",
		IRI:    "http://www.ebi.ac.uk/efo/EFO_0000408",
		Label:  "disease",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid term should pass: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Term)
	}{
		{"empty term id", func(tm *Term) { tm.TermID = "" }},
		{"whitespace term id", func(tm *Term) { tm.TermID = "   " }},
		{"empty iri", func(tm *Term) { tm.IRI = "" }},
		{"empty label", func(tm *Term) { tm.Label = "" }},
		{"whitespace label", func(tm *Term) { tm.Label = "\t\n" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tm := *valid
			tc.mutate(&tm)
			if err := tm.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestFingerprintStableUnderReordering(t *testing.T) {
	a := Fingerprint("disease", "a disposition",
		[]string{"disorder", "illness", "sickness"},
		[]string{"http://parent/2", "http://parent/1"})
	b := Fingerprint("disease", "a disposition",
		[]string{"sickness", "disorder", "illness"},
		[]string{"http://parent/1", "http://parent/2"})

	if a != b {
		t.Errorf("fingerprint should be stable under reordering: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if strings.ToLower(a) != a {
		t.Errorf("expected lowercase hex digest, got %s", a)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint("disease", "desc", []string{"s1"}, []string{"p1"})

	changed := []struct {
		name string
		hash string
	}{
		{"label", Fingerprint("syndrome", "desc", []string{"s1"}, []string{"p1"})},
		{"description", Fingerprint("disease", "other", []string{"s1"}, []string{"p1"})},
		{"synonym added", Fingerprint("disease", "desc", []string{"s1", "s2"}, []string{"p1"})},
		{"parent removed", Fingerprint("disease", "desc", []string{"s1"}, nil)},
		{"empty description", Fingerprint("disease", "", []string{"s1"}, []string{"p1"})},
	}

	for _, tc := range changed {
		if tc.hash == base {
			t.Errorf("fingerprint should change when %s changes", tc.name)
		}
	}
}

func TestFingerprintDoesNotMutateInput(t *testing.T) {
	synonyms := []string{"z", "a", "m"}
	parents := []string{"p2", "p1"}
	Fingerprint("label", "", synonyms, parents)

	if synonyms[0] != "z" || synonyms[1] != "a" || synonyms[2] != "m" {
		t.Errorf("synonym slice was mutated: %v", synonyms)
	}
	if parents[0] != "p2" {
		t.Errorf("parent slice was mutated: %v", parents)
	}
}

func TestComputeHash(t *testing.T) {
	tm := &Term{
		TermID:     "EFO:0000001",
		IRI:        "http://www.ebi.ac.uk/efo/EFO_0000001",
		Label:      "experimental factor",
		Synonyms:   []string{"factor"},
		ParentRefs: []string{"http://api/terms/EFO_0000001/parents"},
	}
	h := tm.ComputeHash()
	if h == "" {
		t.Fatal("expected non-empty hash")
	}
	if tm.ContentHash != h {
		t.Errorf("ComputeHash should store the digest on the term")
	}
	if again := tm.ComputeHash(); again != h {
		t.Errorf("repeated ComputeHash should be deterministic: %s != %s", again, h)
	}
}
