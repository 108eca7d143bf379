package pipeline

import (
	"strings"

	"github.com/ontodb/ontosync/internal/ols"
	"github.com/ontodb/ontosync/internal/ontology"
)

// Transformer normalizes raw catalog terms into the canonical model.
type Transformer struct {
	namespaces []string
	primaryDB  string
}

// NewTransformer builds a transformer that extracts cross-references for
// the given namespace tags. An empty list falls back to the MeSH family.
func NewTransformer(namespaces []string) *Transformer {
	if len(namespaces) == 0 {
		namespaces = []string{"MSH", "MeSH", "MESH"}
	}
	return &Transformer{
		namespaces: namespaces,
		primaryDB:  namespaces[0],
	}
}

// Normalize converts a raw term into the canonical model, validates it,
// and computes its content hash. A non-nil error means the term failed
// validation and should be counted as skipped.
func (tr *Transformer) Normalize(raw *ols.RawTerm) (*ontology.Term, error) {
	term := &ontology.Term{
		TermID:      strings.TrimSpace(raw.OboID),
		IRI:         strings.TrimSpace(raw.IRI),
		Label:       strings.TrimSpace(raw.Label),
		Description: strings.TrimSpace(raw.FirstDescription()),
		Synonyms:    cleanStrings(raw.Synonyms),
		ParentRefs:  raw.ParentHrefs(),
	}
	for _, id := range raw.XRefIDs(tr.namespaces) {
		term.XRefs = append(term.XRefs, ontology.XRef{ID: id, Database: tr.primaryDB})
	}
	if err := term.Validate(); err != nil {
		return nil, err
	}
	term.ComputeHash()
	return term, nil
}

// cleanStrings drops blank entries and duplicates, preserving order.
func cleanStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
