// Package ontology defines the canonical term record produced by the
// transformer and consumed by the loader, together with the content
// fingerprint used for change detection.
//
// A Term is the strict, validated shape of one catalog entry. Raw API
// records that do not conform are rejected at the transformer boundary
// rather than propagated downstream.
package ontology

import (
	"fmt"
	"strings"
)

// RelationIsA is the default hierarchy relation kind.
const RelationIsA = "is_a"

// XRef is a cross-reference from a term into one external namespace.
type XRef struct {
	ID       string `json:"id"`
	Database string `json:"database"`
}

// Term is the canonical record for one catalog term.
type Term struct {
	// TermID is the stable external identifier (e.g. EFO:0000408).
	TermID string `json:"term_id"`
	// IRI is the canonical resource URI.
	IRI   string `json:"iri"`
	Label string `json:"label"`
	// Description is optional; empty means absent.
	Description string   `json:"description,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
	// ParentRefs are the raw parent link references carried by the source
	// record. They feed the content fingerprint and are later resolved to
	// canonical IRIs.
	ParentRefs []string `json:"parent_refs,omitempty"`
	// ParentIRIs are the resolved canonical parent identifiers. Empty until
	// relationship resolution has run.
	ParentIRIs []string `json:"parent_iris,omitempty"`
	XRefs      []XRef   `json:"xrefs,omitempty"`
	// ContentHash is the fingerprint over label, description, synonyms, and
	// parent references.
	ContentHash string `json:"content_hash"`
}

// Validate checks the required fields. Terms failing validation are dropped
// by the pipeline and counted as skipped.
func (t *Term) Validate() error {
	if strings.TrimSpace(t.TermID) == "" {
		return fmt.Errorf("term id is required")
	}
	if strings.TrimSpace(t.IRI) == "" {
		return fmt.Errorf("iri is required")
	}
	if strings.TrimSpace(t.Label) == "" {
		return fmt.Errorf("label is required")
	}
	return nil
}
