// Package ols talks to an OLS-style ontology catalog over HTTP. It fetches
// paginated term listings, resolves parent links to canonical IRIs through a
// bounded worker pool, and extracts cross-reference identifiers from the raw
// term payloads.
package ols

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RawTerm is a term exactly as the catalog serves it, before normalization.
type RawTerm struct {
	OboID       string     `json:"obo_id"`
	IRI         string     `json:"iri"`
	Label       string     `json:"label"`
	Description []string   `json:"description"`
	Synonyms    []string   `json:"synonyms"`
	OboXRefs    []OboXRef  `json:"obo_xref"`
	Annotation  Annotation `json:"annotation"`
	Links       TermLinks  `json:"_links"`
}

// OboXRef is a structured cross-reference attached to a term.
type OboXRef struct {
	Database string `json:"database"`
	ID       string `json:"id"`
}

// Annotation carries the free-form annotation block; only the raw
// cross-reference strings are interesting here.
type Annotation struct {
	DatabaseCrossReference []string `json:"database_cross_reference"`
}

// TermLinks is the HAL _links block of a term.
type TermLinks struct {
	Parents parentLinks `json:"parents"`
}

type linkRef struct {
	Href string `json:"href"`
}

// parentLinks tolerates both shapes the catalog serves for _links.parents:
// a single link object or a list of them.
type parentLinks []linkRef

func (p *parentLinks) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*p = nil
		return nil
	}
	if data[0] == '[' {
		var list []linkRef
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*p = list
		return nil
	}
	var one linkRef
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*p = parentLinks{one}
	return nil
}

// TermsPage is one page of the terms listing. The same shape comes back
// from a parents link, so it doubles as the parent resolution response.
type TermsPage struct {
	Embedded struct {
		Terms []RawTerm `json:"terms"`
	} `json:"_embedded"`
	Page PageInfo `json:"page"`
}

// PageInfo is the pagination envelope of a listing response.
type PageInfo struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

// FirstDescription returns the first description string, or "" when the
// term has none.
func (t *RawTerm) FirstDescription() string {
	if len(t.Description) == 0 {
		return ""
	}
	return t.Description[0]
}

// ParentHrefs returns the raw parent link URLs attached to the term.
func (t *RawTerm) ParentHrefs() []string {
	if len(t.Links.Parents) == 0 {
		return nil
	}
	hrefs := make([]string, 0, len(t.Links.Parents))
	for _, l := range t.Links.Parents {
		if l.Href != "" {
			hrefs = append(hrefs, l.Href)
		}
	}
	return hrefs
}

// XRefIDs extracts cross-reference identifiers for the given namespace tags.
// Structured obo_xref entries match when their database tag contains one of
// the namespaces, and raw annotation strings match when prefixed with
// "<namespace>:"; the prefix is stripped so only the bare identifier
// remains. Results are deduplicated in first-seen order.
func (t *RawTerm) XRefIDs(namespaces []string) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, x := range t.OboXRefs {
		db := strings.ToUpper(x.Database)
		for _, ns := range namespaces {
			if ns != "" && strings.Contains(db, strings.ToUpper(ns)) {
				add(x.ID)
				break
			}
		}
	}
	for _, s := range t.Annotation.DatabaseCrossReference {
		for _, ns := range namespaces {
			if ns != "" && strings.HasPrefix(s, ns+":") {
				add(strings.TrimPrefix(s, ns+":"))
				break
			}
		}
	}
	return ids
}

// IRIFromHref recovers a canonical IRI from a link URL. Catalog links carry
// the IRI either as an ?iri= query parameter or percent-encoded as the last
// path segment after /terms/; anything else is assumed to already be an IRI.
func IRIFromHref(href string) string {
	if i := strings.Index(href, "?iri="); i >= 0 {
		iri := href[i+len("?iri="):]
		if j := strings.Index(iri, "&"); j >= 0 {
			iri = iri[:j]
		}
		return iri
	}
	if i := strings.Index(href, "/terms/"); i >= 0 {
		encoded := href[i+len("/terms/"):]
		return strings.NewReplacer("%3A", ":", "%2F", "/").Replace(encoded)
	}
	return href
}
