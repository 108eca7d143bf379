package ontology

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint computes the content fingerprint for a term: the SHA-256 hex
// digest over label, description, the sorted synonym set, and the sorted
// parent reference set, joined with stable separators. Semantically
// identical input yields the same digest regardless of slice ordering,
// which is what makes incremental runs correct.
func Fingerprint(label, description string, synonyms, parentRefs []string) string {
	syn := append([]string(nil), synonyms...)
	sort.Strings(syn)
	par := append([]string(nil), parentRefs...)
	sort.Strings(par)

	payload := label + "|" + description + "|" + strings.Join(syn, ",") + "|" + strings.Join(par, ",")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ComputeHash fills ContentHash from the term's current fields and returns
// it.
func (t *Term) ComputeHash() string {
	t.ContentHash = Fingerprint(t.Label, t.Description, t.Synonyms, t.ParentRefs)
	return t.ContentHash
}
