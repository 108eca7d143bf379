// Package snapshot moves synced ontology data in and out of portable
// files: JSONL for machine pipelines, YAML for human review. Imports are
// non-destructive upserts through the same two-pass discipline the sync
// pipeline uses, so a snapshot can seed a fresh store or top up an
// existing one.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ontodb/ontosync/internal/ontology"
	"github.com/ontodb/ontosync/internal/store"
)

// Snapshot formats.
const (
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
)

const importBatchSize = 250

// Record is one term in a portable snapshot.
type Record struct {
	TermID      string       `json:"term_id" yaml:"term_id"`
	IRI         string       `json:"iri" yaml:"iri"`
	Label       string       `json:"label" yaml:"label"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Synonyms    []string     `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	ParentIRIs  []string     `json:"parent_iris,omitempty" yaml:"parent_iris,omitempty"`
	XRefs       []XRefRecord `json:"xrefs,omitempty" yaml:"xrefs,omitempty"`
	ContentHash string       `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
}

// XRefRecord is one cross-reference inside a Record.
type XRefRecord struct {
	ID       string `json:"id" yaml:"id"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}

// yamlDoc wraps YAML exports with a small header.
type yamlDoc struct {
	ExportedAt time.Time `yaml:"exported_at"`
	TermCount  int       `yaml:"term_count"`
	Terms      []Record  `yaml:"terms"`
}

// DetectFormat infers the snapshot format from the file extension.
// Defaults to JSONL.
func DetectFormat(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSONL
}

func fromTerm(t *ontology.Term) Record {
	rec := Record{
		TermID:      t.TermID,
		IRI:         t.IRI,
		Label:       t.Label,
		Description: t.Description,
		Synonyms:    t.Synonyms,
		ParentIRIs:  t.ParentIRIs,
		ContentHash: t.ContentHash,
	}
	for _, x := range t.XRefs {
		rec.XRefs = append(rec.XRefs, XRefRecord{ID: x.ID, Database: x.Database})
	}
	return rec
}

func toTerm(rec Record) *ontology.Term {
	t := &ontology.Term{
		TermID:      rec.TermID,
		IRI:         rec.IRI,
		Label:       rec.Label,
		Description: rec.Description,
		Synonyms:    rec.Synonyms,
		ParentIRIs:  rec.ParentIRIs,
		ContentHash: rec.ContentHash,
	}
	for _, x := range rec.XRefs {
		t.XRefs = append(t.XRefs, ontology.XRef{ID: x.ID, Database: x.Database})
	}
	if t.ContentHash == "" {
		t.ComputeHash()
	}
	return t
}

// ExportOptions configures Export.
type ExportOptions struct {
	// Path is the output file. Created or truncated.
	Path string
	// Format is jsonl or yaml; empty means detect from the extension.
	Format string
}

// ExportResult contains statistics about an export.
type ExportResult struct {
	TermsWritten int
	Format       string
	Path         string
}

// Export writes every stored term to a snapshot file. The file is written
// to a temp path and renamed into place so readers never see a partial
// snapshot.
func Export(ctx context.Context, st store.Store, opts ExportOptions) (*ExportResult, error) {
	format := opts.Format
	if format == "" {
		format = DetectFormat(opts.Path)
	}
	if format != FormatJSONL && format != FormatYAML {
		return nil, fmt.Errorf("unsupported snapshot format: %s", format)
	}

	terms, err := st.ListTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms: %w", err)
	}
	records := make([]Record, len(terms))
	for i, t := range terms {
		records[i] = fromTerm(t)
	}

	// Write atomically via temp file
	tmpPath := opts.Path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(f)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				f.Close()
				_ = os.Remove(tmpPath)
				return nil, fmt.Errorf("failed to encode record %s: %w", rec.TermID, err)
			}
		}
	case FormatYAML:
		doc := yamlDoc{ExportedAt: time.Now().UTC(), TermCount: len(records), Terms: records}
		data, err := yaml.Marshal(doc)
		if err != nil {
			f.Close()
			_ = os.Remove(tmpPath)
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			_ = os.Remove(tmpPath)
			return nil, fmt.Errorf("failed to write snapshot: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, opts.Path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return &ExportResult{TermsWritten: len(records), Format: format, Path: opts.Path}, nil
}

// ImportOptions configures Import.
type ImportOptions struct {
	// Path is the snapshot file to read.
	Path string
	// DryRun parses and validates without writing to the store.
	DryRun bool
	// Backup exports the store's current contents next to the snapshot
	// before any write, as <path>.backup.<timestamp>.
	Backup bool
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	TermsImported     int
	TermsSkipped      int
	RelationsImported int
	RelationsSkipped  int
	XRefsImported     int
	BackupCreated     string
	Errors            []string
}

// Import reads a snapshot and upserts its contents into the store.
// Invalid records are collected in Errors and skipped, never fatal.
func Import(ctx context.Context, st store.Store, opts ImportOptions) (*ImportResult, error) {
	if _, err := os.Stat(opts.Path); err != nil {
		return nil, fmt.Errorf("snapshot file does not exist: %w", err)
	}

	records, err := readRecords(opts.Path)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}

	var terms []*ontology.Term
	for _, rec := range records {
		term := toTerm(rec)
		if err := term.Validate(); err != nil {
			result.TermsSkipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("invalid record %q: %v", rec.TermID, err))
			continue
		}
		terms = append(terms, term)
	}

	if opts.DryRun {
		result.TermsImported = len(terms)
		return result, nil
	}

	if opts.Backup {
		backupPath := opts.Path + ".backup." + time.Now().Format("20060102-150405")
		if _, err := Export(ctx, st, ExportOptions{Path: backupPath, Format: DetectFormat(opts.Path)}); err != nil {
			return nil, fmt.Errorf("failed to create backup: %w", err)
		}
		result.BackupCreated = backupPath
	}

	idByTermID := make(map[string]int64, len(terms))
	for start := 0; start < len(terms); start += importBatchSize {
		end := start + importBatchSize
		if end > len(terms) {
			end = len(terms)
		}
		br, err := st.UpsertTermBatch(ctx, terms[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to import batch %d-%d: %w", start, end, err)
		}
		result.TermsImported += br.Inserted + br.Updated + br.Unchanged
		for k, v := range br.IDByTermID {
			idByTermID[k] = v
		}
	}

	iriToID, err := st.IRIToIDMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load iri map: %w", err)
	}

	var rels []store.Relation
	var xrefs []store.XRef
	for _, t := range terms {
		id, ok := idByTermID[t.TermID]
		if !ok {
			continue
		}
		for _, parentIRI := range t.ParentIRIs {
			parentID, ok := iriToID[parentIRI]
			if !ok {
				result.RelationsSkipped++
				continue
			}
			rels = append(rels, store.Relation{ChildID: id, ParentID: parentID})
		}
		for _, x := range t.XRefs {
			xrefs = append(xrefs, store.XRef{TermDBID: id, XRefID: x.ID, Database: x.Database})
		}
	}

	n, err := st.InsertRelations(ctx, rels)
	if err != nil {
		return nil, fmt.Errorf("failed to import relationships: %w", err)
	}
	result.RelationsImported = n

	n, err = st.InsertXRefs(ctx, xrefs)
	if err != nil {
		return nil, fmt.Errorf("failed to import cross-references: %w", err)
	}
	result.XRefsImported = n

	return result, nil
}

func readRecords(path string) ([]Record, error) {
	switch DetectFormat(path) {
	case FormatYAML:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}
		var doc yamlDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML snapshot: %w", err)
		}
		return doc.Terms, nil

	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot: %w", err)
		}
		defer f.Close()

		var records []Record
		dec := json.NewDecoder(f)
		line := 0
		for {
			var rec Record
			if err := dec.Decode(&rec); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("invalid JSON at record %d: %w", line+1, err)
			}
			line++
			records = append(records, rec)
		}
		return records, nil
	}
}
