// Package sqlite implements the store contract on embedded SQLite.
//
// The database is opened in embedded mode with WAL so readers (status
// queries, the dashboard) stay concurrent with a running sync. Batch
// upserts run inside a single transaction per batch; the journal table is
// written outside transactions so a failed run still leaves its row behind.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ontodb/ontosync/internal/ontology"
	"github.com/ontodb/ontosync/internal/store"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func init() {
	store.Register("sqlite", New)
}

// Store is the SQLite-backed implementation of store.Store.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

var _ store.Store = (*Store)(nil)

// New opens (and creates if missing) the SQLite database at dsn.
//
// The caller MUST call Close() when done to checkpoint the WAL.
func New(dsn string, logger *log.Logger) (store.Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[sqlite] ", log.LstdFlags)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: dsn, logger: logger}

	// WAL keeps readers concurrent with batch writes
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist.
// Idempotent, safe to call multiple times.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS terms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		term_id TEXT NOT NULL UNIQUE,
		iri TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		description TEXT,
		content_hash TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS term_synonyms (
		term_id INTEGER NOT NULL,
		synonym TEXT NOT NULL,
		UNIQUE (term_id, synonym),
		FOREIGN KEY (term_id) REFERENCES terms(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS term_relationships (
		child_id INTEGER NOT NULL,
		parent_id INTEGER NOT NULL,
		relationship_type TEXT NOT NULL DEFAULT 'is_a',
		UNIQUE (child_id, parent_id, relationship_type),
		FOREIGN KEY (child_id) REFERENCES terms(id) ON DELETE CASCADE,
		FOREIGN KEY (parent_id) REFERENCES terms(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS term_xrefs (
		term_id INTEGER NOT NULL,
		xref_id TEXT NOT NULL,
		xref_db TEXT NOT NULL DEFAULT 'MSH',
		UNIQUE (term_id, xref_id),
		FOREIGN KEY (term_id) REFERENCES terms(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sync_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		mode TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		terms_fetched INTEGER NOT NULL DEFAULT 0,
		terms_inserted INTEGER NOT NULL DEFAULT 0,
		terms_updated INTEGER NOT NULL DEFAULT 0,
		terms_unchanged INTEGER NOT NULL DEFAULT 0,
		terms_skipped INTEGER NOT NULL DEFAULT 0,
		source_version TEXT,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_synonyms_term ON term_synonyms(term_id);
	CREATE INDEX IF NOT EXISTS idx_rel_child ON term_relationships(child_id);
	CREATE INDEX IF NOT EXISTS idx_rel_parent ON term_relationships(parent_id);
	CREATE INDEX IF NOT EXISTS idx_xrefs_term ON term_xrefs(term_id);
	CREATE INDEX IF NOT EXISTS idx_executions_status ON sync_executions(status, started_at);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// UpsertTermBatch writes one batch of terms in a single transaction.
//
// Existing rows are loaded up front in one query, then each term is
// classified against its stored content hash: missing rows are inserted,
// changed rows are updated with their synonyms replaced wholesale, and
// matching rows are left untouched.
func (s *Store) UpsertTermBatch(ctx context.Context, terms []*ontology.Term) (*store.BatchResult, error) {
	res := &store.BatchResult{
		IDByTermID: make(map[string]int64, len(terms)),
		IDByIRI:    make(map[string]int64, len(terms)),
	}
	if len(terms) == 0 {
		return res, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	type existingRow struct {
		id   int64
		hash string
	}
	placeholders := make([]string, len(terms))
	args := make([]interface{}, len(terms))
	for i, t := range terms {
		placeholders[i] = "?"
		args[i] = t.TermID
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, term_id, content_hash FROM terms WHERE term_id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing terms: %w", err)
	}
	existing := make(map[string]existingRow)
	for rows.Next() {
		var row existingRow
		var termID string
		if err := rows.Scan(&row.id, &termID, &row.hash); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan existing term: %w", err)
		}
		existing[termID] = row
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating existing terms: %w", err)
	}
	rows.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, t := range terms {
		prev, ok := existing[t.TermID]
		switch {
		case !ok:
			r, err := tx.ExecContext(ctx, `
				INSERT INTO terms (term_id, iri, label, description, content_hash, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.TermID, t.IRI, t.Label, t.Description, t.ContentHash, now, now)
			if err != nil {
				return nil, fmt.Errorf("failed to insert term %s: %w", t.TermID, err)
			}
			id, err := r.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("failed to read inserted id for %s: %w", t.TermID, err)
			}
			if err := insertSynonyms(ctx, tx, id, t.Synonyms); err != nil {
				return nil, err
			}
			res.Inserted++
			res.IDByTermID[t.TermID] = id
			res.IDByIRI[t.IRI] = id

		case prev.hash == t.ContentHash:
			res.Unchanged++
			res.IDByTermID[t.TermID] = prev.id
			res.IDByIRI[t.IRI] = prev.id

		default:
			if _, err := tx.ExecContext(ctx, `
				UPDATE terms SET iri = ?, label = ?, description = ?, content_hash = ?, updated_at = ?
				WHERE id = ?`,
				t.IRI, t.Label, t.Description, t.ContentHash, now, prev.id); err != nil {
				return nil, fmt.Errorf("failed to update term %s: %w", t.TermID, err)
			}
			// Replace synonyms wholesale so removals propagate.
			if _, err := tx.ExecContext(ctx, `DELETE FROM term_synonyms WHERE term_id = ?`, prev.id); err != nil {
				return nil, fmt.Errorf("failed to clear synonyms for %s: %w", t.TermID, err)
			}
			if err := insertSynonyms(ctx, tx, prev.id, t.Synonyms); err != nil {
				return nil, err
			}
			res.Updated++
			res.IDByTermID[t.TermID] = prev.id
			res.IDByIRI[t.IRI] = prev.id
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return res, nil
}

func insertSynonyms(ctx context.Context, tx *sql.Tx, termDBID int64, synonyms []string) error {
	for _, syn := range synonyms {
		if strings.TrimSpace(syn) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO term_synonyms (term_id, synonym) VALUES (?, ?)
			ON CONFLICT(term_id, synonym) DO NOTHING`,
			termDBID, syn); err != nil {
			return fmt.Errorf("failed to insert synonym: %w", err)
		}
	}
	return nil
}

// InsertRelations writes parent edges, ignoring duplicates.
func (s *Store) InsertRelations(ctx context.Context, rels []store.Relation) (int, error) {
	if len(rels) == 0 {
		return 0, nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, rel := range rels {
		kind := rel.Kind
		if kind == "" {
			kind = ontology.RelationIsA
		}
		r, err := tx.ExecContext(ctx, `
			INSERT INTO term_relationships (child_id, parent_id, relationship_type) VALUES (?, ?, ?)
			ON CONFLICT(child_id, parent_id, relationship_type) DO NOTHING`,
			rel.ChildID, rel.ParentID, kind)
		if err != nil {
			return 0, fmt.Errorf("failed to insert relationship %d->%d: %w", rel.ChildID, rel.ParentID, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit relationships: %w", err)
	}
	return inserted, nil
}

// InsertXRefs writes cross-references, ignoring duplicates.
func (s *Store) InsertXRefs(ctx context.Context, refs []store.XRef) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, ref := range refs {
		db := ref.Database
		if db == "" {
			db = "MSH"
		}
		r, err := tx.ExecContext(ctx, `
			INSERT INTO term_xrefs (term_id, xref_id, xref_db) VALUES (?, ?, ?)
			ON CONFLICT(term_id, xref_id) DO NOTHING`,
			ref.TermDBID, ref.XRefID, db)
		if err != nil {
			return 0, fmt.Errorf("failed to insert xref %s: %w", ref.XRefID, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit xrefs: %w", err)
	}
	return inserted, nil
}

// StoredHashes returns term id -> content hash for every stored term.
func (s *Store) StoredHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT term_id, content_hash FROM terms`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stored hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var termID, hash string
		if err := rows.Scan(&termID, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan stored hash: %w", err)
		}
		hashes[termID] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stored hashes: %w", err)
	}
	return hashes, nil
}

// IRIToIDMap returns IRI -> database id for every stored term.
func (s *Store) IRIToIDMap(ctx context.Context) (map[string]int64, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, iri FROM terms`)
	if err != nil {
		return nil, fmt.Errorf("failed to query iri map: %w", err)
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var id int64
		var iri string
		if err := rows.Scan(&id, &iri); err != nil {
			return nil, fmt.Errorf("failed to scan iri row: %w", err)
		}
		m[iri] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating iri map: %w", err)
	}
	return m, nil
}

// ListTerms returns every stored term joined with synonyms, parent IRIs,
// and cross-references, ordered by term id for deterministic exports.
func (s *Store) ListTerms(ctx context.Context) ([]*ontology.Term, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, term_id, iri, label, description, content_hash
		FROM terms ORDER BY term_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	defer rows.Close()

	var terms []*ontology.Term
	byDBID := make(map[int64]*ontology.Term)
	for rows.Next() {
		var id int64
		var t ontology.Term
		var desc sql.NullString
		if err := rows.Scan(&id, &t.TermID, &t.IRI, &t.Label, &desc, &t.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		t.Description = desc.String
		terms = append(terms, &t)
		byDBID[id] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating terms: %w", err)
	}

	synRows, err := s.conn.QueryContext(ctx, `SELECT term_id, synonym FROM term_synonyms ORDER BY synonym`)
	if err != nil {
		return nil, fmt.Errorf("failed to query synonyms: %w", err)
	}
	defer synRows.Close()
	for synRows.Next() {
		var id int64
		var syn string
		if err := synRows.Scan(&id, &syn); err != nil {
			return nil, fmt.Errorf("failed to scan synonym: %w", err)
		}
		if t, ok := byDBID[id]; ok {
			t.Synonyms = append(t.Synonyms, syn)
		}
	}
	if err := synRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating synonyms: %w", err)
	}

	relRows, err := s.conn.QueryContext(ctx, `
		SELECT r.child_id, p.iri
		FROM term_relationships r JOIN terms p ON p.id = r.parent_id
		ORDER BY p.iri`)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var childID int64
		var parentIRI string
		if err := relRows.Scan(&childID, &parentIRI); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		if t, ok := byDBID[childID]; ok {
			t.ParentIRIs = append(t.ParentIRIs, parentIRI)
		}
	}
	if err := relRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	xrefRows, err := s.conn.QueryContext(ctx, `SELECT term_id, xref_id, xref_db FROM term_xrefs ORDER BY xref_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query xrefs: %w", err)
	}
	defer xrefRows.Close()
	for xrefRows.Next() {
		var id int64
		var xref ontology.XRef
		if err := xrefRows.Scan(&id, &xref.ID, &xref.Database); err != nil {
			return nil, fmt.Errorf("failed to scan xref: %w", err)
		}
		if t, ok := byDBID[id]; ok {
			t.XRefs = append(t.XRefs, xref)
		}
	}
	if err := xrefRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating xrefs: %w", err)
	}

	return terms, nil
}

// DeleteTerm removes a term and, via cascade, its linked rows.
// Returns nil if the term doesn't exist (idempotent).
func (s *Store) DeleteTerm(ctx context.Context, termID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM terms WHERE term_id = ?`, termID); err != nil {
		return fmt.Errorf("failed to delete term %s: %w", termID, err)
	}
	return nil
}

// CountTerms returns the total number of stored terms.
func (s *Store) CountTerms(ctx context.Context) (int, error) {
	return s.count(ctx, "terms")
}

// CountRelations returns the total number of parent edges.
func (s *Store) CountRelations(ctx context.Context) (int, error) {
	return s.count(ctx, "term_relationships")
}

// CountXRefs returns the total number of cross-references.
func (s *Store) CountXRefs(ctx context.Context) (int, error) {
	return s.count(ctx, "term_xrefs")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// CreateExecution opens a journal row in the running state.
func (s *Store) CreateExecution(ctx context.Context, mode string) (int64, error) {
	r, err := s.conn.ExecContext(ctx,
		`INSERT INTO sync_executions (started_at, mode, status) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), mode, store.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to create execution: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read execution id: %w", err)
	}
	return id, nil
}

// CompleteExecution finalizes a journal row.
func (s *Store) CompleteExecution(ctx context.Context, upd store.ExecutionUpdate) error {
	r, err := s.conn.ExecContext(ctx, `
		UPDATE sync_executions SET
			completed_at = ?, status = ?,
			terms_fetched = ?, terms_inserted = ?, terms_updated = ?,
			terms_unchanged = ?, terms_skipped = ?,
			source_version = ?, error_message = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), upd.Status,
		upd.TermsFetched, upd.TermsInserted, upd.TermsUpdated,
		upd.TermsUnchanged, upd.TermsSkipped,
		nullIfEmpty(upd.SourceVersion), nullIfEmpty(upd.ErrorMessage),
		upd.ID)
	if err != nil {
		return fmt.Errorf("failed to complete execution %d: %w", upd.ID, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrExecutionNotFound
	}
	return nil
}

// LastSuccessfulExecution returns the most recent successful run, or nil
// when none exists.
func (s *Store) LastSuccessfulExecution(ctx context.Context) (*store.Execution, error) {
	row := s.conn.QueryRowContext(ctx, selectExecution+`
		WHERE status = ? ORDER BY started_at DESC, id DESC LIMIT 1`,
		store.StatusSuccess)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last successful execution: %w", err)
	}
	return exec, nil
}

// ListExecutions returns journal rows, newest first.
func (s *Store) ListExecutions(ctx context.Context, filter store.ExecutionFilter) ([]*store.Execution, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, filter.Mode)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}

	query := selectExecution
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []*store.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return execs, nil
}

const selectExecution = `
	SELECT id, started_at, completed_at, mode, status,
	       terms_fetched, terms_inserted, terms_updated, terms_unchanged, terms_skipped,
	       source_version, error_message
	FROM sync_executions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row rowScanner) (*store.Execution, error) {
	var exec store.Execution
	var startedAt string
	var completedAt, sourceVersion, errorMessage sql.NullString
	err := row.Scan(
		&exec.ID, &startedAt, &completedAt, &exec.Mode, &exec.Status,
		&exec.TermsFetched, &exec.TermsInserted, &exec.TermsUpdated,
		&exec.TermsUnchanged, &exec.TermsSkipped,
		&sourceVersion, &errorMessage,
	)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		exec.StartedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			exec.CompletedAt = &t
		}
	}
	exec.SourceVersion = sourceVersion.String
	exec.ErrorMessage = errorMessage.String
	return &exec, nil
}

// Reset deletes all synced data and the execution journal.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"term_xrefs", "term_relationships", "term_synonyms", "terms", "sync_executions"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
