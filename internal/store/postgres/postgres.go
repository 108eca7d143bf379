// Package postgres implements the store contract on PostgreSQL via lib/pq.
//
// The schema mirrors the SQLite backend with native types: BIGSERIAL keys
// and TIMESTAMPTZ timestamps. Intended for shared deployments where several
// consumers query the synced ontology; the embedded SQLite backend remains
// the default for single-host use.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lib/pq"

	"github.com/ontodb/ontosync/internal/ontology"
	"github.com/ontodb/ontosync/internal/store"
)

func init() {
	store.Register("postgres", New)
}

// Store is the PostgreSQL-backed implementation of store.Store.
type Store struct {
	conn   *sql.DB
	logger *log.Logger
}

var _ store.Store = (*Store)(nil)

// New connects to the PostgreSQL server at dsn.
func New(dsn string, logger *log.Logger) (store.Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[postgres] ", log.LstdFlags)
	}

	conn, err := sql.Open("postgres", dsn)
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

	return &Store{conn: conn, logger: logger}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS terms (
		id BIGSERIAL PRIMARY KEY,
		term_id TEXT NOT NULL UNIQUE,
		iri TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		description TEXT,
		content_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS term_synonyms (
		term_id BIGINT NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
		synonym TEXT NOT NULL,
		UNIQUE (term_id, synonym)
	);

	CREATE TABLE IF NOT EXISTS term_relationships (
		child_id BIGINT NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
		parent_id BIGINT NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
		relationship_type TEXT NOT NULL DEFAULT 'is_a',
		UNIQUE (child_id, parent_id, relationship_type)
	);

	CREATE TABLE IF NOT EXISTS term_xrefs (
		term_id BIGINT NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
		xref_id TEXT NOT NULL,
		xref_db TEXT NOT NULL DEFAULT 'MSH',
		UNIQUE (term_id, xref_id)
	);

	CREATE TABLE IF NOT EXISTS sync_executions (
		id BIGSERIAL PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
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

// UpsertTermBatch writes one batch of terms in a single transaction,
// classifying each term against its stored content hash.
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

	termIDs := make([]string, len(terms))
	for i, t := range terms {
		termIDs[i] = t.TermID
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, term_id, content_hash FROM terms WHERE term_id = ANY($1)`,
		pq.Array(termIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load existing terms: %w", err)
	}
	type existingRow struct {
		id   int64
		hash string
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

	now := time.Now().UTC()
	for _, t := range terms {
		prev, ok := existing[t.TermID]
		switch {
		case !ok:
			var id int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO terms (term_id, iri, label, description, content_hash, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
				t.TermID, t.IRI, t.Label, t.Description, t.ContentHash, now, now).Scan(&id)
			if err != nil {
				return nil, fmt.Errorf("failed to insert term %s: %w", t.TermID, err)
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
				UPDATE terms SET iri = $1, label = $2, description = $3, content_hash = $4, updated_at = $5
				WHERE id = $6`,
				t.IRI, t.Label, t.Description, t.ContentHash, now, prev.id); err != nil {
				return nil, fmt.Errorf("failed to update term %s: %w", t.TermID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM term_synonyms WHERE term_id = $1`, prev.id); err != nil {
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
		if syn == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO term_synonyms (term_id, synonym) VALUES ($1, $2)
			ON CONFLICT (term_id, synonym) DO NOTHING`,
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
			INSERT INTO term_relationships (child_id, parent_id, relationship_type) VALUES ($1, $2, $3)
			ON CONFLICT (child_id, parent_id, relationship_type) DO NOTHING`,
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
			INSERT INTO term_xrefs (term_id, xref_id, xref_db) VALUES ($1, $2, $3)
			ON CONFLICT (term_id, xref_id) DO NOTHING`,
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
// and cross-references, ordered by term id.
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
func (s *Store) DeleteTerm(ctx context.Context, termID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM terms WHERE term_id = $1`, termID); err != nil {
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
	var id int64
	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO sync_executions (started_at, mode, status) VALUES ($1, $2, $3) RETURNING id`,
		time.Now().UTC(), mode, store.StatusRunning).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create execution: %w", err)
	}
	return id, nil
}

// CompleteExecution finalizes a journal row.
func (s *Store) CompleteExecution(ctx context.Context, upd store.ExecutionUpdate) error {
	r, err := s.conn.ExecContext(ctx, `
		UPDATE sync_executions SET
			completed_at = $1, status = $2,
			terms_fetched = $3, terms_inserted = $4, terms_updated = $5,
			terms_unchanged = $6, terms_skipped = $7,
			source_version = $8, error_message = $9
		WHERE id = $10`,
		time.Now().UTC(), upd.Status,
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
		WHERE status = $1 ORDER BY started_at DESC, id DESC LIMIT 1`,
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
	query := selectExecution
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.Mode != "" {
		conditions = append(conditions, "mode = "+arg(filter.Mode))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "started_at >= "+arg(filter.Since.UTC()))
	}
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			query += " AND " + c
		}
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
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
	var completedAt sql.NullTime
	var sourceVersion, errorMessage sql.NullString
	err := row.Scan(
		&exec.ID, &exec.StartedAt, &completedAt, &exec.Mode, &exec.Status,
		&exec.TermsFetched, &exec.TermsInserted, &exec.TermsUpdated,
		&exec.TermsUnchanged, &exec.TermsSkipped,
		&sourceVersion, &errorMessage,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		exec.CompletedAt = &t
	}
	exec.SourceVersion = sourceVersion.String
	exec.ErrorMessage = errorMessage.String
	return &exec, nil
}

// Reset deletes all synced data and the execution journal.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx,
		`TRUNCATE term_xrefs, term_relationships, term_synonyms, terms, sync_executions RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
