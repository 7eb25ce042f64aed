// Package postgres provides a vector store on PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// schemaLockID serialises schema bootstrap across processes.
const schemaLockID int64 = 2026101501

// Collection row states.
const (
	stateStaging = "staging"
	stateLive    = "live"
)

// staleStagingAfter is how long a staging row may go without a write before
// another build treats it as abandoned.
const staleStagingAfter = time.Hour

var errWriterClosed = errors.New("collection writer closed")

// Store is a pgvector-backed vector store.
// The embedding column is an unconstrained vector so collections of
// different dimensions can share the table; search is an exact scan.
type Store struct {
	db         *sql.DB
	staleAfter time.Duration
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, staleAfter: staleStagingAfter}
}

// NewStore connects to dsn and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: store.dsn is required for the postgres backend", domain.ErrInvalidConfig)
	}
	db, err := OpenDB(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return s, nil
}

// OpenDB opens a pgx connection pool and pings it.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the extension, tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS collections (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	state TEXT NOT NULL CHECK (state IN ('staging', 'live')),
	embedding_model TEXT NOT NULL DEFAULT '',
	dimensions INTEGER NOT NULL DEFAULT 0,
	chunk_size INTEGER NOT NULL DEFAULT 0,
	chunk_overlap INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	document_count INTEGER NOT NULL DEFAULT 0,
	built_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	touched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE collections ADD COLUMN IF NOT EXISTS touched_at TIMESTAMPTZ NOT NULL DEFAULT NOW();

CREATE UNIQUE INDEX IF NOT EXISTS idx_collections_live ON collections(name) WHERE state = 'live';

CREATE TABLE IF NOT EXISTS chunks (
	collection_id BIGINT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	seq BIGINT NOT NULL,
	id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	content TEXT NOT NULL,
	position INTEGER NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector NOT NULL,
	PRIMARY KEY (collection_id, id)
);

CREATE INDEX IF NOT EXISTS idx_chunks_seq ON chunks(collection_id, seq);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Collection returns metadata for the live collection.
func (s *Store) Collection(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	_, info, err := s.liveCollection(ctx, name)
	return info, err
}

// BeginCollection inserts a staging row. Staging rows of the same name whose
// lease has lapsed are removed first; a build still writing keeps its row.
func (s *Store) BeginCollection(ctx context.Context, name string) (driven.CollectionWriter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM collections
WHERE name = $1 AND state = $2 AND touched_at < NOW() - make_interval(secs => $3)
`, name, stateStaging, s.staleAfter.Seconds()); err != nil {
		return nil, fmt.Errorf("clear stale staging: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO collections (name, state) VALUES ($1, $2) RETURNING id`, name, stateStaging,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert staging collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit staging collection: %w", err)
	}
	return &collectionWriter{store: s, name: name, id: id}, nil
}

// Search orders the live collection by cosine distance, then write order.
func (s *Store) Search(ctx context.Context, name string, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, domain.ErrInvalidTopK
	}

	id, info, err := s.liveCollection(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Dimensions > 0 && len(query) != info.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(query), info.Dimensions)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, document_id, content, position, metadata, 1 - (embedding <=> $2::vector) AS score
FROM chunks
WHERE collection_id = $1
ORDER BY embedding <=> $2::vector, seq
LIMIT $3
`, id, formatVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var (
			hit      driven.VectorHit
			metadata []byte
			score    sql.NullFloat64
		)
		if err := rows.Scan(&hit.Chunk.ID, &hit.Chunk.DocumentID, &hit.Chunk.Content,
			&hit.Chunk.Position, &metadata, &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if hit.Chunk.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		// pgvector returns NaN distance for zero vectors.
		if score.Valid && score.Float64 == score.Float64 {
			hit.Similarity = score.Float64
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// DropCollection removes the live collection; chunks cascade.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM collections WHERE name = $1 AND state = $2`, name, stateLive); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) liveCollection(ctx context.Context, name string) (int64, *domain.CollectionInfo, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, embedding_model, dimensions, chunk_size, chunk_overlap, chunk_count, document_count, built_at
FROM collections
WHERE name = $1 AND state = $2
`, name, stateLive)

	var (
		id      int64
		info    domain.CollectionInfo
		builtAt sql.NullTime
	)
	err := row.Scan(&id, &info.Name, &info.EmbeddingModel, &info.Dimensions, &info.ChunkSize,
		&info.ChunkOverlap, &info.ChunkCount, &info.DocumentCount, &builtAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, domain.ErrNotFound
		}
		return 0, nil, fmt.Errorf("scan collection: %w", err)
	}
	if builtAt.Valid {
		info.BuiltAt = builtAt.Time
	}
	return id, &info, nil
}

type collectionWriter struct {
	store  *Store
	name   string
	id     int64
	dims   int
	seq    int64
	closed bool
}

// Upsert writes one batch per transaction. Re-upserted IDs keep their seq.
func (w *collectionWriter) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	if w.closed {
		return errWriterClosed
	}
	if len(records) == 0 {
		return nil
	}

	dims := w.dims
	for _, r := range records {
		if dims == 0 {
			dims = len(r.Vector)
		}
		if len(r.Vector) != dims {
			return fmt.Errorf("%w: record %s has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, r.Chunk.ID, len(r.Vector), dims)
		}
	}

	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE collections SET touched_at = NOW() WHERE id = $1 AND state = $2`, w.id, stateStaging)
	if err != nil {
		return fmt.Errorf("renew staging lease: %w", err)
	}
	if err := requireOneRow(res, w.id); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (collection_id, seq, id, document_id, content, position, metadata, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
ON CONFLICT (collection_id, id) DO UPDATE SET
	document_id = EXCLUDED.document_id,
	content = EXCLUDED.content,
	position = EXCLUDED.position,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding
`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	seq := w.seq
	for _, r := range records {
		metadata, err := json.Marshal(r.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if len(r.Chunk.Metadata) == 0 {
			metadata = []byte("{}")
		}
		seq++
		if _, err := stmt.ExecContext(ctx, w.id, seq, r.Chunk.ID, r.Chunk.DocumentID,
			r.Chunk.Content, r.Chunk.Position, metadata, formatVector(r.Vector)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", r.Chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	w.dims, w.seq = dims, seq
	logger.Debug("postgres: staged %d chunks for %s", len(records), w.name)
	return nil
}

// Commit promotes the staging row and deletes the previous live row.
func (w *collectionWriter) Commit(ctx context.Context, info domain.CollectionInfo) (*domain.CollectionInfo, error) {
	if w.closed {
		return nil, errWriterClosed
	}

	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT document_id) FROM chunks WHERE collection_id = $1`, w.id,
	).Scan(&info.ChunkCount, &info.DocumentCount); err != nil {
		return nil, fmt.Errorf("count staged chunks: %w", err)
	}
	info.Name = w.name
	if w.dims > 0 {
		info.Dimensions = w.dims
	}
	if info.BuiltAt.IsZero() {
		info.BuiltAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collections WHERE name = $1 AND state = $2`, w.name, stateLive); err != nil {
		return nil, fmt.Errorf("delete live collection: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
UPDATE collections
SET state = $2, embedding_model = $3, dimensions = $4, chunk_size = $5, chunk_overlap = $6,
    chunk_count = $7, document_count = $8, built_at = $9
WHERE id = $1 AND state = $10
`, w.id, stateLive, info.EmbeddingModel, info.Dimensions, info.ChunkSize, info.ChunkOverlap,
		info.ChunkCount, info.DocumentCount, info.BuiltAt, stateStaging)
	if err != nil {
		return nil, fmt.Errorf("promote staging collection: %w", err)
	}
	// Returning here rolls back the live delete.
	if err := requireOneRow(res, w.id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit collection: %w", err)
	}
	w.closed = true
	return &info, nil
}

// Abort deletes the staging row; chunks cascade.
func (w *collectionWriter) Abort(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := w.store.db.ExecContext(ctx,
		`DELETE FROM collections WHERE id = $1 AND state = $2`, w.id, stateStaging); err != nil {
		return fmt.Errorf("delete staging collection: %w", err)
	}
	return nil
}

// requireOneRow checks that a statement against staging row id matched it.
func requireOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: staging collection %d no longer exists", domain.ErrBuildSuperseded, id)
	}
	return nil
}

// formatVector renders v in pgvector text format: "[0.1,0.2,0.3]".
func formatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
