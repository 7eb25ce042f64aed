package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docusearch/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultDir is the store location used when none is configured.
const DefaultDir = ".vectordb"

// Collection row states.
const (
	stateStaging = "staging"
	stateLive    = "live"
)

// staleStagingAfter is how long a staging row may go without a write before
// another build treats it as abandoned.
const staleStagingAfter = time.Hour

// errWriterClosed is returned by a writer used after Commit or Abort.
var errWriterClosed = errors.New("collection writer closed")

// Store is a SQLite-backed vector store.
type Store struct {
	db         *sql.DB
	path       string
	staleAfter time.Duration
}

// NewStore opens or creates the store in dataDir.
// If dataDir is empty, defaults to .vectordb in the working directory.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = DefaultDir
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating store directory: %w", domain.ErrVectorStoreUnavailable, err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// WAL lets queries read the live collection while a rebuild writes.
	// foreign_keys is a per-connection pragma, so it goes in the DSN.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrVectorStoreUnavailable, err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		staleAfter: staleStagingAfter,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", domain.ErrVectorStoreUnavailable, err)
	}

	logger.Debug("sqlite store: %s", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_vectors.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// Collection returns metadata for the live collection.
func (s *Store) Collection(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	_, info, err := s.liveCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// BeginCollection inserts a staging row that receives the rebuilt records.
// Staging rows of the same name whose lease has lapsed are removed first;
// a build still writing in another process keeps its row.
func (s *Store) BeginCollection(ctx context.Context, name string) (driven.CollectionWriter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := fmt.Sprintf("-%d seconds", int64(s.staleAfter/time.Second))
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunks WHERE collection_id IN (
			SELECT id FROM collections
			WHERE name = ? AND state = ? AND COALESCE(touched_at, created_at) < datetime('now', ?)
		)`, name, stateStaging, cutoff); err != nil {
		return nil, fmt.Errorf("clearing stale staging chunks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		DELETE FROM collections
		WHERE name = ? AND state = ? AND COALESCE(touched_at, created_at) < datetime('now', ?)`,
		name, stateStaging, cutoff)
	if err != nil {
		return nil, fmt.Errorf("clearing stale staging collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Debug("sqlite store: cleared %d abandoned staging collection(s) for %s", n, name)
	}

	res, err = tx.ExecContext(ctx,
		"INSERT INTO collections (name, state, touched_at) VALUES (?, ?, datetime('now'))", name, stateStaging)
	if err != nil {
		return nil, fmt.Errorf("creating staging collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading staging collection id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing staging collection: %w", err)
	}

	return &collectionWriter{store: s, name: name, id: id}, nil
}

// Search scans the live collection and returns the k most similar records.
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
		SELECT id, document_id, content, position, metadata, embedding
		FROM chunks WHERE collection_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var (
			chunk    domain.Chunk
			metadata string
			blob     []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position, &metadata, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if chunk.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", chunk.ID, err)
		}
		hits = append(hits, driven.VectorHit{
			Chunk:      chunk,
			Similarity: domain.CosineSimilarity(query, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	// Rows arrive in seq order; a stable sort keeps it among equal scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DropCollection removes the live collection.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteLive(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

// liveCollection loads the live row for name.
func (s *Store) liveCollection(ctx context.Context, name string) (int64, *domain.CollectionInfo, error) {
	var (
		id      int64
		info    domain.CollectionInfo
		builtAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, embedding_model, dimensions, chunk_size, chunk_overlap,
		       chunk_count, document_count, built_at
		FROM collections WHERE name = ? AND state = ?`, name, stateLive).Scan(
		&id, &info.Name, &info.EmbeddingModel, &info.Dimensions, &info.ChunkSize, &info.ChunkOverlap,
		&info.ChunkCount, &info.DocumentCount, &builtAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, domain.ErrNotFound
	}
	if err != nil {
		return 0, nil, fmt.Errorf("loading collection %s: %w", name, err)
	}
	if builtAt.Valid {
		info.BuiltAt, _ = time.Parse(time.RFC3339Nano, builtAt.String)
	}
	return id, &info, nil
}

// deleteLive removes the live row for name and its chunks.
func deleteLive(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunks WHERE collection_id IN (
			SELECT id FROM collections WHERE name = ? AND state = ?
		)`, name, stateLive); err != nil {
		return fmt.Errorf("deleting live chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM collections WHERE name = ? AND state = ?", name, stateLive); err != nil {
		return fmt.Errorf("deleting live collection: %w", err)
	}
	return nil
}

// touchStaging renews the lease on a staging row.
// Returns domain.ErrBuildSuperseded if the row is gone.
func touchStaging(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE collections SET touched_at = datetime('now') WHERE id = ? AND state = ?", id, stateStaging)
	if err != nil {
		return fmt.Errorf("renewing staging lease: %w", err)
	}
	return requireOneRow(res, id)
}

// requireOneRow checks that a statement against staging row id matched it.
func requireOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: staging collection %d no longer exists", domain.ErrBuildSuperseded, id)
	}
	return nil
}

// collectionWriter writes records into a staging row.
type collectionWriter struct {
	store  *Store
	name   string
	id     int64
	dims   int
	seq    int64
	closed bool
}

// Upsert writes a batch in one transaction. A record whose chunk ID is already
// staged is replaced and keeps its original position in the write order.
func (w *collectionWriter) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	if w.closed {
		return errWriterClosed
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touchStaging(ctx, tx, w.id); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection_id, seq, id, document_id, content, position, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	dims, seq := w.dims, w.seq
	for _, r := range records {
		if dims == 0 {
			dims = len(r.Vector)
		}
		if len(r.Vector) != dims {
			return fmt.Errorf("%w: record %s has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, r.Chunk.ID, len(r.Vector), dims)
		}

		metadata, err := encodeMetadata(r.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", r.Chunk.ID, err)
		}
		seq++
		if _, err := stmt.ExecContext(ctx,
			w.id, seq, r.Chunk.ID, r.Chunk.DocumentID, r.Chunk.Content, r.Chunk.Position,
			metadata, float32SliceToBytes(r.Vector),
		); err != nil {
			return fmt.Errorf("upserting chunk %s: %w", r.Chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	w.dims, w.seq = dims, seq
	return nil
}

// Commit replaces the live row with the staging row in one transaction.
func (w *collectionWriter) Commit(ctx context.Context, info domain.CollectionInfo) (*domain.CollectionInfo, error) {
	if w.closed {
		return nil, errWriterClosed
	}

	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT document_id) FROM chunks WHERE collection_id = ?", w.id)
	if err := row.Scan(&info.ChunkCount, &info.DocumentCount); err != nil {
		return nil, fmt.Errorf("counting staged chunks: %w", err)
	}
	info.Name = w.name
	if w.dims > 0 {
		info.Dimensions = w.dims
	}
	if info.BuiltAt.IsZero() {
		info.BuiltAt = time.Now()
	}

	if err := deleteLive(ctx, tx, w.name); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE collections SET
			state = ?, embedding_model = ?, dimensions = ?, chunk_size = ?, chunk_overlap = ?,
			chunk_count = ?, document_count = ?, built_at = ?
		WHERE id = ? AND state = ?`,
		stateLive, info.EmbeddingModel, info.Dimensions, info.ChunkSize, info.ChunkOverlap,
		info.ChunkCount, info.DocumentCount, info.BuiltAt.UTC().Format(time.RFC3339Nano), w.id, stateStaging,
	)
	if err != nil {
		return nil, fmt.Errorf("promoting staging collection: %w", err)
	}
	// Returning here rolls back deleteLive.
	if err := requireOneRow(res, w.id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing collection: %w", err)
	}
	w.closed = true
	return &info, nil
}

// Abort deletes the staging row and its chunks.
func (w *collectionWriter) Abort(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection_id = ?", w.id); err != nil {
		return fmt.Errorf("deleting staged chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM collections WHERE id = ? AND state = ?", w.id, stateStaging); err != nil {
		return fmt.Errorf("deleting staging collection: %w", err)
	}
	return tx.Commit()
}

// float32SliceToBytes converts []float32 to little-endian bytes.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeMetadata returns nil for an empty object. JSON numbers decode as float64.
func decodeMetadata(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
