// Package store persists embedded chunks in Postgres with pgvector and
// serves approximate cosine-similarity search over them.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"

	"github.com/knowbase/docbot/pkg/models"
)

// ErrStorage marks backend unavailability or query failure.
var ErrStorage = errors.New("store: storage error")

// ErrIntegrity marks a malformed record: wrong vector dimensionality or
// metadata that cannot be encoded. The offending record is rejected
// before any write happens; other records are unaffected.
var ErrIntegrity = errors.New("store: integrity error")

// VectorIndex defines the operations the rest of the system needs from
// the vector store.
type VectorIndex interface {
	Migrate(ctx context.Context, dim int) error
	Upsert(ctx context.Context, id, content string, meta models.Metadata, embedding []float32) error
	Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]models.RetrievalResult, error)
	DeleteBySource(ctx context.Context, source string) error
}

// Store provides vector storage backed by a pgx connection pool. The
// pool is safe for concurrent ingestion and retrieval; each upsert is
// individually atomic and no global lock is taken.
type Store struct {
	pool *pgxpool.Pool
	dim  int
}

// New creates a Store connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrStorage, err)
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrStorage, err)
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate idempotently provisions the schema: the pgvector extension,
// the chunks table keyed by chunk id, and an HNSW cosine index. Safe to
// call on every process start. The dimension is fixed here for the
// lifetime of the index; every later upsert is checked against it.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrIntegrity, dim)
	}

	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
  id        TEXT PRIMARY KEY,
  content   TEXT NOT NULL,
  metadata  JSONB NOT NULL DEFAULT '{}',
  embedding vector(%d)
);

CREATE INDEX IF NOT EXISTS chunks_embedding_idx
  ON chunks USING hnsw (embedding vector_cosine_ops);
`
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim)); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStorage, err)
	}
	s.dim = dim
	return nil
}

// Upsert inserts a record or atomically replaces the whole record that
// shares its id. A dimensionality mismatch fails with ErrIntegrity and
// writes nothing.
func (s *Store) Upsert(ctx context.Context, id, content string, meta models.Metadata, embedding []float32) error {
	if err := s.checkDim(embedding); err != nil {
		return err
	}
	mb, err := encodeMetadata(meta)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO chunks (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content   = EXCLUDED.content,
			metadata  = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding;`

	if _, err := s.pool.Exec(ctx, q, id, content, mb, pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("%w: upsert %s: %v", ErrStorage, id, err)
	}
	return nil
}

// Search returns up to topK records ordered by descending cosine
// similarity to the query embedding, restricted to records whose
// similarity exceeds threshold. The threshold predicate and the ordering
// run inside Postgres so the candidate set is bounded by the HNSW index
// rather than a full scan. Ties are broken by id for determinism.
//
// An empty result is a normal outcome, not an error.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]models.RetrievalResult, error) {
	if err := s.checkDim(embedding); err != nil {
		return nil, err
	}

	const q = `
		SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1, id
		LIMIT $3;`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrStorage, err)
	}
	defer rows.Close()

	out := []models.RetrievalResult{}
	for rows.Next() {
		var content string
		var raw []byte
		var sim float64
		if err := rows.Scan(&content, &raw, &sim); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStorage, err)
		}
		meta, err := decodeMetadata(raw)
		if err != nil {
			// A single malformed record must not poison the whole query.
			log.Warn().Err(err).Msg("skipping chunk with malformed metadata")
			continue
		}
		out = append(out, models.RetrievalResult{Content: content, Similarity: sim, Meta: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search rows: %v", ErrStorage, err)
	}
	return out, nil
}

// DeleteBySource removes every chunk whose metadata names the given
// source document. Called before re-ingesting a source so that a
// shrunken document cannot leave stale high-index chunks behind.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	const q = `DELETE FROM chunks WHERE metadata->>'source' = $1;`
	if _, err := s.pool.Exec(ctx, q, source); err != nil {
		return fmt.Errorf("%w: delete by source %s: %v", ErrStorage, source, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStorage, err)
	}
	return n, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Store) checkDim(embedding []float32) error {
	if s.dim != 0 && len(embedding) != s.dim {
		return fmt.Errorf("%w: vector dimension %d, index expects %d", ErrIntegrity, len(embedding), s.dim)
	}
	return nil
}

func encodeMetadata(meta models.Metadata) ([]byte, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: encode metadata: %v", ErrIntegrity, err)
	}
	return b, nil
}

func decodeMetadata(raw []byte) (models.Metadata, error) {
	var meta models.Metadata
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return models.Metadata{}, fmt.Errorf("%w: decode metadata: %v", ErrIntegrity, err)
	}
	return meta, nil
}
