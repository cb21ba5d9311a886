// Package store persists semantic chunks in Postgres with pgvector for
// similarity search and a generated tsvector column for lexical search.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"vidcite/pkg/models"
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// ChunkStore defines the persistence surface the pipeline depends on.
type ChunkStore interface {
	Migrate(ctx context.Context, embedDim int) error
	UpsertChunk(ctx context.Context, c models.SemanticChunk, embedding []float32) error
	DeleteVideoChunks(ctx context.Context, creatorID, videoID string) error
	VectorQuery(ctx context.Context, creatorID string, queryVec []float32, threshold float64, limit int) ([]models.RetrievalCandidate, error)
	LexicalQuery(ctx context.Context, creatorID string, terms []string, limit int) ([]models.RetrievalCandidate, error)
	ListVideos(ctx context.Context, creatorID string) ([]VideoInfo, error)
}

// VideoInfo is one indexed video and its chunk count.
type VideoInfo struct {
	VideoID    string `json:"video_id"`
	VideoTitle string `json:"video_title"`
	Chunks     int    `json:"chunks"`
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies schema setup. embedDim fixes the vector column width.
func (s *Store) Migrate(ctx context.Context, embedDim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
  id             TEXT PRIMARY KEY,
  creator_id     TEXT NOT NULL,
  video_id       TEXT NOT NULL,
  video_title    TEXT NOT NULL DEFAULT '',
  video_url      TEXT NOT NULL DEFAULT '',
  content        TEXT NOT NULL,
  start_time     DOUBLE PRECISION NOT NULL,
  end_time       DOUBLE PRECISION NOT NULL,
  sentence_count INT NOT NULL DEFAULT 0,
  word_count     INT NOT NULL DEFAULT 0,
  confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
  embedding      vector(%d),
  created_at     TIMESTAMP WITH TIME ZONE DEFAULT now(),
  ts             tsvector GENERATED ALWAYS AS (
    to_tsvector('english', coalesce(content,''))
  ) STORED
);

CREATE INDEX IF NOT EXISTS chunks_creator_idx
  ON chunks (creator_id);

CREATE INDEX IF NOT EXISTS chunks_creator_video_idx
  ON chunks (creator_id, video_id);

CREATE INDEX IF NOT EXISTS chunks_ts_gin
  ON chunks USING GIN (ts);

CREATE INDEX IF NOT EXISTS chunks_embedding_idx
  ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, embedDim))
	return err
}

// UpsertChunk inserts or updates a chunk. A nil embedding leaves the chunk
// out of vector search but still lexically queryable.
func (s *Store) UpsertChunk(ctx context.Context, c models.SemanticChunk, embedding []float32) error {
	var ev any
	if embedding != nil {
		ev = pgvector.NewVector(embedding)
	} else {
		ev = (*pgvector.Vector)(nil)
	}

	const q = `
		INSERT INTO chunks (
			id, creator_id, video_id, video_title, video_url, content,
			start_time, end_time, sentence_count, word_count, confidence,
			embedding, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
		ON CONFLICT (id) DO UPDATE SET
			video_title = EXCLUDED.video_title,
			video_url   = EXCLUDED.video_url,
			content     = EXCLUDED.content,
			confidence  = EXCLUDED.confidence,
			embedding   = COALESCE(EXCLUDED.embedding, chunks.embedding),
			created_at  = chunks.created_at;`

	_, err := s.pool.Exec(ctx, q,
		c.ID, c.CreatorID, c.VideoID, c.VideoTitle, c.VideoURL, c.Content,
		c.StartTime, c.EndTime, c.SentenceCount, c.WordCount, c.Confidence, ev,
	)
	return err
}

// DeleteVideoChunks removes all chunks of one video so reprocessing
// supersedes rather than mutates.
func (s *Store) DeleteVideoChunks(ctx context.Context, creatorID, videoID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE creator_id = $1 AND video_id = $2`,
		creatorID, videoID)
	return err
}

// VectorQuery returns chunks whose embedding cosine-similarity to queryVec
// meets the threshold, best first, scoped to one creator.
func (s *Store) VectorQuery(ctx context.Context, creatorID string, queryVec []float32, threshold float64, limit int) ([]models.RetrievalCandidate, error) {
	const q = `
		SELECT id, video_id, video_title, video_url, content, start_time, end_time,
		       1 - (embedding <=> $2) AS similarity
		FROM chunks
		WHERE creator_id = $1
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $2) >= $3
		ORDER BY embedding <=> $2
		LIMIT $4`

	rows, err := s.pool.Query(ctx, q, creatorID, pgvector.NewVector(queryVec), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows, models.SourceVector)
}

// LexicalQuery runs an AND-style full-text query over the given terms.
// Scores are filled in by the caller; rows come back with score 0.
func (s *Store) LexicalQuery(ctx context.Context, creatorID string, terms []string, limit int) ([]models.RetrievalCandidate, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	// terms are already sanitized to alphanumeric tokens
	expr := strings.Join(terms, " & ")

	const q = `
		SELECT id, video_id, video_title, video_url, content, start_time, end_time,
		       0::float8 AS similarity
		FROM chunks
		WHERE creator_id = $1
		  AND ts @@ to_tsquery('english', $2)
		LIMIT $3`

	rows, err := s.pool.Query(ctx, q, creatorID, expr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows, models.SourceLexical)
}

// ListVideos returns the distinct videos indexed for a creator.
func (s *Store) ListVideos(ctx context.Context, creatorID string) ([]VideoInfo, error) {
	const q = `
		SELECT video_id, MAX(video_title), COUNT(*)
		FROM chunks
		WHERE creator_id = $1
		GROUP BY video_id
		ORDER BY video_id`

	rows, err := s.pool.Query(ctx, q, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VideoInfo
	for rows.Next() {
		var v VideoInfo
		if err := rows.Scan(&v.VideoID, &v.VideoTitle, &v.Chunks); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func scanCandidates(rows pgx.Rows, source string) ([]models.RetrievalCandidate, error) {
	var out []models.RetrievalCandidate
	for rows.Next() {
		var c models.RetrievalCandidate
		if err := rows.Scan(
			&c.ChunkID, &c.VideoID, &c.VideoTitle, &c.VideoURL, &c.Content,
			&c.StartTime, &c.EndTime, &c.Score,
		); err != nil {
			return nil, err
		}
		c.Source = source
		out = append(out, c)
	}
	return out, rows.Err()
}
