package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/tomasellis/framedex/config"
	"github.com/tomasellis/framedex/core"
)

// PgVectorStore persists patch vectors in Postgres with the pgvector
// extension. The vector_id unique constraint plus ON CONFLICT DO
// UPDATE makes upserts idempotent per derived id.
type PgVectorStore struct {
	pool *pgxpool.Pool
	dim  int
}

func newPgVectorStore(ctx context.Context, cfg *config.Config) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{pool: pool, dim: cfg.EmbeddingDim}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) Name() string { return "frame_patches" }

func (s *PgVectorStore) Close() { s.pool.Close() }

func (s *PgVectorStore) ensureTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS frame_patches (
			id SERIAL PRIMARY KEY,
			vector_id VARCHAR(512) UNIQUE NOT NULL,
			frame_path VARCHAR(1024) NOT NULL,
			ts INTEGER NOT NULL,
			movie_title VARCHAR(512) NOT NULL,
			director VARCHAR(512),
			movie_url VARCHAR(1024),
			patch_type VARCHAR(64) NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`, s.dim)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create frame_patches table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_frame_patches_frame_path ON frame_patches(frame_path);",
		"CREATE INDEX IF NOT EXISTS idx_frame_patches_movie_title ON frame_patches(movie_title);",
		"CREATE INDEX IF NOT EXISTS idx_frame_patches_embedding ON frame_patches USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);",
	}
	for _, q := range indexes {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, records []core.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	count := 0
	for _, rec := range records {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO frame_patches
				(vector_id, frame_path, ts, movie_title, director, movie_url,
				 patch_type, x, y, width, height, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (vector_id) DO UPDATE SET
				frame_path = EXCLUDED.frame_path,
				ts = EXCLUDED.ts,
				movie_title = EXCLUDED.movie_title,
				director = EXCLUDED.director,
				movie_url = EXCLUDED.movie_url,
				patch_type = EXCLUDED.patch_type,
				x = EXCLUDED.x,
				y = EXCLUDED.y,
				width = EXCLUDED.width,
				height = EXCLUDED.height,
				embedding = EXCLUDED.embedding`,
			rec.ID, rec.Metadata.FramePath, rec.Metadata.Timestamp,
			rec.Metadata.MovieTitle, rec.Metadata.Director, rec.Metadata.MovieURL,
			rec.Metadata.PatchType, rec.Metadata.X, rec.Metadata.Y,
			rec.Metadata.Width, rec.Metadata.Height,
			pgvector.NewVector(rec.Embedding),
		)
		if err != nil {
			return count, fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
		count++
	}
	return count, nil
}

func (s *PgVectorStore) Get(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		"SELECT vector_id FROM frame_patches WHERE vector_id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("query existing ids: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}

var pgFilterColumns = map[string]string{
	"framePath":  "frame_path",
	"movieTitle": "movie_title",
	"director":   "director",
	"patchType":  "patch_type",
}

func pgFilterClause(filter map[string]string, firstArg int) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	i := firstArg
	for key, val := range filter {
		col, ok := pgFilterColumns[key]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter key %q", key)
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (s *PgVectorStore) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]core.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	where, args, err := pgFilterClause(filter, 3)
	if err != nil {
		return nil, err
	}

	// <=> is cosine distance, matching the ivfflat vector_cosine_ops index
	query := `
		SELECT vector_id, embedding <=> $1 AS distance,
		       frame_path, ts, movie_title, director, movie_url,
		       patch_type, x, y, width, height, created_at::text
		FROM frame_patches` + where + `
		ORDER BY embedding <=> $1
		LIMIT $2`
	queryArgs := append([]any{pgvector.NewVector(vector), topK}, args...)

	rows, err := s.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var matches []core.Match
	for rows.Next() {
		var m core.Match
		if err := rows.Scan(&m.ID, &m.Score,
			&m.Metadata.FramePath, &m.Metadata.Timestamp, &m.Metadata.MovieTitle,
			&m.Metadata.Director, &m.Metadata.MovieURL, &m.Metadata.PatchType,
			&m.Metadata.X, &m.Metadata.Y, &m.Metadata.Width, &m.Metadata.Height,
			&m.Metadata.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PgVectorStore) Delete(ctx context.Context, filter map[string]string) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing to delete without a filter")
	}
	where, args, err := pgFilterClause(filter, 1)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM frame_patches"+where, args...); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM frame_patches").Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
