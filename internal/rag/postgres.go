package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresIndex is a pgvector-backed VectorIndex for deployments that keep
// the knowledge base in PostgreSQL instead of a managed index.
type PostgresIndex struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresIndex(ctx context.Context, databaseURL string, dim int) (*PostgresIndex, error) {
	if dim <= 0 {
		dim = 1536
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool, dim); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresIndex{pool: pool, dim: dim}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, dim),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Upsert stores one chunk with its embedding; used by ingestion tooling.
func (s *PostgresIndex) Upsert(ctx context.Context, doc Document, vector []float64) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if len(vector) != s.dim {
		return fmt.Errorf("embedding dimension %d, index expects %d", len(vector), s.dim)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO knowledge_chunks (id, content, embedding)
		 VALUES ($1, $2, $3::vector)
		 ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
		doc.ID, doc.Content, vectorLiteral(vector),
	)
	if err != nil {
		return fmt.Errorf("upsert chunk: %w", err)
	}
	return nil
}

// Query ranks chunks by cosine distance, nearest first.
func (s *PostgresIndex) Query(ctx context.Context, vector []float64, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 3
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, content FROM knowledge_chunks
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector LIMIT $2`,
		vectorLiteral(vector), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0, topK)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Content); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return docs, nil
}

func (s *PostgresIndex) Close() error {
	s.pool.Close()
	return nil
}

func vectorLiteral(vector []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
