package postgres

import (
	"context"
	"fmt"
)

// Table and constraint names shared with the document repository.
const (
	DocumentsTable       = "documents"
	UniquePairConstraint = "documents_url_description_key"
)

// Schema returns the idempotent DDL for the documents table at the given vector size.
// NULLS NOT DISTINCT (PostgreSQL 15+) makes the (url, description) uniqueness null-safe.
func Schema(dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
	id          bigserial PRIMARY KEY,
	embedding   vector(%d) NOT NULL,
	url         text,
	description text,
	metadata    jsonb,
	"timestamp" timestamptz NOT NULL DEFAULT now(),
	CONSTRAINT documents_url_description_key UNIQUE NULLS NOT DISTINCT (url, description),
	CONSTRAINT documents_url_or_description CHECK (url IS NOT NULL OR description IS NOT NULL)
)`, dims),
		`CREATE INDEX IF NOT EXISTS documents_embedding_hnsw_idx
	ON documents USING hnsw (embedding vector_cosine_ops)`,
	}
}

// Migrate applies Schema statement by statement.
func Migrate(ctx context.Context, q Querier, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("invalid vector dimensions %d", dims)
	}
	for i, stmt := range Schema(dims) {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
