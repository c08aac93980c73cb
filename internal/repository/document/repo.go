package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/mmdex/internal/db/postgres"
	"github.com/kailas-cloud/mmdex/internal/domain"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// acquirer hands out the process-wide pool (ISP).
type acquirer interface {
	Querier(ctx context.Context) (postgres.Querier, error)
}

const (
	insertSQL = `INSERT INTO documents (embedding, url, description, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT ON CONSTRAINT ` + postgres.UniquePairConstraint + ` DO NOTHING
RETURNING id`

	getSQL = `SELECT ` + baseColumns + `, embedding FROM documents WHERE id = $1`

	listSQL = `SELECT ` + baseColumns + ` FROM documents ORDER BY id DESC LIMIT $1 OFFSET $2`

	countSQL = `SELECT count(*) FROM documents`

	deleteSQL = `DELETE FROM documents WHERE id = $1 RETURNING ` + baseColumns

	// pgvector serves only a bare ORDER BY <distance> LIMIT from the HNSW index,
	// so ties are broken by result.Rank, not here.
	querySQL = `SELECT ` + baseColumns + `, 1 - (embedding <=> $1) AS score
FROM documents
WHERE 1 - (embedding <=> $1) >= $2 AND id <> $4
ORDER BY embedding <=> $1
LIMIT $3`
)

// Repo implements the vector store accessor on PostgreSQL + pgvector.
type Repo struct {
	db acquirer
}

// New creates a document repository.
func New(a acquirer) *Repo {
	return &Repo{db: a}
}

// Upsert inserts the document unless a row with the same (url, description)
// pair exists. Returns the new id and true, or 0 and false on an idempotent skip.
func (r *Repo) Upsert(ctx context.Context, doc domdoc.Document) (int64, bool, error) {
	q, err := r.querier(ctx)
	if err != nil {
		return 0, false, err
	}
	meta, err := encodeMetadata(doc.Metadata())
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = q.QueryRow(ctx, insertSQL,
		pgvector.NewVector(doc.Embedding()), doc.URL(), doc.Description(), meta,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageErr("insert document", err)
	}
	return id, true, nil
}

// Get returns a document with its embedding.
func (r *Repo) Get(ctx context.Context, id int64) (domdoc.Document, error) {
	q, err := r.querier(ctx)
	if err != nil {
		return domdoc.Document{}, err
	}
	var rw row
	err = q.QueryRow(ctx, getSQL, id).Scan(append(rw.dest(), &rw.embedding)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domdoc.Document{}, storageErr(fmt.Sprintf("get document %d", id), err)
	}
	return rw.toDomain()
}

// List returns a page of documents, newest id first, without embeddings.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]domdoc.Document, error) {
	q, err := r.querier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, listSQL, limit, offset)
	if err != nil {
		return nil, storageErr("list documents", err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, storageErr("list documents", err)
	}
	return docs, nil
}

// Count returns the total number of stored documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	q, err := r.querier(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.QueryRow(ctx, countSQL).Scan(&n); err != nil {
		return 0, storageErr("count documents", err)
	}
	return int(n), nil
}

// Delete removes a document and returns the deleted row.
func (r *Repo) Delete(ctx context.Context, id int64) (domdoc.Document, error) {
	q, err := r.querier(ctx)
	if err != nil {
		return domdoc.Document{}, err
	}
	var rw row
	err = q.QueryRow(ctx, deleteSQL, id).Scan(rw.dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domdoc.Document{}, storageErr(fmt.Sprintf("delete document %d", id), err)
	}
	return rw.toDomain()
}

// Query returns documents whose similarity to embedding is at least threshold,
// best first, at most min(topK, request.MaxTopK). excludeID 0 excludes nothing.
func (r *Repo) Query(
	ctx context.Context, embedding []float32, threshold float64, topK int, excludeID int64,
) ([]result.Result, error) {
	limit := min(topK, request.MaxTopK)
	if limit <= 0 {
		return []result.Result{}, nil
	}
	q, err := r.querier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, querySQL, pgvector.NewVector(embedding), threshold, limit, excludeID)
	if err != nil {
		return nil, storageErr("similarity query", err)
	}
	hits, err := collectHits(rows)
	if err != nil {
		return nil, storageErr("similarity query", err)
	}
	return hits, nil
}

// Ping checks that the pool is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	q, err := r.querier(ctx)
	if err != nil {
		return err
	}
	var one int
	if err := q.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (r *Repo) querier(ctx context.Context) (postgres.Querier, error) {
	q, err := r.db.Querier(ctx)
	if err != nil {
		return nil, storageErr("acquire connection", err)
	}
	return q, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
