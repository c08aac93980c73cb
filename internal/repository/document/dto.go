package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

const baseColumns = `id, url, description, metadata, "timestamp"`

// row mirrors one documents row.
type row struct {
	id          int64
	url         *string
	description *string
	metadata    []byte
	createdAt   time.Time
	embedding   pgvector.Vector
}

func (r *row) dest() []any {
	return []any{&r.id, &r.url, &r.description, &r.metadata, &r.createdAt}
}

func (r *row) toDomain() (domdoc.Document, error) {
	var meta map[string]any
	if len(r.metadata) > 0 {
		if err := json.Unmarshal(r.metadata, &meta); err != nil {
			return domdoc.Document{}, fmt.Errorf("decode metadata of %d: %w", r.id, err)
		}
	}
	return domdoc.Reconstruct(r.id, r.url, r.description, meta, r.embedding.Slice(), r.createdAt), nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

func collectDocuments(rows pgx.Rows) ([]domdoc.Document, error) {
	defer rows.Close()
	docs := make([]domdoc.Document, 0)
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func collectHits(rows pgx.Rows) ([]result.Result, error) {
	defer rows.Close()
	hits := make([]result.Result, 0)
	for rows.Next() {
		var (
			r     row
			score float64
		)
		if err := rows.Scan(append(r.dest(), &score)...); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		d, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		hits = append(hits, result.New(d, score))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}
