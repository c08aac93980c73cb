package ingest

import (
	"context"

	"github.com/kailas-cloud/mmdex/internal/domain"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/ingestion"
)

// Queue is the worker's view of the ingestion queue.
type Queue interface {
	Receive(ctx context.Context, consumer string) (*ingestion.Delivery, error)
	Ack(ctx context.Context, id string) error
	Nack(ctx context.Context, id string, cause error) error
	Reclaim(ctx context.Context, consumer string, count int) (ingestion.Reclaimed, error)
}

// Vectorizer embeds an image URL and/or description.
type Vectorizer interface {
	Vectorize(ctx context.Context, url, description string) (domain.EmbeddingResult, error)
}

// Store persists documents idempotently on (url, description).
type Store interface {
	Upsert(ctx context.Context, doc domdoc.Document) (id int64, created bool, err error)
}
