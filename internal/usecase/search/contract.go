package search

import (
	"context"

	"github.com/kailas-cloud/mmdex/internal/domain"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// Repository defines the storage contract for similarity queries.
type Repository interface {
	Query(ctx context.Context, embedding []float32, threshold float64, topK int, excludeID int64) ([]result.Result, error)
	Get(ctx context.Context, id int64) (domdoc.Document, error)
}

// Vectorizer embeds an image URL and/or description.
type Vectorizer interface {
	Vectorize(ctx context.Context, url, description string) (domain.EmbeddingResult, error)
}

// Stager parks an uploaded image where the vectorizer can fetch it.
type Stager interface {
	Stage(ctx context.Context, up request.Upload) (request.Staged, error)
	Unstage(ctx context.Context, ref request.Staged) error
}
