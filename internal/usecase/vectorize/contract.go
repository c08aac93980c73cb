package vectorize

import (
	"context"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// Downloader fetches a remote image body.
type Downloader interface {
	Download(ctx context.Context, url string) (domain.Image, error)
}

// Embedder turns multimodal input into a vector.
type Embedder interface {
	Embed(ctx context.Context, in domain.EmbeddingInput) (domain.EmbeddingResult, error)
}
