// Package vectorize turns a (url, description) pair into an embedding.
// It is shared by the ingestion worker and the search engine so that stored
// and query vectors are produced the same way.
package vectorize

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/imaging"
)

// Service downloads, resizes and embeds.
type Service struct {
	images Downloader
	embed  Embedder
	maxDim int
}

// New creates a vectorize service. maxDimension <= 0 uses imaging.DefaultMaxDimension.
func New(images Downloader, embed Embedder, maxDimension int) *Service {
	if maxDimension <= 0 {
		maxDimension = imaging.DefaultMaxDimension
	}
	return &Service{images: images, embed: embed, maxDim: maxDimension}
}

// Vectorize embeds the image at url (when set) together with description.
func (s *Service) Vectorize(ctx context.Context, url, description string) (domain.EmbeddingResult, error) {
	in := domain.EmbeddingInput{Text: description}

	if url != "" {
		img, err := s.images.Download(ctx, url)
		if err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("download image: %w", err)
		}
		data, contentType, err := imaging.Fit(img.Data, s.maxDim)
		if err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("resize image: %w", err)
		}
		in.Image = data
		in.ImageType = contentType
	}

	if in.IsEmpty() {
		return domain.EmbeddingResult{}, domain.Validationf("url or description is required")
	}

	res, err := s.embed.Embed(ctx, in)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return res, nil
}
