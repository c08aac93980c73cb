package domain

import "context"

// KeyPrefix is the default namespace for every key mmdex writes to Redis.
const KeyPrefix = "mmdex:"

// DefaultDimensions is the vector size produced by the default multimodal model.
const DefaultDimensions = 1024

// EmbeddingInput is one multimodal embedding request. At least one field must be set.
type EmbeddingInput struct {
	Image     []byte // resized, raw encoded image bytes
	ImageType string // content type of Image, e.g. image/png
	Text      string
}

// IsEmpty reports whether the input carries neither image nor text.
func (in EmbeddingInput) IsEmpty() bool {
	return len(in.Image) == 0 && in.Text == ""
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder is the shared vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, in EmbeddingInput) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Image is a fetched image body with its declared content type.
type Image struct {
	ContentType string
	Data        []byte
}
