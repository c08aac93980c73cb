package embedding

import (
	"context"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// Embedder is the wrapped embedding provider.
type Embedder interface {
	Embed(ctx context.Context, in domain.EmbeddingInput) (domain.EmbeddingResult, error)
}

// CounterStore persists budget counters shared between processes.
type CounterStore interface {
	GetInt(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, val int64, ttl time.Duration) error
}
