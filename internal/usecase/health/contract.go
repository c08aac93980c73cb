package health

import "context"

// Pinger checks availability of a store (postgres, redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to a named probe.
type CheckFunc func(ctx context.Context) error
