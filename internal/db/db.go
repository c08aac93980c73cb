package db

import (
	"context"
	"time"
)

// Store is the Redis facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces (ISP).
type Store interface {
	Pinger
	KVStore
	StreamStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// StreamEntry is one entry of a Redis stream.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// PendingEntry describes a delivered but unacknowledged stream entry.
type PendingEntry struct {
	ID         string
	Consumer   string
	Idle       time.Duration
	Deliveries int64
}

// AddResult is the per-entry outcome of a pipelined XADD.
type AddResult struct {
	ID  string
	Err error
}

// StreamStore provides consumer-group stream operations.
type StreamStore interface {
	// XAddMulti appends entries in one round-trip. A non-nil error means the
	// whole pipeline failed; otherwise each AddResult reports its own outcome.
	XAddMulti(ctx context.Context, stream string, entries []map[string]string) ([]AddResult, error)
	XAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
	// XGroupCreate creates the group (and stream). An existing group is not an error.
	XGroupCreate(ctx context.Context, stream, group string) error
	// XReadGroup reads at most one new entry, blocking up to block. Returns nil when none arrived.
	XReadGroup(ctx context.Context, stream, group, consumer string, block time.Duration) (*StreamEntry, error)
	XAck(ctx context.Context, stream, group string, ids ...string) error
	XPendingIdle(ctx context.Context, stream, group string, minIdle time.Duration, count int) ([]PendingEntry, error)
	XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamEntry, error)
}
