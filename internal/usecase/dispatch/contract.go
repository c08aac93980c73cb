package dispatch

import (
	"context"

	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
)

// Sender enqueues one chunk. The map holds per-entry failures keyed by entry index;
// a non-nil error fails the whole chunk.
type Sender interface {
	SendBatch(ctx context.Context, entries []dispatch.Entry) (map[int]error, error)
}
