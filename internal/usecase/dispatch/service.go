// Package dispatch hands validated documents to the ingestion queue in chunks.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/mmdex/internal/domain"
	domdispatch "github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	"github.com/kailas-cloud/mmdex/internal/metrics"
)

// MaxChunkSize is the queue's maximum batch size.
const MaxChunkSize = 10

// Service splits entries into chunks and sends them concurrently.
type Service struct {
	queue     Sender
	chunkSize int
	logger    *zap.Logger
}

// New creates a dispatcher.
func New(queue Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{queue: queue, chunkSize: MaxChunkSize, logger: logger}
}

// WithChunkSize configures the chunk size, bounded by MaxChunkSize.
func (s *Service) WithChunkSize(n int) *Service {
	if n > 0 && n <= MaxChunkSize {
		s.chunkSize = n
	}
	return s
}

// Dispatch enqueues entries and returns one result per entry in input order.
// A transport failure of one chunk fails every entry of that chunk only.
func (s *Service) Dispatch(ctx context.Context, entries []domdispatch.Entry) []domdispatch.Result {
	results := make([]domdispatch.Result, len(entries))
	chunks := domdispatch.Chunk(entries, s.chunkSize)

	var g errgroup.Group
	offset := 0
	for _, chunk := range chunks {
		out := results[offset : offset+len(chunk)]
		offset += len(chunk)
		g.Go(func() error {
			s.sendChunk(ctx, chunk, out)
			return nil
		})
	}
	_ = g.Wait() // chunk failures are reported per entry

	for _, r := range results {
		label := "queued"
		if !r.OK() {
			label = "queue_error"
		}
		metrics.DispatchItemsTotal.WithLabelValues(label).Inc()
	}
	return results
}

// sendChunk writes the outcome of each chunk entry into out, which is the
// chunk's own window of the shared result slice.
func (s *Service) sendChunk(ctx context.Context, chunk []domdispatch.Entry, out []domdispatch.Result) {
	failed, err := s.queue.SendBatch(ctx, chunk)
	if err != nil {
		s.logger.Warn("queue chunk failed",
			zap.Int("first_index", chunk[0].Index),
			zap.Int("size", len(chunk)),
			zap.Error(err),
		)
		err = wrapTransport(err)
		for i, e := range chunk {
			out[i] = domdispatch.NewError(e.Index, e.Candidate, err)
		}
		return
	}
	for i, e := range chunk {
		if ferr, ok := failed[e.Index]; ok {
			out[i] = domdispatch.NewError(e.Index, e.Candidate, ferr)
			continue
		}
		out[i] = domdispatch.NewOK(e.Index, e.Candidate)
	}
}

func wrapTransport(err error) error {
	if errors.Is(err, domain.ErrQueueTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrQueueTransport, err)
}
