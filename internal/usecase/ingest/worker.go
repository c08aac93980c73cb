// Package ingest consumes queued documents, embeds them and stores them.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/ingestion"
	logpkg "github.com/kailas-cloud/mmdex/internal/logger"
	"github.com/kailas-cloud/mmdex/internal/metrics"
	"github.com/kailas-cloud/mmdex/internal/observability"
)

// Defaults for the worker loop.
const (
	DefaultHandleTimeout   = 2 * time.Minute
	DefaultReclaimInterval = 10 * time.Second
	DefaultReclaimBatch    = 10
)

// Config tunes the worker loop.
type Config struct {
	Consumer        string        // unique consumer name of this process
	HandleTimeout   time.Duration // upper bound for one message, independent of shutdown
	ReclaimInterval time.Duration
	ReclaimBatch    int
}

// Worker processes one message at a time.
type Worker struct {
	queue  Queue
	vec    Vectorizer
	store  Store
	cfg    Config
	logger *zap.Logger
}

// New creates an ingestion worker.
func New(queue Queue, vec Vectorizer, store Store, cfg Config, logger *zap.Logger) *Worker {
	if cfg.Consumer == "" {
		cfg.Consumer = "worker"
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = DefaultHandleTimeout
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = DefaultReclaimInterval
	}
	if cfg.ReclaimBatch <= 0 {
		cfg.ReclaimBatch = DefaultReclaimBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: queue, vec: vec, store: store, cfg: cfg, logger: logger}
}

// Run receives and handles messages until ctx is cancelled. Expired deliveries
// are reclaimed between receives, so the worker never handles two messages at once.
func (w *Worker) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // keep retrying the broker until shutdown
	lastReclaim := time.Time{}

	w.logger.Info("ingestion worker started", zap.String("consumer", w.cfg.Consumer))
	for {
		if ctx.Err() != nil {
			w.logger.Info("ingestion worker stopped", zap.String("consumer", w.cfg.Consumer))
			return nil
		}

		if time.Since(lastReclaim) >= w.cfg.ReclaimInterval {
			w.reclaim(ctx)
			lastReclaim = time.Now()
		}

		d, err := w.queue.Receive(ctx, w.cfg.Consumer)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait := bo.NextBackOff()
			w.logger.Warn("receive failed", zap.Duration("retry_in", wait), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		if d == nil {
			continue
		}
		w.Handle(ctx, *d)
	}
}

// reclaim dead-letters exhausted deliveries and re-handles the rest.
func (w *Worker) reclaim(ctx context.Context) {
	res, err := w.queue.Reclaim(ctx, w.cfg.Consumer, w.cfg.ReclaimBatch)
	if err != nil && ctx.Err() == nil {
		w.logger.Warn("reclaim failed", zap.Error(err))
	}
	for _, id := range res.DeadLettered {
		metrics.IngestMessagesTotal.WithLabelValues(string(ingestion.OutcomeDeadLettered)).Inc()
		w.logger.Warn("ingestion message",
			zap.String("entry_id", id),
			zap.String("outcome", string(ingestion.OutcomeDeadLettered)),
		)
	}
	for _, d := range res.Redeliver {
		if ctx.Err() != nil {
			return
		}
		w.Handle(ctx, d)
	}
}

// Handle drives one delivery to an outcome and acknowledges it unless the
// failure is transient. Shutdown does not interrupt a message in flight.
func (w *Worker) Handle(ctx context.Context, d ingestion.Delivery) ingestion.Outcome {
	start := time.Now()
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.HandleTimeout)
	defer cancel()
	hctx, log := logpkg.With(logpkg.ContextWithLogger(hctx, w.logger),
		zap.String("entry_id", d.ID),
		zap.Int64("deliveries", d.Deliveries),
	)

	hctx, span := observability.StartSpan(hctx, "ingest.handle",
		attribute.String("queue.entry_id", d.ID),
		attribute.Int64("queue.deliveries", d.Deliveries),
	)

	docID, err := w.process(hctx, d)
	outcome := w.settle(hctx, d, docID, err)
	if errors.Is(err, errDuplicate) {
		err = nil
	}

	span.SetAttributes(attribute.String("ingest.outcome", string(outcome)))
	observability.End(span, err)
	metrics.IngestMessagesTotal.WithLabelValues(string(outcome)).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	fields := []zap.Field{
		zap.String("outcome", string(outcome)),
		zap.Duration("duration", time.Since(start)),
	}
	if docID > 0 {
		fields = append(fields, zap.Int64("document_id", docID))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		log.Warn("ingestion message", fields...)
	} else {
		log.Info("ingestion message", fields...)
	}
	return outcome
}

// errDuplicate marks an idempotent skip; it never leaves process.
var errDuplicate = errors.New("document already stored")

// process runs validate, vectorize and store. It returns the new document id.
func (w *Worker) process(ctx context.Context, d ingestion.Delivery) (int64, error) {
	if d.DecodeErr != nil {
		return 0, d.DecodeErr
	}
	c := d.Message.Candidate.Normalize()
	if err := c.Validate(); err != nil {
		return 0, err
	}

	url, desc := deref(c.URL), deref(c.Description)
	emb, err := w.vec.Vectorize(ctx, url, desc)
	if err != nil {
		return 0, err
	}

	doc, err := domdoc.New(c.URL, c.Description, c.Metadata, emb.Embedding)
	if err != nil {
		return 0, err
	}

	id, created, err := w.store.Upsert(ctx, doc)
	if err != nil {
		return 0, err
	}
	if !created {
		return 0, errDuplicate
	}
	return id, nil
}

// settle acknowledges terminal and successful deliveries and leaves transient
// failures pending for redelivery.
func (w *Worker) settle(ctx context.Context, d ingestion.Delivery, docID int64, err error) ingestion.Outcome {
	var outcome ingestion.Outcome
	switch {
	case err == nil:
		outcome = ingestion.OutcomeAcked
	case errors.Is(err, errDuplicate):
		outcome = ingestion.OutcomeSkipped
	case domain.IsTerminal(err):
		outcome = ingestion.OutcomeDropped
	default:
		if nerr := w.queue.Nack(ctx, d.ID, err); nerr != nil {
			logpkg.FromContext(ctx).Warn("record failure reason", zap.Error(nerr))
		}
		return ingestion.OutcomeRetry
	}

	if aerr := w.queue.Ack(ctx, d.ID); aerr != nil {
		// The entry stays pending and comes back after the visibility timeout;
		// the store skips the duplicate.
		logpkg.FromContext(ctx).Warn("ack failed", zap.Int64("document_id", docID), zap.Error(aerr))
		return ingestion.OutcomeRetry
	}
	return outcome
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
