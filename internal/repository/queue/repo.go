package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/mmdex/internal/db"
	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	"github.com/kailas-cloud/mmdex/internal/domain/ingestion"
)

// DefaultGroup is the consumer group shared by all ingestion workers.
const DefaultGroup = "ingest-workers"

// lastErrorTTL bounds how long a failure reason waits for the dead-letter decision.
const lastErrorTTL = 24 * time.Hour

// store is the consumer interface for the queue (ISP).
type store interface {
	XAddMulti(ctx context.Context, stream string, entries []map[string]string) ([]db.AddResult, error)
	XAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
	XGroupCreate(ctx context.Context, stream, group string) error
	XReadGroup(ctx context.Context, stream, group, consumer string, block time.Duration) (*db.StreamEntry, error)
	XAck(ctx context.Context, stream, group string, ids ...string) error
	XPendingIdle(ctx context.Context, stream, group string, minIdle time.Duration, count int) ([]db.PendingEntry, error)
	XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]db.StreamEntry, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Config tunes visibility and dead-letter behavior.
type Config struct {
	Prefix          string
	Group           string
	Visibility      time.Duration // pending entries idle this long are redelivered
	MaxReceiveCount int64         // deliveries before an entry is dead-lettered
	Block           time.Duration // XREADGROUP block timeout
}

// Repo is a Redis Streams work queue with visibility timeout and dead-letter stream.
type Repo struct {
	store  store
	cfg    Config
	stream string
	dlq    string
	now    func() time.Time
}

// New creates a queue repository.
func New(s store, cfg Config) *Repo {
	if cfg.Prefix == "" {
		cfg.Prefix = domain.KeyPrefix
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = 30 * time.Second
	}
	if cfg.MaxReceiveCount <= 0 {
		cfg.MaxReceiveCount = 3
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &Repo{
		store:  s,
		cfg:    cfg,
		stream: cfg.Prefix + "ingest",
		dlq:    cfg.Prefix + "ingest:dlq",
		now:    time.Now,
	}
}

// Stream returns the work stream key.
func (r *Repo) Stream() string { return r.stream }

// DeadLetterStream returns the dead-letter stream key.
func (r *Repo) DeadLetterStream() string { return r.dlq }

// EnsureGroup creates the stream and consumer group if missing.
func (r *Repo) EnsureGroup(ctx context.Context) error {
	if err := r.store.XGroupCreate(ctx, r.stream, r.cfg.Group); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrQueueTransport, err)
	}
	return nil
}

// SendBatch enqueues one chunk in a single round-trip. The returned map holds the
// error of every entry that was not enqueued, keyed by its submission index.
// A non-nil error means the whole chunk failed.
func (r *Repo) SendBatch(ctx context.Context, entries []dispatch.Entry) (map[int]error, error) {
	failed := make(map[int]error)
	fields := make([]map[string]string, 0, len(entries))
	sent := make([]int, 0, len(entries))
	now := r.now()
	for _, e := range entries {
		f, err := encodeMessage(ingestion.NewMessage(e.Candidate, now))
		if err != nil {
			failed[e.Index] = err
			continue
		}
		fields = append(fields, f)
		sent = append(sent, e.Index)
	}
	if len(fields) == 0 {
		return failed, nil
	}

	results, err := r.store.XAddMulti(ctx, r.stream, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueueTransport, err)
	}
	for i, res := range results {
		if res.Err != nil {
			failed[sent[i]] = fmt.Errorf("%w: %w", domain.ErrQueueTransport, res.Err)
		}
	}
	return failed, nil
}

// Receive blocks for the next never-delivered message. Returns nil when none arrived.
func (r *Repo) Receive(ctx context.Context, consumer string) (*ingestion.Delivery, error) {
	entry, err := r.store.XReadGroup(ctx, r.stream, r.cfg.Group, consumer, r.cfg.Block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueueTransport, err)
	}
	if entry == nil {
		return nil, nil
	}
	d := toDelivery(*entry, 1)
	return &d, nil
}

// Ack removes a delivery from the pending list and forgets its failure reason.
func (r *Repo) Ack(ctx context.Context, id string) error {
	if err := r.store.XAck(ctx, r.stream, r.cfg.Group, id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrQueueTransport, err)
	}
	_ = r.store.Del(ctx, r.errorKey(id))
	return nil
}

// Nack leaves the delivery pending for redelivery after the visibility timeout
// and records why it failed for the dead-letter entry.
func (r *Repo) Nack(ctx context.Context, id string, cause error) error {
	if cause == nil {
		return nil
	}
	if err := r.store.SetWithTTL(ctx, r.errorKey(id), []byte(cause.Error()), lastErrorTTL); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrQueueTransport, err)
	}
	return nil
}

// Reclaim claims entries whose visibility timeout expired. Entries that already
// reached MaxReceiveCount are moved to the dead-letter stream and acked; the
// rest are returned for another processing attempt.
func (r *Repo) Reclaim(ctx context.Context, consumer string, count int) (ingestion.Reclaimed, error) {
	var out ingestion.Reclaimed
	pending, err := r.store.XPendingIdle(ctx, r.stream, r.cfg.Group, r.cfg.Visibility, count)
	if err != nil {
		return out, fmt.Errorf("%w: %w", domain.ErrQueueTransport, err)
	}
	if len(pending) == 0 {
		return out, nil
	}

	byID := make(map[string]db.PendingEntry, len(pending))
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	claimed, err := r.store.XClaim(ctx, r.stream, r.cfg.Group, consumer, r.cfg.Visibility, ids...)
	if err != nil {
		return out, fmt.Errorf("%w: %w", domain.ErrQueueTransport, err)
	}

	var errs []error
	for _, entry := range claimed {
		p := byID[entry.ID]
		delete(byID, entry.ID)
		if p.Deliveries >= r.cfg.MaxReceiveCount {
			if err := r.deadLetter(ctx, entry, p.Deliveries); err != nil {
				errs = append(errs, err)
				continue
			}
			out.DeadLettered = append(out.DeadLettered, entry.ID)
			continue
		}
		out.Redeliver = append(out.Redeliver, toDelivery(entry, p.Deliveries+1))
	}

	// Pending ids missing from the claim were trimmed from the stream.
	for id := range byID {
		if err := r.Ack(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

func (r *Repo) deadLetter(ctx context.Context, entry db.StreamEntry, deliveries int64) error {
	reason := "max receive count exceeded"
	if last, err := r.store.Get(ctx, r.errorKey(entry.ID)); err == nil && len(last) > 0 {
		reason = string(last)
	}
	fields := map[string]string{
		payloadField: entry.Fields[payloadField],
		"source_id":  entry.ID,
		"deliveries": strconv.FormatInt(deliveries, 10),
		"last_error": reason,
		"failed_at":  r.now().UTC().Format(time.RFC3339),
	}
	if _, err := r.store.XAdd(ctx, r.dlq, fields); err != nil {
		return fmt.Errorf("dead-letter %s: %w: %w", entry.ID, domain.ErrQueueTransport, err)
	}
	return r.Ack(ctx, entry.ID)
}

func (r *Repo) errorKey(id string) string {
	return r.stream + ":err:" + id
}

func toDelivery(entry db.StreamEntry, deliveries int64) ingestion.Delivery {
	msg, err := decodeMessage(entry.Fields)
	return ingestion.Delivery{ID: entry.ID, Message: msg, Deliveries: deliveries, DecodeErr: err}
}
