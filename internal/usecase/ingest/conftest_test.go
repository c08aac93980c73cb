package ingest

import (
	"context"
	"sync"

	"github.com/kailas-cloud/mmdex/internal/domain"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/ingestion"
)

type mockQueue struct {
	mu        sync.Mutex
	receiveFn func(ctx context.Context) (*ingestion.Delivery, error)
	reclaimFn func() (ingestion.Reclaimed, error)
	ackErr    error
	acked     []string
	nacked    map[string]error
}

func (m *mockQueue) Receive(ctx context.Context, _ string) (*ingestion.Delivery, error) {
	if m.receiveFn == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.receiveFn(ctx)
}

func (m *mockQueue) Ack(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ackErr != nil {
		return m.ackErr
	}
	m.acked = append(m.acked, id)
	return nil
}

func (m *mockQueue) Nack(_ context.Context, id string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nacked == nil {
		m.nacked = map[string]error{}
	}
	m.nacked[id] = cause
	return nil
}

func (m *mockQueue) Reclaim(context.Context, string, int) (ingestion.Reclaimed, error) {
	if m.reclaimFn == nil {
		return ingestion.Reclaimed{}, nil
	}
	return m.reclaimFn()
}

type mockVectorizer struct {
	fn     func(url, description string) (domain.EmbeddingResult, error)
	calls  int
	ctxErr error // ctx.Err() observed by the last call
}

func (m *mockVectorizer) Vectorize(ctx context.Context, url, description string) (domain.EmbeddingResult, error) {
	m.calls++
	m.ctxErr = ctx.Err()
	if m.fn != nil {
		return m.fn(url, description)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

// memStore is an in-memory store keyed by the null-safe (url, description) pair.
type memStore struct {
	mu     sync.Mutex
	rows   map[[2]string]int64
	nextID int64
	err    error
}

func newMemStore() *memStore { return &memStore{rows: map[[2]string]int64{}} }

func (s *memStore) Upsert(_ context.Context, doc domdoc.Document) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, false, s.err
	}
	key := [2]string{nullable(doc.URL()), nullable(doc.Description())}
	if _, ok := s.rows[key]; ok {
		return 0, false, nil
	}
	s.nextID++
	s.rows[key] = s.nextID
	return s.nextID, true, nil
}

func nullable(s *string) string {
	if s == nil {
		return "\x00null"
	}
	return *s
}

func ptr(s string) *string { return &s }

func delivery(id string, c domdoc.Candidate) ingestion.Delivery {
	return ingestion.Delivery{ID: id, Message: ingestion.Message{Candidate: c}, Deliveries: 1}
}
