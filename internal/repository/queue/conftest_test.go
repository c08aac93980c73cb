package queue

import (
	"context"
	"time"

	"github.com/kailas-cloud/mmdex/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	xaddMultiFn func(ctx context.Context, stream string, entries []map[string]string) ([]db.AddResult, error)
	xaddFn      func(ctx context.Context, stream string, fields map[string]string) (string, error)
	xgroupFn    func(ctx context.Context, stream, group string) error
	xreadFn     func(ctx context.Context, stream, group, consumer string, block time.Duration) (*db.StreamEntry, error)
	xackFn      func(ctx context.Context, stream, group string, ids ...string) error
	xpendingFn  func(ctx context.Context, stream, group string, minIdle time.Duration, count int) ([]db.PendingEntry, error)
	xclaimFn    func(
		ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
	) ([]db.StreamEntry, error)

	kv    map[string][]byte
	acked []string
}

func newMockStore() *mockStore {
	return &mockStore{kv: map[string][]byte{}}
}

func (m *mockStore) XAddMulti(ctx context.Context, stream string, entries []map[string]string) ([]db.AddResult, error) {
	if m.xaddMultiFn != nil {
		return m.xaddMultiFn(ctx, stream, entries)
	}
	out := make([]db.AddResult, len(entries))
	for i := range entries {
		out[i] = db.AddResult{ID: "1-" + string(rune('0'+i))}
	}
	return out, nil
}

func (m *mockStore) XAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	if m.xaddFn != nil {
		return m.xaddFn(ctx, stream, fields)
	}
	return "9-0", nil
}

func (m *mockStore) XGroupCreate(ctx context.Context, stream, group string) error {
	if m.xgroupFn != nil {
		return m.xgroupFn(ctx, stream, group)
	}
	return nil
}

func (m *mockStore) XReadGroup(
	ctx context.Context, stream, group, consumer string, block time.Duration,
) (*db.StreamEntry, error) {
	if m.xreadFn != nil {
		return m.xreadFn(ctx, stream, group, consumer, block)
	}
	return nil, nil
}

func (m *mockStore) XAck(ctx context.Context, stream, group string, ids ...string) error {
	m.acked = append(m.acked, ids...)
	if m.xackFn != nil {
		return m.xackFn(ctx, stream, group, ids...)
	}
	return nil
}

func (m *mockStore) XPendingIdle(
	ctx context.Context, stream, group string, minIdle time.Duration, count int,
) ([]db.PendingEntry, error) {
	if m.xpendingFn != nil {
		return m.xpendingFn(ctx, stream, group, minIdle, count)
	}
	return nil, nil
}

func (m *mockStore) XClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
) ([]db.StreamEntry, error) {
	if m.xclaimFn != nil {
		return m.xclaimFn(ctx, stream, group, consumer, minIdle, ids...)
	}
	return nil, nil
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.kv[key] = value
	return nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.kv, key)
	return nil
}
