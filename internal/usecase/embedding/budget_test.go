package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

func TestBudget_RejectWhenDailySpent(t *testing.T) {
	b := NewBudget("test", Limits{Daily: 100, Action: ActionReject}, zap.NewNop())
	b.Record(context.Background(), 100)

	if err := b.Check(); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestBudget_RejectWhenMonthlySpent(t *testing.T) {
	b := NewBudget("test", Limits{Monthly: 500, Action: ActionReject}, zap.NewNop())
	b.Record(context.Background(), 500)

	err := b.Check()
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestBudget_WarnLetsThrough(t *testing.T) {
	b := NewBudget("test", Limits{Daily: 100}, zap.NewNop())
	b.Record(context.Background(), 200)

	if err := b.Check(); err != nil {
		t.Fatalf("expected nil for warn action, got %v", err)
	}
}

func TestBudget_Unlimited(t *testing.T) {
	b := NewBudget("test", Limits{Action: ActionReject}, zap.NewNop())
	b.Record(context.Background(), 1<<40)

	if err := b.Check(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	daily, monthly := b.Remaining()
	if daily != -1 || monthly != -1 {
		t.Errorf("Remaining = %d/%d, want -1/-1", daily, monthly)
	}
}

func TestBudget_Remaining(t *testing.T) {
	b := NewBudget("test", Limits{Daily: 1000, Monthly: 10000}, zap.NewNop())
	b.Record(context.Background(), 300)
	b.Record(context.Background(), 0)

	daily, monthly := b.Remaining()
	if daily != 700 || monthly != 9700 {
		t.Errorf("Remaining = %d/%d, want 700/9700", daily, monthly)
	}

	b.Record(context.Background(), 5000)
	if daily, _ = b.Remaining(); daily != 0 {
		t.Errorf("daily remaining = %d, want 0", daily)
	}
}

func TestBudget_Rollover(t *testing.T) {
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	b := NewBudget("test", Limits{Daily: 100, Monthly: 1000, Action: ActionReject}, zap.NewNop())
	b.now = func() time.Time { return now }
	b.day, b.month = periods(now)

	b.Record(context.Background(), 100)
	if err := b.Check(); err == nil {
		t.Fatal("expected daily budget to be spent")
	}

	now = now.Add(2 * time.Hour)
	if err := b.Check(); err != nil {
		t.Fatalf("expected a fresh day and month, got %v", err)
	}
	daily, monthly := b.Used()
	if daily != 0 || monthly != 0 {
		t.Errorf("Used = %d/%d after rollover", daily, monthly)
	}
}

type memCounters struct {
	mu     sync.Mutex
	data   map[string]int64
	ttls   map[string]time.Duration
	getErr error
	incErr error
}

func newMemCounters() *memCounters {
	return &memCounters{data: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (m *memCounters) GetInt(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func (m *memCounters) IncrBy(_ context.Context, key string, val int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incErr != nil {
		return m.incErr
	}
	m.data[key] += val
	m.ttls[key] = ttl
	return nil
}

func TestBudget_WithStore_Loads(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store := newMemCounters()
	store.data["app:budget:titan:daily:2026-05-04"] = 300
	store.data["app:budget:titan:monthly:2026-05"] = 5000

	b := NewBudget("titan", Limits{Daily: 1000, Monthly: 10000}, zap.NewNop())
	b.now = func() time.Time { return now }
	b.day, b.month = periods(now)
	b.WithStore(context.Background(), store, "app:")

	daily, monthly := b.Used()
	if daily != 300 || monthly != 5000 {
		t.Errorf("Used = %d/%d, want 300/5000", daily, monthly)
	}
}

func TestBudget_Record_WritesBehind(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store := newMemCounters()

	b := NewBudget("titan", Limits{}, zap.NewNop())
	b.now = func() time.Time { return now }
	b.day, b.month = periods(now)
	b.WithStore(context.Background(), store, "")

	b.Record(context.Background(), 100)
	b.Record(context.Background(), 200)

	dailyKey := "mmdex:budget:titan:daily:2026-05-04"
	if got := store.data[dailyKey]; got != 300 {
		t.Errorf("stored daily = %d, want 300", got)
	}
	if got := store.ttls[dailyKey]; got != dailyKeyTTL {
		t.Errorf("daily ttl = %v", got)
	}
	if got := store.data["mmdex:budget:titan:monthly:2026-05"]; got != 300 {
		t.Errorf("stored monthly = %d, want 300", got)
	}
}

func TestBudget_StoreErrorsAreNotFatal(t *testing.T) {
	store := newMemCounters()
	store.getErr = errors.New("down")
	store.incErr = errors.New("down")

	b := NewBudget("titan", Limits{Daily: 1000}, zap.NewNop()).
		WithStore(context.Background(), store, "")
	b.Record(context.Background(), 10)

	if daily, _ := b.Used(); daily != 10 {
		t.Errorf("daily used = %d, want 10", daily)
	}
}
