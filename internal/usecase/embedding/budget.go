// Package embedding guards the embedding provider with a token budget.
package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// Action defines behavior once a budget period is spent.
type Action string

const (
	// ActionWarn logs and lets the request through.
	ActionWarn Action = "warn"
	// ActionReject fails the request with domain.ErrEmbeddingQuotaExceeded.
	ActionReject Action = "reject"
)

const (
	dailyKeyTTL    = 48 * time.Hour
	monthlyKeyTTL  = 32 * 24 * time.Hour
	persistTimeout = 2 * time.Second
)

// Limits caps token spend per UTC day and month. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
	Action  Action
}

// Budget tracks embedding tokens per UTC day and month.
// Check reads in-memory counters only; Record writes behind to the store so
// API and worker processes start from the shared total after a restart.
type Budget struct {
	mu          sync.Mutex
	limits      Limits
	provider    string
	prefix      string
	dailyUsed   int64
	monthlyUsed int64
	day         time.Time
	month       time.Time
	store       CounterStore
	now         func() time.Time
	logger      *zap.Logger
}

// NewBudget creates an in-memory budget for provider.
func NewBudget(provider string, limits Limits, logger *zap.Logger) *Budget {
	if limits.Action == "" {
		limits.Action = ActionWarn
	}
	b := &Budget{
		limits:   limits,
		provider: provider,
		prefix:   domain.KeyPrefix,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	b.day, b.month = periods(b.now())
	return b
}

// WithStore attaches persistence under prefix and loads the current period's counters.
func (b *Budget) WithStore(ctx context.Context, store CounterStore, prefix string) *Budget {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	if prefix != "" {
		b.prefix = prefix
	}
	now := b.now()

	if n, err := store.GetInt(ctx, b.dailyKey(now)); err == nil {
		b.dailyUsed = n
	} else {
		b.logger.Warn("Failed to load daily budget", zap.Error(err))
	}
	if n, err := store.GetInt(ctx, b.monthlyKey(now)); err == nil {
		b.monthlyUsed = n
	} else {
		b.logger.Warn("Failed to load monthly budget", zap.Error(err))
	}

	b.logger.Info("Embedding budget loaded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
	return b
}

// Check reports whether a new embedding request may proceed.
func (b *Budget) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	dailyOver := b.limits.Daily > 0 && b.dailyUsed >= b.limits.Daily
	monthlyOver := b.limits.Monthly > 0 && b.monthlyUsed >= b.limits.Monthly
	if !dailyOver && !monthlyOver {
		return nil
	}

	if b.limits.Action == ActionReject {
		period := "daily"
		if !dailyOver {
			period = "monthly"
		}
		return fmt.Errorf("%s budget of %s spent: %w", period, b.provider, domain.ErrEmbeddingQuotaExceeded)
	}

	b.logger.Warn("Embedding token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.limits.Daily),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.limits.Monthly),
	)
	return nil
}

// Record adds consumed tokens. Store failures are logged, never returned.
func (b *Budget) Record(ctx context.Context, tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	b.rollover()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := store.IncrBy(ctx, b.dailyKey(now), tokens, dailyKeyTTL); err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.Error(err))
	}
	if err := store.IncrBy(ctx, b.monthlyKey(now), tokens, monthlyKeyTTL); err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.Error(err))
	}
}

// Remaining returns tokens left in each period, -1 when the period is unlimited.
func (b *Budget) Remaining() (daily, monthly int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return remaining(b.limits.Daily, b.dailyUsed), remaining(b.limits.Monthly, b.monthlyUsed)
}

// Used returns tokens consumed in the current day and month.
func (b *Budget) Used() (daily, monthly int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.dailyUsed, b.monthlyUsed
}

func (b *Budget) rollover() {
	day, month := periods(b.now())
	if day.After(b.day) {
		b.dailyUsed = 0
		b.day = day
	}
	if month.After(b.month) {
		b.monthlyUsed = 0
		b.month = month
	}
}

func (b *Budget) dailyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", b.prefix, b.provider, t.Format("2006-01-02"))
}

func (b *Budget) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", b.prefix, b.provider, t.Format("2006-01"))
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

func periods(t time.Time) (day, month time.Time) {
	day = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	month = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return day, month
}
