package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/metrics"
)

// GuardedEmbedder enforces a Budget around an embedder.
// Request metrics are recorded by the provider transport; this layer owns the budget gauges.
type GuardedEmbedder struct {
	inner    Embedder
	budget   *Budget
	provider string
	logger   *zap.Logger
}

// NewGuardedEmbedder wraps inner with budget enforcement.
func NewGuardedEmbedder(inner Embedder, budget *Budget, logger *zap.Logger) *GuardedEmbedder {
	g := &GuardedEmbedder{inner: inner, budget: budget, provider: budget.provider, logger: logger}
	g.publish()
	return g
}

// Embed checks the budget, delegates and records token usage.
func (g *GuardedEmbedder) Embed(ctx context.Context, in domain.EmbeddingInput) (domain.EmbeddingResult, error) {
	if err := g.budget.Check(); err != nil {
		g.logger.Warn("Embedding rejected by budget", zap.Error(err))
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := g.inner.Embed(ctx, in)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	g.budget.Record(ctx, int64(res.TotalTokens))
	g.publish()

	g.logger.Debug("Embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

func (g *GuardedEmbedder) publish() {
	daily, monthly := g.budget.Remaining()
	metrics.EmbeddingBudgetTokensRemaining.WithLabelValues(g.provider, "daily").Set(float64(daily))
	metrics.EmbeddingBudgetTokensRemaining.WithLabelValues(g.provider, "monthly").Set(float64(monthly))
}
