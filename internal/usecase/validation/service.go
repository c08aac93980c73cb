// Package validation checks submitted document candidates before they are queued.
package validation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
)

// DefaultConcurrency bounds parallel HEAD probes per submission.
const DefaultConcurrency = 8

// Service validates candidates, probing image URLs concurrently.
type Service struct {
	prober      Prober
	concurrency int
}

// New creates a validation service.
func New(prober Prober) *Service {
	return &Service{prober: prober, concurrency: DefaultConcurrency}
}

// WithConcurrency configures the probe fan-out limit.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Validate returns one result per candidate, in input order.
// Probes run concurrently; each result is written to the slot of its own index.
func (s *Service) Validate(ctx context.Context, items []domdoc.Candidate) []dispatch.Result {
	results := make([]dispatch.Result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range items {
		if err := c.Validate(); err != nil {
			results[i] = dispatch.NewError(i, c, err)
			continue
		}
		if !c.HasURL() {
			results[i] = dispatch.NewOK(i, c)
			continue
		}
		g.Go(func() error {
			if err := s.prober.Probe(gctx, *c.URL); err != nil {
				results[i] = dispatch.NewError(i, c, err)
				return nil
			}
			results[i] = dispatch.NewOK(i, c)
			return nil
		})
	}
	_ = g.Wait() // probes never fail the group
	return results
}
