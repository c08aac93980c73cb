package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates at least one failing component.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service runs named component probes concurrently.
type Service struct {
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New creates a Service probing the vector store, the queue broker and,
// when non-nil, the embedding provider.
func New(db, queue Pinger, embedding EmbeddingChecker) *Service {
	s := &Service{checks: map[string]CheckFunc{}, timeout: DefaultCheckTimeout}
	s.Register("database", db.Ping)
	s.Register("queue", queue.Ping)
	if embedding != nil {
		s.Register("embedding", embedding.HealthCheck)
	}
	return s
}

// Register adds or replaces a named probe.
func (s *Service) Register(name string, fn CheckFunc) {
	s.checks[name] = fn
}

// WithTimeout configures the per-probe timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all probes; one failing probe degrades the report.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.checks))
		g      errgroup.Group
	)
	for name, fn := range s.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}
