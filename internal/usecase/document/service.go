package document

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/metrics"
)

// MaxSubmission is the default maximum number of documents per submission.
const MaxSubmission = 100

// Service handles document submission and the read/delete surface.
type Service struct {
	repo            Repository
	validator       Validator
	dispatcher      Dispatcher
	defaultPageSize int
	maxPageSize     int
	maxSubmission   int
}

// New creates a document service.
func New(repo Repository, validator Validator, dispatcher Dispatcher) *Service {
	return &Service{
		repo:            repo,
		validator:       validator,
		dispatcher:      dispatcher,
		defaultPageSize: 20,
		maxPageSize:     100,
		maxSubmission:   MaxSubmission,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// WithMaxSubmission configures the maximum number of documents per submission.
func (s *Service) WithMaxSubmission(n int) *Service {
	if n > 0 {
		s.maxSubmission = n
	}
	return s
}

// Submit validates every candidate and enqueues the valid ones.
// It returns exactly one result per candidate, in submission order. A successful
// result only confirms that the document was queued; ingestion is eventual.
func (s *Service) Submit(ctx context.Context, items []domdoc.Candidate) ([]dispatch.Result, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("documents must not be empty: %w", domain.ErrValidation)
	}
	if len(items) > s.maxSubmission {
		return nil, fmt.Errorf("too many documents (max %d): %w", s.maxSubmission, domain.ErrValidation)
	}

	results := s.validator.Validate(ctx, items)

	entries := make([]dispatch.Entry, 0, len(results))
	for _, r := range results {
		if r.OK() {
			entries = append(entries, dispatch.Entry{Index: r.Index(), Candidate: r.Candidate()})
			continue
		}
		metrics.DispatchItemsTotal.WithLabelValues("invalid").Inc()
	}
	if len(entries) == 0 {
		return results, nil
	}

	for _, r := range s.dispatcher.Dispatch(ctx, entries) {
		results[r.Index()] = r
	}
	return results, nil
}

// Get returns a stored document by id.
func (s *Service) Get(ctx context.Context, id int64) (domdoc.Document, error) {
	if id < 0 {
		return domdoc.Document{}, fmt.Errorf("id must be non-negative: %w", domain.ErrValidation)
	}
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Page is one page of the document listing.
type Page struct {
	Documents []domdoc.Document
	Limit     int
	Offset    int
	Total     int
}

// List returns a page of documents ordered by id descending.
// A nil limit selects the default page size.
func (s *Service) List(ctx context.Context, limitParam *int, offset int) (Page, error) {
	limit := s.defaultPageSize
	if limitParam != nil {
		limit = *limitParam
	}
	if limit < 1 || limit > s.maxPageSize {
		return Page{}, fmt.Errorf("limit must be between 1 and %d: %w", s.maxPageSize, domain.ErrValidation)
	}
	if offset < 0 {
		return Page{}, fmt.Errorf("offset must be non-negative: %w", domain.ErrValidation)
	}

	docs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("list documents: %w", err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count documents: %w", err)
	}
	return Page{Documents: docs, Limit: limit, Offset: offset, Total: total}, nil
}

// Delete removes a document and returns it.
func (s *Service) Delete(ctx context.Context, id int64) (domdoc.Document, error) {
	if id < 0 {
		return domdoc.Document{}, fmt.Errorf("id must be non-negative: %w", domain.ErrValidation)
	}
	doc, err := s.repo.Delete(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("delete document: %w", err)
	}
	return doc, nil
}
