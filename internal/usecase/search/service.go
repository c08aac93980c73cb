// Package search answers similarity queries over stored documents.
package search

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	"github.com/kailas-cloud/mmdex/internal/observability"
)

// DefaultTimeout bounds one search end to end.
const DefaultTimeout = 30 * time.Second

// Service normalizes search input, embeds the query and ranks stored documents.
type Service struct {
	repo         Repository
	vec          Vectorizer
	stager       Stager
	timeout      time.Duration
	allowedTypes map[string]struct{}
	logger       *zap.Logger
}

// New creates a search service.
func New(repo Repository, vec Vectorizer, stager Stager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{repo: repo, vec: vec, stager: stager, timeout: DefaultTimeout, logger: logger}
	return s.WithImageTypes([]string{"image/jpeg", "image/png"})
}

// WithTimeout configures the per-search deadline.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithImageTypes configures the content types accepted for uploaded images.
func (s *Service) WithImageTypes(types []string) *Service {
	if len(types) == 0 {
		return s
	}
	s.allowedTypes = make(map[string]struct{}, len(types))
	for _, t := range types {
		s.allowedTypes[strings.ToLower(t)] = struct{}{}
	}
	return s
}

// Search resolves a JSON or multipart request into one canonical query and runs it.
// An uploaded image is staged for the duration of the call and always released.
func (s *Service) Search(ctx context.Context, in request.Input) (hits []result.Result, err error) {
	ctx, span := observability.StartSpan(ctx, "search")
	defer func() { observability.End(span, err) }()

	switch v := in.(type) {
	case request.JSONInput:
		req, err := request.New(v.URL, v.Description, v.Threshold, v.TopK)
		if err != nil {
			return nil, err
		}
		return s.run(ctx, req, 0)

	case request.MultipartInput:
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if !v.HasImage() {
			req, err := request.New(nil, v.Description, v.Threshold, v.TopK)
			if err != nil {
				return nil, err
			}
			return s.run(ctx, req, 0)
		}
		return s.searchUpload(ctx, v)

	default:
		return nil, fmt.Errorf("unsupported search input %T: %w", in, domain.ErrValidation)
	}
}

func (s *Service) searchUpload(ctx context.Context, in request.MultipartInput) ([]result.Result, error) {
	if !s.allowed(in.Image.ContentType) {
		return nil, domain.UnsupportedMediaf("Invalid file type. Only JPEG and PNG images are allowed.")
	}

	staged, err := s.stager.Stage(ctx, *in.Image)
	if err != nil {
		return nil, fmt.Errorf("stage image: %w", err)
	}
	defer s.release(ctx, staged)

	url := staged.URL
	req, err := request.New(&url, in.Description, in.Threshold, in.TopK)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, req, 0)
}

// release deletes a staged image. It runs on every exit path, including
// cancellation, so it must not inherit the caller's cancellation.
func (s *Service) release(ctx context.Context, staged request.Staged) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.stager.Unstage(rctx, staged); err != nil {
		s.logger.Warn("release staged image", zap.String("key", staged.Key), zap.Error(err))
	}
}

// Recommend returns documents similar to the stored document id, excluding itself.
func (s *Service) Recommend(
	ctx context.Context, id int64, threshold *float64, topK *int,
) (hits []result.Result, err error) {
	ctx, span := observability.StartSpan(ctx, "recommend", attribute.Int64("document.id", id))
	defer func() { observability.End(span, err) }()

	if id < 0 {
		return nil, fmt.Errorf("id must be non-negative: %w", domain.ErrValidation)
	}
	params, err := request.NewParams(threshold, topK)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if params.TopK() == 0 {
		return []result.Result{}, nil
	}
	return s.query(ctx, doc.Embedding(), params, id)
}

// run embeds the canonical request and queries the store.
func (s *Service) run(ctx context.Context, req request.Request, excludeID int64) ([]result.Result, error) {
	if req.TopK() == 0 {
		return []result.Result{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	emb, err := s.vec.Vectorize(ctx, req.URL(), req.Description())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	return s.query(ctx, emb.Embedding, req.Params, excludeID)
}

func (s *Service) query(
	ctx context.Context, embedding []float32, p request.Params, excludeID int64,
) ([]result.Result, error) {
	hits, err := s.repo.Query(ctx, embedding, p.Threshold(), p.TopK(), excludeID)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	// The store already filters and orders; Rank enforces the contract regardless of backend.
	return result.Rank(hits, p.Threshold(), p.TopK()), nil
}

func (s *Service) allowed(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := s.allowedTypes[strings.ToLower(mt)]
	return ok
}
