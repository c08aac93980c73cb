package chi

import (
	"context"

	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	documentuc "github.com/kailas-cloud/mmdex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/mmdex/internal/usecase/health"
)

// Documents is the document use case consumed by the HTTP layer.
type Documents interface {
	Submit(ctx context.Context, items []domdoc.Candidate) ([]dispatch.Result, error)
	Get(ctx context.Context, id int64) (domdoc.Document, error)
	List(ctx context.Context, limit *int, offset int) (documentuc.Page, error)
	Delete(ctx context.Context, id int64) (domdoc.Document, error)
}

// Searcher runs similarity queries.
type Searcher interface {
	Search(ctx context.Context, in request.Input) ([]result.Result, error)
	Recommend(ctx context.Context, id int64, threshold *float64, topK *int) ([]result.Result, error)
}

// StagedBlobs serves images parked for an in-flight search.
type StagedBlobs interface {
	Open(ctx context.Context, id, name string) (string, []byte, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
