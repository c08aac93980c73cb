package document

import (
	"context"

	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
)

// Repository defines the read and delete contract for stored documents.
type Repository interface {
	Get(ctx context.Context, id int64) (domdoc.Document, error)
	List(ctx context.Context, limit, offset int) ([]domdoc.Document, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id int64) (domdoc.Document, error)
}

// Validator checks submitted candidates.
type Validator interface {
	Validate(ctx context.Context, items []domdoc.Candidate) []dispatch.Result
}

// Dispatcher enqueues validated candidates for ingestion.
type Dispatcher interface {
	Dispatch(ctx context.Context, entries []dispatch.Entry) []dispatch.Result
}
