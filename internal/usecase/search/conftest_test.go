package search

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

type queryCall struct {
	threshold float64
	topK      int
	excludeID int64
}

type mockRepo struct {
	hits    []result.Result
	err     error
	docs    map[int64]domdoc.Document
	queries []queryCall
	ctxErr  error
}

func (m *mockRepo) Query(
	ctx context.Context, _ []float32, threshold float64, topK int, excludeID int64,
) ([]result.Result, error) {
	m.queries = append(m.queries, queryCall{threshold, topK, excludeID})
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (domdoc.Document, error) {
	if d, ok := m.docs[id]; ok {
		return d, nil
	}
	return domdoc.Document{}, domain.ErrDocumentNotFound
}

type vecCall struct{ url, description string }

type mockVectorizer struct {
	calls []vecCall
	err   error
	block bool // wait for ctx cancellation
}

func (m *mockVectorizer) Vectorize(ctx context.Context, url, description string) (domain.EmbeddingResult, error) {
	m.calls = append(m.calls, vecCall{url, description})
	if m.block {
		<-ctx.Done()
		return domain.EmbeddingResult{}, ctx.Err()
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

type mockStager struct {
	mu         sync.Mutex
	stageErr   error
	staged     []request.Upload
	released   []request.Staged
	releaseCtx []error
}

func (m *mockStager) Stage(_ context.Context, up request.Upload) (request.Staged, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stageErr != nil {
		return request.Staged{}, m.stageErr
	}
	m.staged = append(m.staged, up)
	return request.Staged{Key: "k/" + up.Filename, URL: "http://api.local/staging/id/" + up.Filename}, nil
}

func (m *mockStager) Unstage(ctx context.Context, ref request.Staged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, ref)
	m.releaseCtx = append(m.releaseCtx, ctx.Err())
	return nil
}

func doc(id int64) domdoc.Document {
	d := "doc"
	return domdoc.Reconstruct(id, nil, &d, nil, []float32{0, 1}, time.Unix(0, 0))
}

func hit(id int64, score float64) result.Result { return result.New(doc(id), score) }

func ptr[T any](v T) *T { return &v }
