package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	documentuc "github.com/kailas-cloud/mmdex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/mmdex/internal/usecase/health"
)

// --- mockDocuments ---

type mockDocuments struct {
	submitFn func(ctx context.Context, items []domdoc.Candidate) ([]dispatch.Result, error)
	getFn    func(ctx context.Context, id int64) (domdoc.Document, error)
	listFn   func(ctx context.Context, limit *int, offset int) (documentuc.Page, error)
	deleteFn func(ctx context.Context, id int64) (domdoc.Document, error)
}

func (m *mockDocuments) Submit(ctx context.Context, items []domdoc.Candidate) ([]dispatch.Result, error) {
	return m.submitFn(ctx, items)
}

func (m *mockDocuments) Get(ctx context.Context, id int64) (domdoc.Document, error) {
	return m.getFn(ctx, id)
}

func (m *mockDocuments) List(ctx context.Context, limit *int, offset int) (documentuc.Page, error) {
	return m.listFn(ctx, limit, offset)
}

func (m *mockDocuments) Delete(ctx context.Context, id int64) (domdoc.Document, error) {
	return m.deleteFn(ctx, id)
}

// --- mockSearcher ---

type mockSearcher struct {
	searchFn    func(ctx context.Context, in request.Input) ([]result.Result, error)
	recommendFn func(ctx context.Context, id int64, threshold *float64, topK *int) ([]result.Result, error)
}

func (m *mockSearcher) Search(ctx context.Context, in request.Input) ([]result.Result, error) {
	return m.searchFn(ctx, in)
}

func (m *mockSearcher) Recommend(
	ctx context.Context, id int64, threshold *float64, topK *int,
) ([]result.Result, error) {
	return m.recommendFn(ctx, id, threshold, topK)
}

// --- mockStaging ---

type mockStaging struct {
	openFn func(ctx context.Context, id, name string) (string, []byte, error)
}

func (m *mockStaging) Open(ctx context.Context, id, name string) (string, []byte, error) {
	return m.openFn(ctx, id, name)
}

// --- mockHealth ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- helpers ---

type fixture struct {
	docs    *mockDocuments
	search  *mockSearcher
	staging *mockStaging
	health  *mockHealth
	handler http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		docs:    &mockDocuments{},
		search:  &mockSearcher{},
		staging: &mockStaging{},
		health:  &mockHealth{},
	}
	f.handler = NewServer(f.docs, f.search, f.staging, f.health, nil).Router()
	return f
}

func (f *fixture) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func ptr[T any](v T) *T { return &v }

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func doc(id int64, url, desc *string) domdoc.Document {
	return domdoc.Reconstruct(id, url, desc, map[string]any{"k": "v"}, []float32{0.1, 0.2}, testTime)
}
