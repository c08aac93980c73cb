package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
)

// --- Mocks ---

type mockRepo struct {
	getFn    func(id int64) (domdoc.Document, error)
	listDocs []domdoc.Document
	listErr  error
	listArgs [2]int
	count    int
	countErr error
	deleteFn func(id int64) (domdoc.Document, error)
}

func (m *mockRepo) Get(_ context.Context, id int64) (domdoc.Document, error) {
	return m.getFn(id)
}
func (m *mockRepo) List(_ context.Context, limit, offset int) ([]domdoc.Document, error) {
	m.listArgs = [2]int{limit, offset}
	return m.listDocs, m.listErr
}
func (m *mockRepo) Count(_ context.Context) (int, error) { return m.count, m.countErr }
func (m *mockRepo) Delete(_ context.Context, id int64) (domdoc.Document, error) {
	return m.deleteFn(id)
}

// mockValidator rejects candidates without a description.
type mockValidator struct{}

func (mockValidator) Validate(_ context.Context, items []domdoc.Candidate) []dispatch.Result {
	out := make([]dispatch.Result, len(items))
	for i, c := range items {
		if c.Description == nil {
			out[i] = dispatch.NewError(i, c, domain.Validationf("url or description is required"))
			continue
		}
		out[i] = dispatch.NewOK(i, c)
	}
	return out
}

type mockDispatcher struct {
	got []dispatch.Entry
	fn  func(e dispatch.Entry) error
}

func (m *mockDispatcher) Dispatch(_ context.Context, entries []dispatch.Entry) []dispatch.Result {
	m.got = entries
	out := make([]dispatch.Result, len(entries))
	for i, e := range entries {
		if m.fn != nil {
			if err := m.fn(e); err != nil {
				out[i] = dispatch.NewError(e.Index, e.Candidate, err)
				continue
			}
		}
		out[i] = dispatch.NewOK(e.Index, e.Candidate)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func storedDoc(t *testing.T, id int64) domdoc.Document {
	t.Helper()
	return domdoc.Reconstruct(id, nil, ptr("stored"), nil, []float32{1}, time.Unix(0, 0))
}

// --- Submit ---

func TestSubmit_MergesValidationAndDispatch(t *testing.T) {
	disp := &mockDispatcher{fn: func(e dispatch.Entry) error {
		if e.Index == 3 {
			return domain.ErrQueueTransport
		}
		return nil
	}}
	svc := New(&mockRepo{}, mockValidator{}, disp)

	res, err := svc.Submit(context.Background(), []domdoc.Candidate{
		{Description: ptr("A")},
		{URL: ptr("http://example/a.png")},
		{Description: ptr("C")},
		{Description: ptr("D")},
	})
	require.NoError(t, err)
	require.Len(t, res, 4)

	assert.True(t, res[0].OK())
	assert.ErrorIs(t, res[1].Err(), domain.ErrValidation)
	assert.True(t, res[2].OK())
	assert.ErrorIs(t, res[3].Err(), domain.ErrQueueTransport)
	for i, r := range res {
		assert.Equal(t, i, r.Index())
	}

	// Only valid candidates reach the queue, tagged with their submission index.
	require.Len(t, disp.got, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{disp.got[0].Index, disp.got[1].Index, disp.got[2].Index})
}

func TestSubmit_AllInvalidSkipsDispatch(t *testing.T) {
	disp := &mockDispatcher{}
	res, err := New(&mockRepo{}, mockValidator{}, disp).Submit(context.Background(), []domdoc.Candidate{{}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.False(t, res[0].OK())
	assert.Nil(t, disp.got)
}

func TestSubmit_SizeLimits(t *testing.T) {
	svc := New(&mockRepo{}, mockValidator{}, &mockDispatcher{}).WithMaxSubmission(2)

	_, err := svc.Submit(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Submit(context.Background(), make([]domdoc.Candidate, 3))
	require.ErrorIs(t, err, domain.ErrValidation)
}

// --- Get / Delete ---

func TestGet(t *testing.T) {
	repo := &mockRepo{getFn: func(id int64) (domdoc.Document, error) {
		if id == 7 {
			return storedDoc(t, 7), nil
		}
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}}
	svc := New(repo, mockValidator{}, &mockDispatcher{})

	doc, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.ID())

	_, err = svc.Get(context.Background(), 8)
	require.ErrorIs(t, err, domain.ErrDocumentNotFound)

	_, err = svc.Get(context.Background(), -1)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestDelete_Twice(t *testing.T) {
	deleted := map[int64]bool{}
	repo := &mockRepo{deleteFn: func(id int64) (domdoc.Document, error) {
		if deleted[id] {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		deleted[id] = true
		return storedDoc(t, id), nil
	}}
	svc := New(repo, mockValidator{}, &mockDispatcher{})

	doc, err := svc.Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc.ID())

	_, err = svc.Delete(context.Background(), 3)
	require.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

// --- List ---

func TestList_DefaultsAndBounds(t *testing.T) {
	repo := &mockRepo{listDocs: []domdoc.Document{storedDoc(t, 2), storedDoc(t, 1)}, count: 42}
	svc := New(repo, mockValidator{}, &mockDispatcher{})

	page, err := svc.List(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, [2]int{20, 0}, repo.listArgs)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 42, page.Total)
	assert.Len(t, page.Documents, 2)

	for _, tc := range []struct{ limit, offset int }{{101, 0}, {-1, 0}, {0, 0}, {10, -5}} {
		_, err := svc.List(context.Background(), &tc.limit, tc.offset)
		assert.ErrorIs(t, err, domain.ErrValidation, "limit=%d offset=%d", tc.limit, tc.offset)
	}
}

func TestList_StorageError(t *testing.T) {
	repo := &mockRepo{listErr: domain.ErrStorage}
	_, err := New(repo, mockValidator{}, &mockDispatcher{}).List(context.Background(), ptr(5), 0)
	require.ErrorIs(t, err, domain.ErrStorage)

	repo = &mockRepo{countErr: errors.New("down")}
	_, err = New(repo, mockValidator{}, &mockDispatcher{}).List(context.Background(), ptr(5), 0)
	require.Error(t, err)
}
