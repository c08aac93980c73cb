package document

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/kailas-cloud/mmdex/internal/db/postgres"
)

// mockAcquirer hands the repository a pgxmock pool.
type mockAcquirer struct {
	q   postgres.Querier
	err error
}

func (m *mockAcquirer) Querier(context.Context) (postgres.Querier, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.q, nil
}

func newMockRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		pool.Close()
	})
	return New(&mockAcquirer{q: pool}), pool
}

func strPtr(s string) *string { return &s }

var docColumns = []string{"id", "url", "description", "metadata", "timestamp"}
