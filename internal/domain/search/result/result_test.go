package result

import (
	"testing"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain/document"
)

func hit(id int64, score float64) Result {
	desc := "d"
	return New(document.Reconstruct(id, nil, &desc, nil, nil, time.Time{}), score)
}

func TestNew(t *testing.T) {
	r := hit(7, 0.95)
	if r.ID() != 7 {
		t.Errorf("ID() = %d", r.ID())
	}
	if r.Score() != 0.95 {
		t.Errorf("Score() = %f", r.Score())
	}
	doc := r.Document()
	if *doc.Description() != "d" {
		t.Errorf("Document().Description() = %q", *doc.Description())
	}
}

func TestRank_ThresholdAndTopK(t *testing.T) {
	hits := []Result{hit(1, 0.5), hit(2, 0.95), hit(3, 0.91), hit(4, 0.99), hit(5, 0.89), hit(6, 0.93), hit(7, 0.97), hit(8, 0.92)}

	got := Rank(hits, 0.9, 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, h := range got {
		if h.Score() < 0.9 {
			t.Errorf("hit %d score %f below threshold", i, h.Score())
		}
		if i > 0 && got[i-1].Score() < h.Score() {
			t.Errorf("hits not sorted at %d: %f < %f", i, got[i-1].Score(), h.Score())
		}
	}
	if got[0].ID() != 4 {
		t.Errorf("top hit = %d, want 4", got[0].ID())
	}
}

func TestRank_TiesPreferNewerID(t *testing.T) {
	got := Rank([]Result{hit(1, 0.8), hit(9, 0.8)}, 0, 10)
	if got[0].ID() != 9 {
		t.Errorf("first = %d, want 9", got[0].ID())
	}
}

func TestRank_TopKZero(t *testing.T) {
	got := Rank([]Result{hit(1, 1)}, 0, 0)
	if got == nil || len(got) != 0 {
		t.Errorf("Rank(topK=0) = %v, want empty non-nil", got)
	}
}
