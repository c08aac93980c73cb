package result

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/mmdex/internal/domain/document"
)

// Result is a single search hit: a stored document plus its similarity score.
type Result struct {
	doc   document.Document
	score float64
}

// New creates a search result.
func New(doc document.Document, score float64) Result {
	return Result{doc: doc, score: score}
}

// Document returns the matched document.
func (r *Result) Document() document.Document { return r.doc }

// ID returns the document identifier.
func (r *Result) ID() int64 { return r.doc.ID() }

// Score returns the similarity score (1 - cosine distance).
func (r *Result) Score() float64 { return r.score }

// Rank drops hits below threshold, orders the rest by score descending
// (ties broken by newer id first) and keeps at most topK.
func Rank(hits []Result, threshold float64, topK int) []Result {
	if topK <= 0 {
		return []Result{}
	}
	kept := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.score >= threshold {
			kept = append(kept, h)
		}
	}
	slices.SortStableFunc(kept, func(a, b Result) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(b.doc.ID(), a.doc.ID())
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
