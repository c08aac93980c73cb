package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// Search parameter limits.
const (
	DefaultTopK      = 10
	MaxTopK          = 100
	DefaultThreshold = 0.0
	// MaxDescriptionLength is the maximum allowed query description length.
	MaxDescriptionLength = 4096
)

// Params are the ranking knobs shared by search and recommend.
type Params struct {
	threshold float64
	topK      int
}

// NewParams validates ranking parameters. Nil values take the defaults.
// threshold must lie in [0,1] and topK in [0,MaxTopK]; topK=0 is a valid empty query.
func NewParams(threshold *float64, topK *int) (Params, error) {
	p := Params{threshold: DefaultThreshold, topK: DefaultTopK}
	if threshold != nil {
		if *threshold < 0 || *threshold > 1 {
			return Params{}, domain.Validationf("threshold must be between 0 and 1")
		}
		p.threshold = *threshold
	}
	if topK != nil {
		if *topK < 0 || *topK > MaxTopK {
			return Params{}, domain.Validationf("topK must be between 0 and %d", MaxTopK)
		}
		p.topK = *topK
	}
	return p, nil
}

// Threshold returns the minimum similarity a hit must reach.
func (p Params) Threshold() float64 { return p.threshold }

// TopK returns the maximum number of hits.
func (p Params) TopK() int { return p.topK }

// Request is the canonical, validated search query. Multipart uploads have
// already been staged and appear here as a plain URL.
type Request struct {
	Params
	url         string
	description string
}

// New validates and normalizes a search query.
func New(url, description *string, threshold *float64, topK *int) (Request, error) {
	u, d := trimmed(url), trimmed(description)
	if u == "" && d == "" {
		return Request{}, domain.Validationf("url or description is required")
	}
	if len(d) > MaxDescriptionLength {
		return Request{}, domain.Validationf("description too long (max %d chars)", MaxDescriptionLength)
	}
	if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return Request{}, fmt.Errorf("url must be http or https: %w", domain.ErrValidation)
	}
	p, err := NewParams(threshold, topK)
	if err != nil {
		return Request{}, err
	}
	return Request{Params: p, url: u, description: d}, nil
}

// URL returns the image URL, empty when the query is text only.
func (r Request) URL() string { return r.url }

// Description returns the text part of the query.
func (r Request) Description() string { return r.description }

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
