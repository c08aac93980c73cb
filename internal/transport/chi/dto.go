package chi

import (
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain/dispatch"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

type errorResponse struct {
	Error string `json:"error"`
}

type documentInput struct {
	URL         *string        `json:"url,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type submitRequest struct {
	Documents []documentInput `json:"documents"`
}

// submitItem reports enqueue success only. Ingestion itself is asynchronous.
type submitItem struct {
	Success     bool           `json:"success"`
	URL         *string        `json:"url,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Errors      string         `json:"errors,omitempty"`
}

type documentView struct {
	ID          int64          `json:"id"`
	URL         *string        `json:"url"`
	Description *string        `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Timestamp   time.Time      `json:"timestamp"`
}

type documentResponse struct {
	Document documentView `json:"document"`
}

type listResponse struct {
	Documents []documentView `json:"documents"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
	Count     int            `json:"count"`
	Total     int            `json:"total"`
}

type hitView struct {
	documentView
	Score float64 `json:"score"`
}

type searchResponse struct {
	Hits  []hitView `json:"hits"`
	Count int       `json:"count"`
}

type searchJSONRequest struct {
	URL         *string  `json:"url"`
	Description *string  `json:"description"`
	Threshold   *float64 `json:"threshold"`
	TopK        *int     `json:"topK"`
}

type recommendRequest struct {
	Threshold *float64 `json:"threshold"`
	TopK      *int     `json:"topK"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func candidatesFromInput(in []documentInput) []domdoc.Candidate {
	out := make([]domdoc.Candidate, len(in))
	for i, d := range in {
		out[i] = domdoc.Candidate{URL: d.URL, Description: d.Description, Metadata: d.Metadata}
	}
	return out
}

func submitItemFromResult(r dispatch.Result) submitItem {
	c := r.Candidate()
	item := submitItem{
		Success:     r.OK(),
		URL:         c.URL,
		Description: c.Description,
		Metadata:    c.Metadata,
	}
	if !r.OK() {
		item.Errors = itemErrorMessage(r.Err())
	}
	return item
}

func documentToView(d domdoc.Document) documentView {
	return documentView{
		ID:          d.ID(),
		URL:         d.URL(),
		Description: d.Description(),
		Metadata:    d.Metadata(),
		Timestamp:   d.CreatedAt(),
	}
}

func hitsToResponse(hits []result.Result) searchResponse {
	views := make([]hitView, len(hits))
	for i := range hits {
		views[i] = hitView{documentView: documentToView(hits[i].Document()), Score: hits[i].Score()}
	}
	return searchResponse{Hits: views, Count: len(views)}
}
