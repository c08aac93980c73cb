package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	stagingrepo "github.com/kailas-cloud/mmdex/internal/repository/staging"
	healthuc "github.com/kailas-cloud/mmdex/internal/usecase/health"
)

// Body limits.
const (
	DefaultMaxJSONBytes  int64 = 1 << 20
	DefaultMaxImageBytes int64 = 5 << 20
	// multipartOverhead covers form fields and part headers next to the image.
	multipartOverhead int64 = 1 << 20
)

// Server serves the document, search and staging endpoints.
type Server struct {
	documents     Documents
	search        Searcher
	staging       StagedBlobs
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler

	maxJSONBytes  int64
	maxImageBytes int64
}

// NewServer creates an HTTP API server.
func NewServer(
	documents Documents,
	search Searcher,
	staging StagedBlobs,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		documents:     documents,
		search:        search,
		staging:       staging,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
		maxJSONBytes:  DefaultMaxJSONBytes,
		maxImageBytes: DefaultMaxImageBytes,
	}
}

// WithBodyLimits configures the JSON body cap and the uploaded image cap.
func (s *Server) WithBodyLimits(jsonBytes, imageBytes int64) *Server {
	if jsonBytes > 0 {
		s.maxJSONBytes = jsonBytes
	}
	if imageBytes > 0 {
		s.maxImageBytes = imageBytes
	}
	return s
}

// SubmitDocuments handles POST /api/document.
func (s *Server) SubmitDocuments(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decodeJSON(w, r, &req, false) {
		return
	}

	results, err := s.documents.Submit(r.Context(), candidatesFromInput(req.Documents))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]submitItem, len(results))
	for i, res := range results {
		items[i] = submitItemFromResult(res)
	}
	w.Header().Set("X-Ingestion", "queued")
	writeJSON(w, http.StatusOK, items)
}

// ListDocuments handles GET /api/document.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var limit, offset *int
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter limit: %s", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &offset); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter offset: %s", err))
		return
	}

	page, err := s.documents.List(r.Context(), limit, derefInt(offset))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	docs := make([]documentView, len(page.Documents))
	for i, d := range page.Documents {
		docs[i] = documentToView(d)
	}
	writeJSON(w, http.StatusOK, listResponse{
		Documents: docs,
		Limit:     page.Limit,
		Offset:    page.Offset,
		Count:     len(docs),
		Total:     page.Total,
	})
}

// GetDocument handles GET /api/document/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	doc, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: documentToView(doc)})
}

// DeleteDocument handles DELETE /api/document/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	doc, err := s.documents.Delete(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: documentToView(doc)})
}

// StagedImage handles GET /staging/{id}/{name}. The embedding pipeline fetches
// uploaded query images back through this route.
func (s *Server) StagedImage(w http.ResponseWriter, r *http.Request) {
	ct, data, err := s.staging.Open(r.Context(), gochi.URLParam(r, "id"), gochi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, stagingrepo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeJSON reads a capped JSON body into dst. An empty body is accepted
// when allowEmpty is set. Returns false after writing the error response.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxJSONBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, msgRequestTooLarge)
		return false
	}
	writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
	return false
}

func bindID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", gochi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter id: %s", err))
		return 0, false
	}
	return id, true
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
