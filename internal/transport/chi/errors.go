package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	logpkg "github.com/kailas-cloud/mmdex/internal/logger"
)

// Client-facing messages for errors whose detail stays in the logs.
const (
	msgNotFound         = "Document Not Found"
	msgInternal         = "Internal Server Error"
	msgEmbedding        = "Embedding Service Error"
	msgQuotaExceeded    = "Embedding quota exceeded"
	msgTimeout          = "Request Timeout"
	msgCanceled         = "Request Canceled"
	msgEnqueueFailed    = "Failed to enqueue document"
	msgRequestTooLarge  = "Request body too large"
	msgUnsupportedMedia = "Content-Type must be application/json or multipart/form-data"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Context errors come first: fetch and embedding failures wrap them, and a
// server-side deadline must not surface as the caller's fault.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, msgTimeout),
		sentinelHandler(context.Canceled, http.StatusRequestTimeout, msgCanceled),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, msgNotFound),
		detailHandler(domain.ErrValidation, http.StatusBadRequest),
		detailHandler(domain.ErrUnsupportedMedia, http.StatusBadRequest),
		detailHandler(domain.ErrNetworkFetch, http.StatusBadRequest),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, msgQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingService, http.StatusBadGateway, msgEmbedding),
	}
}

// sentinelHandler answers with a fixed message when err wraps sentinel.
func sentinelHandler(sentinel error, status int, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

// detailHandler passes the error text through. Only used for errors caused by
// the caller's own input.
func detailHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// itemErrorMessage renders a per-document submission failure.
func itemErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsTerminal(err), errors.Is(err, domain.ErrNetworkFetch):
		return err.Error()
	case errors.Is(err, domain.ErrQueueTransport):
		return msgEnqueueFailed
	default:
		return msgInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
