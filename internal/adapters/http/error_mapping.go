package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	// A processing failure may wrap any cause kind; it is always a server error.
	case domain.IsProcessingFailure(err):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrInsightNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAlreadyProcessed),
		domain.IsKind(err, domain.ErrNotYetProcessed),
		domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrProcessingConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status < http.StatusInternalServerError {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	rt.logger.Error("http_request_failed",
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	message := "internal server error"
	switch {
	case domain.IsProcessingFailure(err):
		message = "document processing failed"
	case status == http.StatusServiceUnavailable:
		message = "service temporarily unavailable"
	}
	writeJSON(w, status, map[string]string{"error": message})
}
