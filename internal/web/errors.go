package web

// errors.go centralizes JSON response writing for the API. Errors are logged
// with full detail server-side, correlated by request ID, and returned to the
// client as a stable {error, code} body with a status mapped from the
// domain's sentinel errors.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rentfolio/rentroll/internal/logging"
	"github.com/rentfolio/rentroll/internal/rentroll"
	"github.com/rentfolio/rentroll/internal/store"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps domain errors onto HTTP status codes. Anything unmapped is
// treated as a caller error; handlers pass explicit statuses for server-side
// failures via writeError.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, rentroll.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound, "run_not_found"
	case errors.Is(err, rentroll.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, rentroll.ErrMappingIncomplete):
		return http.StatusUnprocessableEntity, "mapping_incomplete"
	case errors.Is(err, rentroll.ErrEmptyFile):
		return http.StatusUnprocessableEntity, "empty_file"
	case errors.Is(err, rentroll.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, rentroll.ErrTooManyImports):
		return http.StatusTooManyRequests, "too_many_imports"
	default:
		return http.StatusBadRequest, "bad_request"
	}
}

// respondError maps err to a status and writes the JSON error body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"error", err.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Code: code})
}

// writeError writes a JSON error response with an explicit status.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", message,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: http.StatusText(status)})
}

// writeJSON writes v as a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
