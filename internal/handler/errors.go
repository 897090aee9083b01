// Package handler provides the HTTP surface of the Hermes user service.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/domain"
)

// ErrorResponse is the JSON error envelope shared by every endpoint.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	Error      string `json:"error"`
	// Message is a single string for most errors and a list of per-field
	// messages for validation failures.
	Message any `json:"message"`
}

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError maps a service error onto the protocol and writes the envelope.
// Backend failures are reported as a generic 500; their detail stays in the
// logs.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status, label, message := ClassifyError(err)

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       r.URL.Path,
		Method:     r.Method,
		Error:      label,
		Message:    message,
	})
}

// ClassifyError translates domain and service errors into a status code, an
// error label, and a caller-facing message. Both transports use this mapping
// so a given failure looks the same over HTTP and over TCP.
func ClassifyError(err error) (int, string, any) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "Bad Request", verr.Messages()
	case domain.IsConflict(err):
		return http.StatusConflict, "Conflict", err.Error()
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "Not Found", err.Error()
	default:
		return http.StatusInternalServerError, "Internal Server Error", "internal server error"
	}
}

// badRequest writes a 400 envelope for transport-level failures (malformed
// body, unknown fields, unparsable id) that never reach the service.
func badRequest(w http.ResponseWriter, r *http.Request, message any) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       r.URL.Path,
		Method:     r.Method,
		Error:      "Bad Request",
		Message:    message,
	})
}
