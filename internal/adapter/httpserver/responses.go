// Package httpserver exposes the HTTP API: question answering, audio
// questions, feedback ratings and operational endpoints.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

// errorEnvelope is the uniform error body for all endpoints.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError maps domain sentinel errors to HTTP statuses and emits the
// uniform envelope. Unknown errors become opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	msg := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code, msg = http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, msg = http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrConflict):
		status, code, msg = http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrRateLimited):
		status, code, msg = http.StatusTooManyRequests, "RATE_LIMITED", "too many requests"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		status, code, msg = http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "upstream timeout"
	case errors.Is(err, domain.ErrUpstream):
		status, code, msg = http.StatusBadGateway, "UPSTREAM_ERROR", "upstream error"
	case errors.Is(err, domain.ErrSchemaInvalid):
		status, code, msg = http.StatusUnprocessableEntity, "SCHEMA_INVALID", err.Error()
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: msg}})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: "INVALID_ARGUMENT", Message: msg}})
}
