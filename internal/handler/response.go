// Package handler contains the HTTP layer: thin chi handlers that
// decode and validate requests, call a service, and encode the result.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/fancy-blog/internal/apperror"
)

// ErrorResponse is the wire shape of every error: a single
// human-readable message.
type ErrorResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response. Headers and status must be written
// before the body; if encoding fails after that, logging is all that is
// left.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError translates a domain error into a status code. The mapping
// lives here and only here — services know nothing about HTTP.
//
// Unknown errors become a generic 500: raw messages can carry SQL or
// file paths and never reach a client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}
		writeJSON(w, status, ErrorResponse{Message: appErr.Message})
		return
	}

	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
}
