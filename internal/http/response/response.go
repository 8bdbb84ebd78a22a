// Package response writes the spotlight error envelope for handlers that run
// outside huma: middleware rejections and the media route.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// Version is the "v" field of every envelope.
const Version = 1

// ErrorEnvelope wraps failed responses.
type ErrorEnvelope struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error writes err in an error envelope with its HTTP status.
func Error(w http.ResponseWriter, err *domainerrors.Error, logger *slog.Logger) {
	write(w, err.HTTPStatus(), ErrorEnvelope{
		V:       Version,
		Code:    string(err.Code),
		Message: err.Message,
		Details: err.Details,
	}, logger)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, domainerrors.NotFound(message), logger)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, domainerrors.RateLimited(message), logger)
}

// HandleError writes the envelope matching err. Domain errors keep their
// code, store misses become 404 and anything else is a logged 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	switch {
	case errors.As(err, &domainErr):
		Error(w, domainErr, logger)
	case errors.Is(err, store.ErrNotFound):
		NotFound(w, "not found", logger)
	default:
		if logger != nil {
			logger.Error("unhandled error", "error", err)
		}
		Error(w, domainerrors.Internal("internal server error"), logger)
	}
}

func write(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}
