// Package errors writes HTTP error responses and logs the underlying cause
// with the request id attached.
package errors

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger returns the default logger annotated with the request id, if any.
func Logger(r *http.Request) *slog.Logger {
	logger := slog.Default()
	if id := middleware.GetReqID(r.Context()); id != "" {
		logger = logger.With("request_id", id)
	}
	return logger
}

// InternalError logs err and sends a generic 500.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	Logger(r).Error(message, "error", err, "path", r.URL.Path)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// BadRequestError logs err at warn level and sends clientMessage with a 400.
func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	Logger(r).Warn("bad request", "error", err, "path", r.URL.Path)
	http.Error(w, clientMessage, http.StatusBadRequest)
}

func LogError(r *http.Request, message string, err error) {
	Logger(r).Error(message, "error", err)
}

func LogInfo(r *http.Request, message string, args ...any) {
	Logger(r).Info(message, args...)
}
