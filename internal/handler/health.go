// Package handler contains the HTTP handlers of the finance API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming request (path values, query, JSON body)
// 2. Call one service method with the authenticated user ID
// 3. Write the response through writeJSON / writeError
//
// Handlers hold no business rules. Visibility, validation and defaults all
// live in internal/service; a handler only translates HTTP to a call and the
// result (or apperror) back to HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth reports whether the database answers.
//
// HTTP: GET /healthz
func HandleHealth(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
