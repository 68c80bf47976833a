// ABOUTME: Route registration and request middleware for the HTTP API.
// ABOUTME: Tags every request with an id and logs its outcome.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RegisterRoutes mounts the API endpoints on mux.
func RegisterRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /health", handler.HandleHealth)
	mux.HandleFunc("GET /entries", handler.HandleListEntries)
	mux.HandleFunc("POST /entries", handler.HandleSubmit)
	mux.HandleFunc("POST /entries/batch", handler.HandleSubmitBatch)
	mux.HandleFunc("GET /entries/{id}", handler.HandleGetEntry)
	mux.HandleFunc("DELETE /entries/{id}", handler.HandleDeleteEntry)
	mux.HandleFunc("GET /entries/{id}/rank", handler.HandleRank)
}

// NewRouter returns the API with request logging applied.
func NewRouter(handler *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, handler)
	return WithRequestLogging(mux, logger)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithRequestLogging assigns an X-Request-ID and logs method, path, status and duration.
func WithRequestLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logger.Info("request",
			"reqid", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
