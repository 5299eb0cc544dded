package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/pkg/api/handlers"
	"github.com/marmos91/distfs/pkg/metrics"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET    /health              - Liveness probe
//   - GET    /health/ready        - Readiness probe (reads the table)
//   - GET    /api/v1/files        - List stored files
//   - GET    /api/v1/files/{name} - Download a file
//   - PUT    /api/v1/files/{name} - Upload a file from the request body
//   - DELETE /api/v1/files/{name} - Delete a file
//   - GET    /metrics             - Prometheus metrics, when enabled
func NewRouter(store handlers.FileStore, cfg APIConfig) http.Handler {
	cfg.applyDefaults()
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	healthHandler := handlers.NewHealthHandler(store)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	files := handlers.NewFilesHandler(store)
	r.Route("/api/v1/files", func(r chi.Router) {
		r.Get("/", files.List)
		r.Get("/{name}", files.Get)
		r.Put("/{name}", files.Put)
		r.Delete("/{name}", files.Delete)
	})

	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.NotFound(w, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.MethodNotAllowed(w, r.Method+" not allowed on "+r.URL.Path)
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		lc := logger.NewLogContext(requestID, "http", r.RemoteAddr)
		lc.Command = r.Method + " " + r.URL.Path
		r = r.WithContext(logger.WithContext(r.Context(), lc))

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
