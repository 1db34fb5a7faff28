package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/api/handlers"
	apimw "github.com/marmos91/thunder/pkg/api/middleware"
	"github.com/marmos91/thunder/pkg/metrics"
)

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health/live - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (404 when metrics are disabled)
//   - GET /api/v1/status - Bot status
//   - POST /webhook/{secret} - Platform updates (only with a webhook secret)
func NewRouter(config ServerConfig, b Backend) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := handlers.NewHealthHandler(b.Ready, b.Store)
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", health.Liveness)
		r.Get("/ready", health.Readiness)
	})

	r.Handle("/metrics", metrics.Handler())

	status := handlers.NewStatusHandler(handlers.StatusInfo{
		Version: b.Version,
		Started: b.Started,
		Bot:     b.Bot,
		Plugins: b.Plugins,
	}, b.Executor)
	r.Get("/api/v1/status", status.Status)

	if config.WebhookSecret != "" && b.Commands != nil {
		webhook := handlers.NewWebhookHandler(b.Bot, b.Commands, b.Executor, b.Sender)
		r.With(apimw.WebhookSecret(config.WebhookSecret)).Post("/webhook/{secret}", webhook.Handle)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health/live", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs requests using the internal logger. The webhook path
// is logged without its secret segment.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		path := redactPath(r.URL.Path)

		logger.Debug("HTTP request started",
			"request_id", requestID,
			"method", r.Method,
			"path", path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("HTTP request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Since(start),
		)
	})
}

func redactPath(p string) string {
	const prefix = "/webhook/"
	if strings.HasPrefix(p, prefix) {
		return prefix + "***"
	}
	return p
}
