package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/callback"
	"github.com/JakeFAU/site-enricher/internal/metrics"
	"github.com/JakeFAU/site-enricher/internal/site"
	"github.com/JakeFAU/site-enricher/internal/submission"
)

// Enricher runs one synchronous enrichment.
type Enricher interface {
	EnrichAndStore(ctx context.Context, req site.EnrichmentRequest) site.Result
}

// Dispatcher queues fire-and-forget enrichments.
type Dispatcher interface {
	DispatchAsync(ctx context.Context, task callback.Task) error
}

// Submissions accepts and lists queued URLs.
type Submissions interface {
	Submit(ctx context.Context, url string, priority int, submittedBy string) (site.SubmissionRecord, error)
	ListPending(ctx context.Context, limit int, order site.PendingOrder) ([]site.SubmissionRecord, error)
}

// Drainer processes pending submissions on demand.
type Drainer interface {
	DrainPending(ctx context.Context, limit int, order site.PendingOrder) submission.DrainReport
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Config carries the HTTP-facing settings.
type Config struct {
	AuthSecret     string
	RequestTimeout time.Duration
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]ReadinessCheck
}

// Server wires HTTP handlers to the enrichment services.
type Server struct {
	router      chi.Router
	enricher    Enricher
	dispatcher  Dispatcher
	submissions Submissions
	drainer     Drainer
	cfg         Config
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	enricher Enricher,
	dispatcher Dispatcher,
	submissions Submissions,
	drainer Drainer,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	s := &Server{
		enricher:    enricher,
		dispatcher:  dispatcher,
		submissions: submissions,
		drainer:     drainer,
		cfg:         cfg,
		logger:      logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		r.Use(bearerAuthMiddleware(cfg.AuthSecret))

		r.Post("/site/crawl", s.crawl)
		r.Post("/site/crawl_async", s.crawlAsync)
		r.Route("/siteService", func(r chi.Router) {
			r.Post("/crawlSite", s.crawlSite)
			r.Post("/submitSite", s.submitSite)
			r.Post("/getTodoSite", s.getTodoSite)
			r.Post("/crawlTodoSite", s.crawlTodoSite)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for name, check := range s.cfg.Checks {
		if err := check(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
