// Package api exposes the studio engine over HTTP for callers and
// operators: creating jobs, inspecting them, managing quota and reading
// the error log.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meemee/studio/engine"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API wires the HTTP handlers to an engine.
type API struct {
	eng    *engine.Engine
	pinger Pinger
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithPinger sets the health check used by /healthz. When unset the
// engine's store is pinged if it supports it.
func WithPinger(p Pinger) Option {
	return func(a *API) { a.pinger = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API from a studio Engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.pinger == nil {
		if p, ok := eng.Store().(Pinger); ok {
			a.pinger = p
		}
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, a.requestLogger)
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all studio routes into r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", a.createJob)
			r.Get("/", a.listJobs)
			r.Get("/counts", a.jobCounts)
			r.Get("/{jobId}", a.getJob)
		})

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/jobs", a.listUserJobs)
			r.Get("/quota", a.getQuota)
			r.Post("/quota", a.creditQuota)
		})

		r.Get("/templates", a.listTemplates)
		r.Get("/stats", a.stats)

		r.Route("/errors", func(r chi.Router) {
			r.Get("/", a.listErrors)
			r.Get("/stats", a.errorStats)
			r.Post("/purge", a.purgeErrors)
			r.Get("/{ref}", a.getError)
		})
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if a.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.pinger.Ping(ctx); err != nil {
			a.logger.Warn("health check failed", slog.String("error", err.Error()))
			writeError(w, http.StatusServiceUnavailable, "unavailable", "store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
