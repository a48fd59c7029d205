// Package httpapi serves the registry as a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
)

// Server is the HTTP front of one registry.
type Server struct {
	reg     *registry.Registry
	router  chi.Router
	metrics http.Handler
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New creates a Server over reg.
func New(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{reg: reg, started: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleGlobalState)
		r.Get("/forecast", s.handleForecast)
		r.Get("/alerts", s.handleAlerts)
		r.Post("/sweeps", s.handleSweep)

		r.Get("/entities", s.handleListEntities)
		r.Post("/entities", s.handleRegister)
		r.Get("/entities/{id}", s.handleEntity)
		r.Get("/entities/{id}/history", s.handleHistory)
		r.Get("/entities/{id}/loops", s.handleLoops)
		r.Post("/entities/{id}/updates", s.handleUpdate)
	})
	s.router = r
}

// #region helpers
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps registry and catalog errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDuplicateEntity),
		errors.Is(err, registry.ErrQuarantined),
		errors.Is(err, registry.ErrAlertApplied):
		return http.StatusConflict
	case errors.Is(err, registry.ErrInvalidEntity),
		errors.Is(err, registry.ErrSelfRelation),
		errors.Is(err, registry.ErrInvalidSlot),
		errors.Is(err, catalog.ErrUnknownCategory),
		errors.Is(err, catalog.ErrUnknownRelation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return fallback
}

// #endregion helpers
