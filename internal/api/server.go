// Package api serves the read-only researcher query surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/fields"
	"github.com/sells-group/scholar-cli/internal/monitoring"
	"github.com/sells-group/scholar-cli/internal/publication"
	"github.com/sells-group/scholar-cli/internal/researcher"
)

// Expertise reads a researcher's field expertise.
type Expertise interface {
	Expertise(ctx context.Context, researcherID int64) ([]fields.Expertise, error)
}

// StatusCollector produces status snapshots.
type StatusCollector interface {
	Collect(ctx context.Context) (*monitoring.Snapshot, error)
}

// Deps are the stores behind the API. Gatherer defaults to the global
// prometheus registry.
type Deps struct {
	Researchers  researcher.Store
	Publications publication.Store
	Expertise    Expertise
	Status       StatusCollector
	Network      config.NetworkParams
	Gatherer     prometheus.Gatherer
}

// Server holds the handlers.
type Server struct {
	deps Deps
	log  *zap.Logger
}

// NewRouter builds the chi router with CORS for allowedOrigins.
func NewRouter(deps Deps, allowedOrigins []string) http.Handler {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	s := &Server{deps: deps, log: zap.L().With(zap.String("component", "api"))}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/network", s.network)
		r.Get("/merge-candidates", s.mergeCandidates)
		r.Route("/researchers", func(r chi.Router) {
			r.Get("/", s.listResearchers)
			r.Get("/{id}", s.researcher)
			r.Get("/{id}/reputation", s.reputation)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs err and answers 500 without leaking it.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
