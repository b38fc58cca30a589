// Package api exposes the extraction service over HTTP. The handlers are
// thin shells over the store, pipeline, and evaluator; the core stays
// transport-agnostic.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/experiment"
	"github.com/sells-group/zoning-cli/internal/extractor"
	"github.com/sells-group/zoning-cli/internal/store"
)

// Server holds the dependencies shared by all handlers.
type Server struct {
	store     store.Store
	pipeline  *extractor.Pipeline
	evaluator *experiment.Evaluator
	cfg       config.ServerConfig

	// baseCtx outlives individual requests; async document jobs run on it
	// so a closed client connection doesn't abort persistence.
	baseCtx context.Context
}

// NewServer wires the handlers. ctx bounds background job processing and
// should be the serve command's signal context.
func NewServer(ctx context.Context, st store.Store, pipeline *extractor.Pipeline, evaluator *experiment.Evaluator, cfg config.ServerConfig) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Server{store: st, pipeline: pipeline, evaluator: evaluator, cfg: cfg, baseCtx: ctx}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents", s.handleSubmitDocument)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/summary", s.handleJobSummary)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/requirements", s.handleListRequirements)
		r.Post("/experiments", s.handleCreateExperiment)
		r.Get("/experiments", s.handleListExperiments)
		r.Post("/experiments/{id}/toggle", s.handleToggleExperiment)
		r.Post("/experiments/{id}/run", s.handleRunExperiment)
		r.Get("/districts", s.handleListDistricts)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, key string) float64 {
	f, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		return 0
	}
	return f
}
