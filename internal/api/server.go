package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docaudit/internal/audit"
	"github.com/dgallion1/docaudit/internal/config"
	"github.com/dgallion1/docaudit/internal/llm"
	"github.com/dgallion1/docaudit/internal/pipeline"
)

// ReportReader loads persisted reports.
type ReportReader interface {
	GetReport(ctx context.Context, id string) (*audit.Record, error)
}

// Server is the HTTP API server for docaudit.
type Server struct {
	router     chi.Router
	dispatcher *pipeline.Dispatcher
	reports    ReportReader // nil when persistence is disabled
	stats      *llm.Stats
	log        *slog.Logger
	cfg        config.Config
}

// NewServer creates and configures the HTTP server. reports and stats may be nil.
func NewServer(d *pipeline.Dispatcher, reports ReportReader, stats *llm.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		dispatcher: d,
		reports:    reports,
		stats:      stats,
		log:        log,
		cfg:        cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.DocauditAPIKey, s.log))

		r.Post("/api/audits/sync", s.handleAuditSync)
		r.Post("/api/audits", s.handleAuditSubmit)
		r.Get("/api/audits/{jobID}/status", s.handleJobStatus)
		r.Get("/api/audits/{jobID}/result", s.handleJobResult)

		r.Get("/api/reports/{reportID}", s.handleGetReport)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.dispatcher.QueueDepth(),
	})
}
