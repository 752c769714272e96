package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docaudit/internal/store/postgres"
)

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		jsonError(w, "report storage is not configured", http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "reportID")
	rec, err := s.reports.GetReport(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		jsonError(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("load report", "report_id", id, "error", err)
		jsonError(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
