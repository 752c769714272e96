package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docaudit/internal/pipeline"
)

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.dispatcher.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.dispatcher.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	snap := job.Snapshot()
	if !snap.Status.Done() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   "audit still running",
			"status":  snap.Status,
			"phase":   snap.Phase,
		})
		return
	}

	report, err := job.Result()
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := map[string]any{
		"success":   true,
		"result":    report,
		"report_id": snap.ReportID,
		"cached":    snap.Cached,
	}
	if snap.Status == pipeline.StatusPartial {
		resp["errors"] = snap.Progress.Errors
	}
	writeJSON(w, http.StatusOK, resp)
}
