package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/docaudit/internal/audit"
	"github.com/dgallion1/docaudit/internal/pipeline"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// failureStatus maps an audit failure onto an HTTP status.
func failureStatus(err error) int {
	switch {
	case errors.Is(err, audit.ErrMissingCredential),
		errors.Is(err, pipeline.ErrQueueFull),
		errors.Is(err, pipeline.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, audit.ErrExtraction), errors.Is(err, audit.ErrInsufficientText):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure reports a failed audit as {"success":false,"error":...}.
func writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, failureStatus(err), map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}
