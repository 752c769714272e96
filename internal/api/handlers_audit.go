package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docaudit/internal/audit"
	"github.com/dgallion1/docaudit/internal/parser"
	"github.com/dgallion1/docaudit/internal/pipeline"
)

// uploadError is a client error in an audit upload.
type uploadError struct {
	msg  string
	code int
}

func (e *uploadError) Error() string { return e.msg }

// readUpload parses the multipart audit form: the file plus lab_id,
// product_name, manufacturer, uploaded_by and an optional checklist JSON array.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (audit.Request, []byte, error) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return audit.Request{}, nil, &uploadError{fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge}
		}
		return audit.Request{}, nil, &uploadError{"invalid multipart form: " + err.Error(), http.StatusBadRequest}
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return audit.Request{}, nil, &uploadError{"file is required: " + err.Error(), http.StatusBadRequest}
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		return audit.Request{}, nil, &uploadError{fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest}
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return audit.Request{}, nil, &uploadError{"failed to read file", http.StatusInternalServerError}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return audit.Request{}, nil, &uploadError{fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge}
	}
	if len(data) == 0 {
		return audit.Request{}, nil, &uploadError{"file is empty", http.StatusBadRequest}
	}

	checklist, err := parseChecklist(r.FormValue("checklist"))
	if err != nil {
		return audit.Request{}, nil, &uploadError{err.Error(), http.StatusBadRequest}
	}

	req := audit.Request{
		Filename:     filename,
		LabID:        strings.TrimSpace(r.FormValue("lab_id")),
		ProductName:  strings.TrimSpace(r.FormValue("product_name")),
		Manufacturer: strings.TrimSpace(r.FormValue("manufacturer")),
		UploadedBy:   strings.TrimSpace(r.FormValue("uploaded_by")),
		Checklist:    checklist,
	}
	return req, data, nil
}

// parseChecklist decodes the optional checklist field. Entries without a
// stage code are dropped.
func parseChecklist(raw string) ([]audit.ChecklistStage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var stages []audit.ChecklistStage
	if err := json.Unmarshal([]byte(raw), &stages); err != nil {
		return nil, fmt.Errorf("invalid checklist: %w", err)
	}
	out := stages[:0]
	for _, st := range stages {
		st.StageCode = strings.TrimSpace(st.StageCode)
		if st.StageCode == "" {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func writeUploadError(w http.ResponseWriter, err error) {
	var ue *uploadError
	if errors.As(err, &ue) {
		jsonError(w, ue.msg, ue.code)
		return
	}
	jsonError(w, err.Error(), http.StatusBadRequest)
}

// handleAuditSync runs the audit inside the request. Chunks are analyzed one
// after another, so the run can outlast the server's WriteTimeout; the write
// deadline is lifted for this route and the request context bounds the run.
func (s *Server) handleAuditSync(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.log.Debug("cannot lift write deadline", "error", err)
	}

	req, data, err := s.readUpload(w, r)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	out, err := s.dispatcher.Processor().Process(r.Context(), req, data, nil)
	if err != nil {
		s.log.Warn("sync audit failed", "filename", req.Filename, "lab_id", req.LabID, "error", err)
		writeFailure(w, err)
		return
	}

	resp := map[string]any{
		"success":   true,
		"result":    out.Report,
		"report_id": out.ReportID,
		"cached":    out.Cached,
	}
	if out.StoreErr != nil {
		resp["store_error"] = out.StoreErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAuditSubmit queues the audit and returns a job to poll.
func (s *Server) handleAuditSubmit(w http.ResponseWriter, r *http.Request) {
	req, data, err := s.readUpload(w, r)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	job := pipeline.NewJob(req, data)
	if err := s.dispatcher.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/audits/%s/status", job.ID),
	})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
