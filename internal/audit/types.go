// Package audit scans page-marked dossier text chunk by chunk with an LLM and
// consolidates the partial findings into one report.
package audit

import (
	"fmt"
	"time"
)

// Status is the completeness verdict for a stage.
type Status string

const (
	StatusComplete    Status = "complete"
	StatusIncomplete  Status = "incomplete"
	StatusMissingInfo Status = "missing_info"
)

// rank orders statuses from best to worst.
func (s Status) rank() int {
	switch s {
	case StatusMissingInfo:
		return 2
	case StatusIncomplete:
		return 1
	default:
		return 0
	}
}

// Severity classifies a problem.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// rank orders severities for sorting; unknown values sort with info.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// PageText is page-marked document text and the document's page count.
type PageText struct {
	Text       string
	TotalPages int
}

// StageFinding is a regulatory stage located in the document.
type StageFinding struct {
	StageCode string `json:"stage_code"`
	StageName string `json:"stage_name"`
	Pages     []int  `json:"pages"`
	PageRange string `json:"page_range"`
	Status    Status `json:"status"`
	Details   string `json:"details"`
}

// MissingStage is a checklist stage the model did not find.
type MissingStage struct {
	StageCode  string `json:"stage_code"`
	StageName  string `json:"stage_name"`
	Module     string `json:"module"`
	IsRequired bool   `json:"is_required"`
}

// ProblemFinding is an issue flagged on a page.
type ProblemFinding struct {
	Type           Severity `json:"type"`
	Description    string   `json:"description"`
	Page           int      `json:"page"`
	StageCode      string   `json:"stage_code,omitempty"`
	Recommendation string   `json:"recommendation"`
}

// ChunkResult is the outcome of analyzing one chunk. Err is set when the
// chunk degraded to an empty result.
type ChunkResult struct {
	Index    int
	Stages   []StageFinding
	Missing  []MissingStage
	Problems []ProblemFinding
	Summary  string
	Err      error
}

// ChunkError reports a degraded chunk by its 1-based number.
type ChunkError struct {
	Chunk int    `json:"chunk"`
	Error string `json:"error"`
}

// ProcessingInfo describes how the report was produced.
type ProcessingInfo struct {
	ChunksProcessed  int    `json:"chunks_processed"`
	ChunksFailed     int    `json:"chunks_failed"`
	TotalChars       int    `json:"total_chars"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Model            string `json:"model,omitempty"`
}

// Report is the consolidated audit of one document.
type Report struct {
	TotalPages     int              `json:"total_pages"`
	StagesFound    []StageFinding   `json:"stages_found"`
	StagesMissing  []MissingStage   `json:"stages_missing"`
	ProblemsFound  []ProblemFinding `json:"problems_found"`
	Summary        string           `json:"summary"`
	ProcessingInfo ProcessingInfo   `json:"processing_info"`
	ChunkErrors    []ChunkError     `json:"chunk_errors"`
}

// ChecklistStage is one stage of the lab's checklist template.
type ChecklistStage struct {
	StageCode  string `json:"stage_code"`
	StageName  string `json:"stage_name"`
	Module     string `json:"module"`
	IsRequired bool   `json:"is_required"`
}

// Request carries the metadata of an audit run.
type Request struct {
	Filename     string           `json:"filename"`
	LabID        string           `json:"lab_id,omitempty"`
	ProductName  string           `json:"product_name,omitempty"`
	Manufacturer string           `json:"manufacturer,omitempty"`
	UploadedBy   string           `json:"uploaded_by,omitempty"`
	Checklist    []ChecklistStage `json:"checklist,omitempty"`
}

// Record is a persisted report together with the request that produced it.
type Record struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"content_hash"`
	Request     Request   `json:"request"`
	Report      *Report   `json:"report"`
	CreatedAt   time.Time `json:"created_at"`
}

// PageRange formats sorted pages as "N" or "N-M". Gaps are not listed.
func PageRange(pages []int) string {
	switch len(pages) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%d", pages[0])
	}
	return fmt.Sprintf("%d-%d", pages[0], pages[len(pages)-1])
}
