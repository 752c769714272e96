package audit

import "errors"

var (
	// ErrMissingCredential means no LLM API key resolved for the lab or the process.
	ErrMissingCredential = errors.New("no LLM API key configured for this lab or the service")

	// ErrExtraction means text could not be extracted from the document.
	ErrExtraction = errors.New("text extraction failed")

	// ErrInsufficientText means the document yielded too little text to audit.
	ErrInsufficientText = errors.New("insufficient text extracted")

	// ErrChunkAnalysis marks a chunk whose analysis degraded to an empty result.
	// It never aborts a run.
	ErrChunkAnalysis = errors.New("chunk analysis failed")

	// ErrInternal marks a defect caught while running an audit.
	ErrInternal = errors.New("internal audit error")
)
