package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docaudit/internal/audit"
)

// JobStatus represents the state of an audit job.
type JobStatus string

const (
	StatusQueued        JobStatus = "queued"
	StatusExtracting    JobStatus = "extracting"
	StatusAnalyzing     JobStatus = "analyzing"
	StatusConsolidating JobStatus = "consolidating"
	StatusStoring       JobStatus = "storing"
	StatusCompleted     JobStatus = "completed"
	StatusFailed        JobStatus = "failed"
	StatusPartial       JobStatus = "partial" // Report produced but not persisted.
)

// Done reports whether the job reached a final state.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks the state of a single document audit. It implements
// audit.Progress so the orchestrator can report into it directly.
type Job struct {
	mu sync.Mutex

	ID       string
	Status   JobStatus
	Phase    string
	Progress Progress

	ContentHash string
	ReportID    string
	Cached      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Internal: not serialized.
	request  audit.Request
	fileData []byte
	report   *audit.Report
	err      error
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	ChunksFailed    int      `json:"chunks_failed"`
	Errors          []string `json:"errors"`
}

// NewJob creates a queued job for the given upload.
func NewJob(req audit.Request, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		request:     req,
		fileData:    data,
	}
}

// Request returns the audit request the job was created with.
func (j *Job) Request() audit.Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.request
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// OnPhase maps orchestrator and processor phases onto job statuses.
func (j *Job) OnPhase(phase string) {
	status := JobStatus(phase)
	switch status {
	case StatusExtracting, StatusAnalyzing, StatusConsolidating, StatusStoring:
	default:
		return
	}
	j.SetStatus(status, phase)
}

// OnChunks records the total chunk count.
func (j *Job) OnChunks(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = total
	j.UpdatedAt = time.Now()
}

// OnChunkDone counts an analyzed chunk and records its error, if any.
func (j *Job) OnChunkDone(res audit.ChunkResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	if res.Err != nil {
		j.Progress.ChunksFailed++
		j.errors = append(j.errors, res.Err.Error())
		j.Progress.Errors = j.errors
	}
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Finish records the outcome of processing and releases the upload.
func (j *Job) Finish(out *Outcome, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
	j.UpdatedAt = time.Now()

	if err != nil {
		j.err = err
		j.Status = StatusFailed
		j.errors = append(j.errors, err.Error())
		j.Progress.Errors = j.errors
		return
	}

	j.report = out.Report
	j.ReportID = out.ReportID
	j.Cached = out.Cached
	j.Phase = "done"
	j.Status = StatusCompleted
	if out.StoreErr != nil {
		j.Status = StatusPartial
		j.errors = append(j.errors, fmt.Sprintf("store: %s", out.StoreErr))
		j.Progress.Errors = j.errors
	}
}

// Result returns the report or the failure of a finished job.
func (j *Job) Result() (*audit.Report, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report, j.err
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	LabID       string    `json:"lab_id,omitempty"`
	ReportID    string    `json:"report_id,omitempty"`
	Cached      bool      `json:"cached"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.request.Filename,
		LabID:       j.request.LabID,
		ReportID:    j.ReportID,
		Cached:      j.Cached,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		Progress: Progress{
			TotalChunks:     j.Progress.TotalChunks,
			ChunksProcessed: j.Progress.ChunksProcessed,
			ChunksFailed:    j.Progress.ChunksFailed,
			Errors:          errs,
		},
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
