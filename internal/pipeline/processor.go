package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docaudit/internal/audit"
)

// Auditor runs the audit of one document.
type Auditor interface {
	RunWithProgress(ctx context.Context, data []byte, req audit.Request, p audit.Progress) (*audit.Report, error)
	CheckCredential(ctx context.Context, labID string) error
	Model() string
}

// ReportSink persists finished reports.
type ReportSink interface {
	SaveReport(ctx context.Context, rec audit.Record) error
}

// ResultCache keeps reports keyed by document content.
type ResultCache interface {
	Get(ctx context.Context, key string) (*audit.Report, string, error)
	Put(ctx context.Context, key, reportID string, report *audit.Report) error
}

// Outcome is what processing one upload produced. StoreErr is set when the
// report was produced but could not be persisted.
type Outcome struct {
	ReportID string
	Report   *audit.Report
	Cached   bool
	StoreErr error
}

// Processor runs an audit end to end: cache lookup, audit, persistence and
// cache fill. It serves the sync route, the job workers and the CLI.
type Processor struct {
	auditor Auditor
	sink    ReportSink  // nil when persistence is disabled
	cache   ResultCache // nil when caching is disabled
	log     *slog.Logger
}

func NewProcessor(auditor Auditor, sink ReportSink, cache ResultCache, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{auditor: auditor, sink: sink, cache: cache, log: log}
}

// Model names the LLM model the audits run against.
func (p *Processor) Model() string {
	return p.auditor.Model()
}

// Process audits data. progress may be nil. Cache and store failures are
// logged and never fail the audit.
func (p *Processor) Process(ctx context.Context, req audit.Request, data []byte, progress audit.Progress) (*Outcome, error) {
	log := p.log.With("filename", req.Filename, "lab_id", req.LabID)
	hash := ContentHashHex(data)
	key := CacheKey(hash, p.auditor.Model(), req)

	if p.cache != nil {
		// A lab without a usable key must not be served from the cache.
		if err := p.auditor.CheckCredential(ctx, req.LabID); err != nil {
			return nil, err
		}

		report, reportID, err := p.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("result cache lookup failed", "error", err)
		case report != nil:
			log.Info("serving cached audit", "report_id", reportID)
			return &Outcome{ReportID: reportID, Report: report, Cached: true}, nil
		}
	}

	report, err := p.auditor.RunWithProgress(ctx, data, req, progress)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Report: report}

	if p.sink != nil {
		if progress != nil {
			progress.OnPhase(string(StatusStoring))
		}
		rec := audit.Record{
			ID:          uuid.NewString(),
			ContentHash: hash,
			Request:     req,
			Report:      report,
			CreatedAt:   time.Now().UTC(),
		}
		if err := p.sink.SaveReport(ctx, rec); err != nil {
			log.Error("report store failed", "error", err)
			out.StoreErr = err
		} else {
			out.ReportID = rec.ID
		}
	}

	// Degraded reports are not cached so a retry can do better.
	if p.cache != nil && report.ProcessingInfo.ChunksFailed == 0 {
		if err := p.cache.Put(ctx, key, out.ReportID, report); err != nil {
			log.Warn("result cache store failed", "error", err)
		}
	}

	return out, nil
}

// CacheKey identifies an audit by document content, model and everything in
// the request that reaches the prompt: product, manufacturer and checklist.
// Checklist order does not matter.
func CacheKey(contentHash, model string, req audit.Request) string {
	stages := make([]string, 0, len(req.Checklist))
	for _, st := range req.Checklist {
		stages = append(stages, fmt.Sprintf("%s|%s|%s|%t", st.StageCode, st.StageName, st.Module, st.IsRequired))
	}
	sort.Strings(stages)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%q\n%q\n%q\n%s",
		contentHash, model, req.ProductName, req.Manufacturer, req.Filename, strings.Join(stages, "\n"))
	return fmt.Sprintf("%x", h.Sum(nil))
}
