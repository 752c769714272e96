package audit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/docaudit/internal/chunker"
)

// DefaultMinTextChars is the smallest amount of extracted text worth auditing.
const DefaultMinTextChars = 100

// Run phases reported through Progress.
const (
	PhaseExtracting    = "extracting"
	PhaseAnalyzing     = "analyzing"
	PhaseConsolidating = "consolidating"
)

// KeyResolver finds the LLM API key to use for a lab.
type KeyResolver interface {
	ResolveKey(ctx context.Context, labID string) (string, error)
}

// TextExtractor turns an uploaded document into page-marked text.
type TextExtractor interface {
	ExtractPages(ctx context.Context, data []byte, filename string) (*PageText, error)
}

// CompleterFactory builds a model client bound to an API key.
type CompleterFactory func(apiKey string) Completer

// Progress receives run milestones. Implementations must be safe for
// concurrent OnChunkDone calls when Concurrency > 1.
type Progress interface {
	OnPhase(phase string)
	OnChunks(total int)
	OnChunkDone(res ChunkResult)
}

type noopProgress struct{}

func (noopProgress) OnPhase(string)          {}
func (noopProgress) OnChunks(int)            {}
func (noopProgress) OnChunkDone(ChunkResult) {}

// Options tunes an Orchestrator. Zero values select defaults, except
// Temperature: 0 is a valid sampling temperature, so a negative value selects
// DefaultTemperature instead.
type Options struct {
	ChunkMaxChars int
	MinTextChars  int
	Concurrency   int
	ChunkTimeout  time.Duration
	Temperature   float64
	MaxTokens     int
	Model         string
}

// Orchestrator runs the full audit of one document: credential, extraction,
// chunking, per-chunk analysis and consolidation.
type Orchestrator struct {
	extractor    TextExtractor
	keys         KeyResolver
	newCompleter CompleterFactory
	opts         Options
	log          *slog.Logger
}

func NewOrchestrator(extractor TextExtractor, keys KeyResolver, newCompleter CompleterFactory, opts Options, log *slog.Logger) *Orchestrator {
	if opts.ChunkMaxChars <= 0 {
		opts.ChunkMaxChars = chunker.DefaultMaxChars
	}
	if opts.MinTextChars <= 0 {
		opts.MinTextChars = DefaultMinTextChars
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ChunkTimeout <= 0 {
		opts.ChunkTimeout = DefaultChunkTimeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature < 0 {
		opts.Temperature = DefaultTemperature
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		extractor:    extractor,
		keys:         keys,
		newCompleter: newCompleter,
		opts:         opts,
		log:          log,
	}
}

// Model returns the model name recorded in reports.
func (o *Orchestrator) Model() string {
	return o.opts.Model
}

// CheckCredential reports ErrMissingCredential when no API key resolves for
// the lab. Callers that can answer without running an audit use it to fail
// the same way a run would.
func (o *Orchestrator) CheckCredential(ctx context.Context, labID string) error {
	_, err := o.resolveKey(ctx, labID)
	return err
}

func (o *Orchestrator) resolveKey(ctx context.Context, labID string) (string, error) {
	apiKey, err := o.keys.ResolveKey(ctx, labID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingCredential, err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingCredential
	}
	return apiKey, nil
}

// Run audits one document.
func (o *Orchestrator) Run(ctx context.Context, data []byte, req Request) (*Report, error) {
	return o.RunWithProgress(ctx, data, req, nil)
}

// RunWithProgress audits one document, reporting milestones to p. A panic
// during the run is returned as ErrInternal.
func (o *Orchestrator) RunWithProgress(ctx context.Context, data []byte, req Request, p Progress) (report *Report, err error) {
	if p == nil {
		p = noopProgress{}
	}
	start := time.Now()
	log := o.log.With("filename", req.Filename, "lab_id", req.LabID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("audit panicked", "panic", r, "stack", string(debug.Stack()))
			report = nil
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	apiKey, err := o.resolveKey(ctx, req.LabID)
	if err != nil {
		return nil, err
	}

	p.OnPhase(PhaseExtracting)
	pt, err := o.extractor.ExtractPages(ctx, data, req.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	textLen := utf8.RuneCountInString(strings.TrimSpace(pt.Text))
	if textLen < o.opts.MinTextChars {
		return nil, fmt.Errorf("%w: %d characters extracted, at least %d required; the document may be a scan without OCR",
			ErrInsufficientText, textLen, o.opts.MinTextChars)
	}

	chunks := chunker.Split(pt.Text, o.opts.ChunkMaxChars)
	p.OnChunks(len(chunks))
	log.Info("audit started", "pages", pt.TotalPages, "chunks", len(chunks))

	p.OnPhase(PhaseAnalyzing)
	analyzer := NewAnalyzer(o.newCompleter(apiKey), o.opts.Temperature, o.opts.MaxTokens, o.opts.ChunkTimeout, log)
	systemPrompt := BuildSystemPrompt(req.Checklist)

	results, err := o.analyzeAll(ctx, analyzer, req, chunks, systemPrompt, p)
	if err != nil {
		return nil, err
	}

	p.OnPhase(PhaseConsolidating)
	c := Consolidate(results)

	report = &Report{
		TotalPages:    pt.TotalPages,
		StagesFound:   c.Stages,
		StagesMissing: c.Missing,
		ProblemsFound: c.Problems,
		Summary:       c.Summary,
		ProcessingInfo: ProcessingInfo{
			ChunksProcessed:  len(chunks),
			ChunksFailed:     len(c.ChunkErrors),
			TotalChars:       utf8.RuneCountInString(pt.Text),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Model:            o.opts.Model,
		},
		ChunkErrors: c.ChunkErrors,
	}

	log.Info("audit completed",
		"stages", len(report.StagesFound),
		"problems", len(report.ProblemsFound),
		"chunks_failed", report.ProcessingInfo.ChunksFailed,
		"duration_ms", report.ProcessingInfo.ProcessingTimeMs,
	)
	return report, nil
}

// analyzeAll runs the analyzer over every chunk. With Concurrency 1 chunk
// i+1 is not sent before chunk i has resolved. Results are stored by index
// either way.
func (o *Orchestrator) analyzeAll(ctx context.Context, a *Analyzer, req Request, chunks []chunker.Chunk, systemPrompt string, p Progress) ([]ChunkResult, error) {
	results := make([]ChunkResult, len(chunks))

	if o.opts.Concurrency == 1 || len(chunks) == 1 {
		for i, ch := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = a.Analyze(ctx, req, ch, systemPrompt)
			p.OnChunkDone(results[i])
		}
		return results, nil
	}

	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup
	var panicOnce sync.Once
	var panicked any
	for i, ch := range chunks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		}
		wg.Add(1)
		go func(i int, ch chunker.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() { panicked = r })
				}
			}()
			results[i] = a.Analyze(ctx, req, ch, systemPrompt)
			p.OnChunkDone(results[i])
		}(i, ch)
	}
	wg.Wait()

	if panicked != nil {
		panic(panicked)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
