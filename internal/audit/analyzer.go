package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docaudit/internal/chunker"
	"github.com/dgallion1/docaudit/internal/llm"
)

const (
	DefaultTemperature  = 0.1
	DefaultMaxTokens    = 4000
	DefaultChunkTimeout = 120 * time.Second
)

// Completer sends one completion request to a language model.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Analyzer audits a single chunk with the model.
type Analyzer struct {
	llm         Completer
	temperature float64
	maxTokens   int
	timeout     time.Duration
	log         *slog.Logger
}

func NewAnalyzer(c Completer, temperature float64, maxTokens int, timeout time.Duration, log *slog.Logger) *Analyzer {
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if timeout <= 0 {
		timeout = DefaultChunkTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{llm: c, temperature: temperature, maxTokens: maxTokens, timeout: timeout, log: log}
}

// Analyze sends the chunk to the model and parses its findings. Failures do
// not propagate: the chunk degrades to an empty result with Err set and an
// error note as its summary.
func (a *Analyzer) Analyze(ctx context.Context, req Request, chunk chunker.Chunk, systemPrompt string) ChunkResult {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.llm.Complete(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   BuildChunkPrompt(req, chunk),
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
		JSONMode:     true,
	})
	if err != nil {
		return a.failed(chunk, fmt.Errorf("llm call: %w", err))
	}
	if resp == nil {
		return a.failed(chunk, llm.ErrEmptyResponse)
	}

	wire, err := parseResponse(resp.Content)
	if err != nil {
		return a.failed(chunk, err)
	}
	if wire.Dropped > 0 {
		a.log.Warn("dropped malformed findings", "chunk", chunk.Part(), "total", chunk.Total, "dropped", wire.Dropped)
	}
	return normalize(chunk.Index, wire)
}

func (a *Analyzer) failed(chunk chunker.Chunk, err error) ChunkResult {
	a.log.Warn("chunk analysis failed", "chunk", chunk.Part(), "total", chunk.Total, "error", err)
	return ChunkResult{
		Index:    chunk.Index,
		Stages:   []StageFinding{},
		Missing:  []MissingStage{},
		Problems: []ProblemFinding{},
		Summary:  fmt.Sprintf("Error in chunk %d: %s", chunk.Part(), err.Error()),
		Err:      fmt.Errorf("%w: chunk %d: %w", ErrChunkAnalysis, chunk.Part(), err),
	}
}
