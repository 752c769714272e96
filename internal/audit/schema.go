package audit

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed response_schema.json
var responseSchemaJSON []byte

// The top-level schema only checks the shape of the answer. Each list entry
// is checked on its own against its definition, so one malformed entry is
// dropped without losing the rest of the chunk.
var (
	responseSchema = mustCompileSchema("response_schema.json")
	stageSchema    = mustCompileSchema("response_schema.json#/definitions/stage")
	missingSchema  = mustCompileSchema("response_schema.json#/definitions/missing")
	problemSchema  = mustCompileSchema("response_schema.json#/definitions/problem")
)

func mustCompileSchema(url string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response_schema.json", bytes.NewReader(responseSchemaJSON)); err != nil {
		panic(fmt.Sprintf("load response schema: %v", err))
	}
	return compiler.MustCompile(url)
}

// pageNumber accepts a JSON number or a numeric string. Anything else
// decodes to 0, which normalization treats as "no page".
type pageNumber float64

func (p *pageNumber) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch n := v.(type) {
	case float64:
		*p = pageNumber(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			f = 0
		}
		*p = pageNumber(f)
	default:
		*p = 0
	}
	return nil
}

// Wire shapes of the model's JSON answer. Optional fields decode to zero
// values when absent or null.
type wireStage struct {
	StageCode string       `json:"stage_code"`
	StageName string       `json:"stage_name"`
	Pages     []pageNumber `json:"pages"`
	PageRange any          `json:"page_range"`
	Status    string       `json:"status"`
	Details   string       `json:"details"`
}

type wireMissing struct {
	StageCode  string `json:"stage_code"`
	StageName  string `json:"stage_name"`
	Module     string `json:"module"`
	IsRequired bool   `json:"is_required"`
}

type wireProblem struct {
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	Page           pageNumber `json:"page"`
	StageCode      string  `json:"stage_code"`
	Recommendation string  `json:"recommendation"`
}

type wireResult struct {
	StagesFound   []wireStage
	StagesMissing []wireMissing
	ProblemsFound []wireProblem
	ChunkSummary  string

	// Dropped counts list entries skipped as malformed.
	Dropped int
}

var errNoJSON = errors.New("no JSON object in model response")

// parseResponse recovers the JSON object from model output, validates it
// against the response schema and decodes it.
func parseResponse(content string) (*wireResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errNoJSON
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractObject(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var doc any
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			continue
		}
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected JSON object, got %T", doc)
		}
		if err := responseSchema.Validate(doc); err != nil {
			return nil, fmt.Errorf("response does not match schema: %w", err)
		}

		wire := &wireResult{}
		wire.StagesFound, wire.Dropped = decodeEntries[wireStage](obj["stages_found"], stageSchema, wire.Dropped)
		wire.StagesMissing, wire.Dropped = decodeEntries[wireMissing](obj["stages_missing"], missingSchema, wire.Dropped)
		wire.ProblemsFound, wire.Dropped = decodeEntries[wireProblem](obj["problems_found"], problemSchema, wire.Dropped)
		if summary, ok := obj["chunk_summary"].(string); ok {
			wire.ChunkSummary = summary
		}
		return wire, nil
	}

	return nil, fmt.Errorf("%w (raw: %s)", errNoJSON, truncate(content, 200))
}

// decodeEntries validates and decodes each entry of a list on its own.
// Entries that fail are skipped and added to dropped.
func decodeEntries[T any](list any, schema *jsonschema.Schema, dropped int) ([]T, int) {
	items, _ := list.([]any)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if err := schema.Validate(item); err != nil {
			dropped++
			continue
		}
		raw, err := json.Marshal(item)
		if err != nil {
			dropped++
			continue
		}
		var entry T
		if err := json.Unmarshal(raw, &entry); err != nil {
			dropped++
			continue
		}
		out = append(out, entry)
	}
	return out, dropped
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeFences(s string) string {
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return ""
}

func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
