package audit

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestPageRange(t *testing.T) {
	tests := []struct {
		pages []int
		want  string
	}{
		{nil, ""},
		{[]int{5}, "5"},
		{[]int{5, 6, 7}, "5-7"},
		{[]int{5, 9}, "5-9"},
	}
	for _, tt := range tests {
		if got := PageRange(tt.pages); got != tt.want {
			t.Errorf("PageRange(%v) = %q, want %q", tt.pages, got, tt.want)
		}
	}
}

func TestConsolidate_StatusWorstWins(t *testing.T) {
	tests := []struct {
		first, second, want Status
	}{
		{StatusComplete, StatusIncomplete, StatusIncomplete},
		{StatusIncomplete, StatusMissingInfo, StatusMissingInfo},
		{StatusMissingInfo, StatusComplete, StatusMissingInfo},
		{StatusComplete, StatusComplete, StatusComplete},
	}
	for _, tt := range tests {
		t.Run(string(tt.first)+"+"+string(tt.second), func(t *testing.T) {
			got := Consolidate([]ChunkResult{
				{Index: 0, Stages: []StageFinding{{StageCode: "A-01", Pages: []int{1}, Status: tt.first}}},
				{Index: 1, Stages: []StageFinding{{StageCode: "A-01", Pages: []int{4}, Status: tt.second}}},
			})
			if len(got.Stages) != 1 {
				t.Fatalf("expected 1 merged stage, got %d", len(got.Stages))
			}
			if got.Stages[0].Status != tt.want {
				t.Errorf("status = %q, want %q", got.Stages[0].Status, tt.want)
			}
		})
	}
}

func TestConsolidate_MergesPagesAndDetails(t *testing.T) {
	got := Consolidate([]ChunkResult{
		{Index: 0, Stages: []StageFinding{{StageCode: "A-01", StageName: "GMP", Pages: []int{3, 1}, Status: StatusComplete, Details: "signed"}}},
		{Index: 1, Stages: []StageFinding{{StageCode: "A-01", Pages: []int{3, 9}, Status: StatusComplete, Details: "signed"}}},
		{Index: 2, Stages: []StageFinding{{StageCode: "A-01", Pages: []int{5}, Status: StatusComplete, Details: "valid until 2026"}}},
	})

	st := got.Stages[0]
	if want := []int{1, 3, 5, 9}; !reflect.DeepEqual(st.Pages, want) {
		t.Errorf("pages = %v, want %v", st.Pages, want)
	}
	if st.PageRange != "1-9" {
		t.Errorf("page_range = %q, want 1-9", st.PageRange)
	}
	if st.Details != "signed; valid until 2026" {
		t.Errorf("details = %q", st.Details)
	}
	if st.StageName != "GMP" {
		t.Errorf("stage_name = %q, want GMP", st.StageName)
	}
}

func TestConsolidate_EmptyExistingDetailsTakeIncoming(t *testing.T) {
	got := Consolidate([]ChunkResult{
		{Index: 0, Stages: []StageFinding{{StageCode: "B-02", Status: StatusComplete}}},
		{Index: 1, Stages: []StageFinding{{StageCode: "B-02", Status: StatusComplete, Details: "lot X123"}}},
	})
	if got.Stages[0].Details != "lot X123" {
		t.Errorf("details = %q, want %q", got.Stages[0].Details, "lot X123")
	}
}

func TestConsolidate_StagesSortedByCode(t *testing.T) {
	got := Consolidate([]ChunkResult{
		{Index: 0, Stages: []StageFinding{{StageCode: "C-01"}, {StageCode: "A-02"}}},
		{Index: 1, Stages: []StageFinding{{StageCode: "B-07"}}},
	})
	var codes []string
	for _, st := range got.Stages {
		codes = append(codes, st.StageCode)
	}
	if want := []string{"A-02", "B-07", "C-01"}; !reflect.DeepEqual(codes, want) {
		t.Errorf("codes = %v, want %v", codes, want)
	}
}

func TestConsolidate_ProblemDedup(t *testing.T) {
	desc := strings.Repeat("Lot number differs between CoA and label. ", 3)
	got := Consolidate([]ChunkResult{
		{Index: 0, Problems: []ProblemFinding{{Type: SeverityWarning, Description: desc, Page: 4, Recommendation: "first"}}},
		{Index: 1, Problems: []ProblemFinding{{Type: SeverityWarning, Description: desc[:60] + " (again)", Page: 4, Recommendation: "second"}}},
	})
	if len(got.Problems) != 1 {
		t.Fatalf("expected 1 problem after dedup, got %d", len(got.Problems))
	}
	if got.Problems[0].Recommendation != "first" {
		t.Errorf("expected first encountered problem to win, got %q", got.Problems[0].Recommendation)
	}
}

func TestConsolidate_ProblemsOnDifferentPagesKept(t *testing.T) {
	got := Consolidate([]ChunkResult{
		{Index: 0, Problems: []ProblemFinding{
			{Type: SeverityInfo, Description: "Signature missing", Page: 1},
			{Type: SeverityInfo, Description: "Signature missing", Page: 2},
		}},
	})
	if len(got.Problems) != 2 {
		t.Errorf("expected 2 problems, got %d", len(got.Problems))
	}
}

func TestConsolidate_ProblemOrdering(t *testing.T) {
	got := Consolidate([]ChunkResult{
		{Index: 0, Problems: []ProblemFinding{
			{Type: SeverityInfo, Description: "info", Page: 3},
			{Type: SeverityCritical, Description: "critical", Page: 10},
			{Type: SeverityWarning, Description: "warning", Page: 1},
		}},
	})
	var order []string
	for _, p := range got.Problems {
		order = append(order, p.Description)
	}
	if want := []string{"critical", "warning", "info"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestConsolidate_UnknownSeveritySortsWithInfo(t *testing.T) {
	got := Consolidate([]ChunkResult{
		{Index: 0, Problems: []ProblemFinding{
			{Type: "notice", Description: "odd", Page: 1},
			{Type: SeverityInfo, Description: "plain", Page: 2},
			{Type: SeverityWarning, Description: "warn", Page: 9},
		}},
	})
	if got.Problems[0].Description != "warn" {
		t.Fatalf("expected warning first, got %q", got.Problems[0].Description)
	}
	if got.Problems[1].Type != "notice" {
		t.Errorf("expected unknown severity preserved and ordered by page, got %q", got.Problems[1].Type)
	}
}

func TestConsolidate_MissingStageExclusion(t *testing.T) {
	got := Consolidate([]ChunkResult{
		{Index: 0, Missing: []MissingStage{{StageCode: "B-05"}, {StageCode: "C-01", StageName: "first"}}},
		{Index: 1, Stages: []StageFinding{{StageCode: "B-05", Pages: []int{7}}}, Missing: []MissingStage{{StageCode: "C-01", StageName: "second"}}},
	})
	if len(got.Missing) != 1 {
		t.Fatalf("expected 1 missing stage, got %d: %+v", len(got.Missing), got.Missing)
	}
	if got.Missing[0].StageCode != "C-01" || got.Missing[0].StageName != "first" {
		t.Errorf("missing = %+v, want C-01 from the first chunk", got.Missing[0])
	}
}

func TestConsolidate_SummaryAndChunkErrors(t *testing.T) {
	got := Consolidate([]ChunkResult{
		{Index: 2, Summary: "third"},
		{Index: 0, Summary: "first"},
		{Index: 1, Summary: "Error in chunk 2: boom", Err: errors.New("boom")},
		{Index: 3, Summary: "  "},
	})
	if got.Summary != "first | Error in chunk 2: boom | third" {
		t.Errorf("summary = %q", got.Summary)
	}
	if len(got.ChunkErrors) != 1 || got.ChunkErrors[0].Chunk != 2 {
		t.Errorf("chunk errors = %+v", got.ChunkErrors)
	}
}

func TestConsolidate_EmptyInput(t *testing.T) {
	got := Consolidate(nil)
	if got.Stages == nil || got.Missing == nil || got.Problems == nil || got.ChunkErrors == nil {
		t.Error("expected non-nil slices for empty input")
	}
	if got.Summary != "" {
		t.Errorf("summary = %q, want empty", got.Summary)
	}
}

func TestConsolidate_DoesNotMutateInput(t *testing.T) {
	pages := []int{2, 1}
	in := []ChunkResult{
		{Index: 1, Stages: []StageFinding{{StageCode: "A", Pages: pages}}},
		{Index: 0, Stages: []StageFinding{{StageCode: "A", Pages: []int{5}}}},
	}
	Consolidate(in)
	if in[0].Index != 1 {
		t.Error("input order changed")
	}
	if !reflect.DeepEqual(pages, []int{2, 1}) {
		t.Errorf("input pages changed: %v", pages)
	}
}
