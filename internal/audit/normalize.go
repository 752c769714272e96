package audit

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var pageRangeRe = regexp.MustCompile(`^\s*(\d+)\s*(?:[-–]\s*(\d+))?\s*$`)

// normalize turns a decoded model answer into a ChunkResult. Findings without
// a stage code are dropped; pages are deduplicated and sorted and the page
// range is recomputed from them.
func normalize(index int, w *wireResult) ChunkResult {
	res := ChunkResult{
		Index:    index,
		Stages:   []StageFinding{},
		Missing:  []MissingStage{},
		Problems: []ProblemFinding{},
		Summary:  strings.TrimSpace(w.ChunkSummary),
	}

	for _, ws := range w.StagesFound {
		code := strings.TrimSpace(ws.StageCode)
		if code == "" {
			continue
		}
		pages := normalizePages(ws.Pages)
		if len(pages) == 0 {
			pages = pagesFromRange(ws.PageRange)
		}
		res.Stages = append(res.Stages, StageFinding{
			StageCode: code,
			StageName: strings.TrimSpace(ws.StageName),
			Pages:     pages,
			PageRange: PageRange(pages),
			Status:    normalizeStatus(ws.Status),
			Details:   strings.TrimSpace(ws.Details),
		})
	}

	for _, wm := range w.StagesMissing {
		code := strings.TrimSpace(wm.StageCode)
		if code == "" {
			continue
		}
		res.Missing = append(res.Missing, MissingStage{
			StageCode:  code,
			StageName:  strings.TrimSpace(wm.StageName),
			Module:     strings.TrimSpace(wm.Module),
			IsRequired: wm.IsRequired,
		})
	}

	for _, wp := range w.ProblemsFound {
		desc := strings.TrimSpace(wp.Description)
		if desc == "" {
			continue
		}
		page := int(wp.Page)
		if page < 0 {
			page = 0
		}
		res.Problems = append(res.Problems, ProblemFinding{
			Type:           normalizeSeverity(wp.Type),
			Description:    desc,
			Page:           page,
			StageCode:      strings.TrimSpace(wp.StageCode),
			Recommendation: strings.TrimSpace(wp.Recommendation),
		})
	}

	return res
}

func normalizeStatus(s string) Status {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusComplete, StatusIncomplete, StatusMissingInfo:
		return st
	default:
		return StatusIncomplete
	}
}

// normalizeSeverity lowercases known severities. Unknown values are kept so
// they stay visible in the report; they sort with info.
func normalizeSeverity(s string) Severity {
	s = strings.TrimSpace(s)
	if s == "" {
		return SeverityInfo
	}
	switch sev := Severity(strings.ToLower(s)); sev {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return sev
	}
	return Severity(s)
}

func normalizePages(raw []pageNumber) []int {
	pages := make([]int, 0, len(raw))
	for _, p := range raw {
		if p >= 1 {
			pages = append(pages, int(p))
		}
	}
	return uniqueSorted(pages)
}

// pagesFromRange reads the end points of an "N" or "N-M" page range.
func pagesFromRange(v any) []int {
	if v == nil {
		return []int{}
	}
	var s string
	switch r := v.(type) {
	case string:
		s = r
	case float64:
		s = strconv.Itoa(int(r))
	default:
		s = fmt.Sprint(r)
	}
	m := pageRangeRe.FindStringSubmatch(s)
	if m == nil {
		return []int{}
	}
	var pages []int
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		if n, err := strconv.Atoi(g); err == nil && n >= 1 {
			pages = append(pages, n)
		}
	}
	return uniqueSorted(pages)
}

func uniqueSorted(pages []int) []int {
	out := make([]int, 0, len(pages))
	seen := make(map[int]bool, len(pages))
	for _, p := range pages {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}
