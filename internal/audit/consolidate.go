package audit

import (
	"sort"
	"strings"
)

// problemKeyRunes is how much of a problem description identifies it.
const problemKeyRunes = 50

// Consolidated is the merge of all chunk results of one document.
type Consolidated struct {
	Stages      []StageFinding
	Missing     []MissingStage
	Problems    []ProblemFinding
	Summary     string
	ChunkErrors []ChunkError
}

// Consolidate merges chunk results in chunk order. Stages with the same code
// are merged with worst-wins status, stages found anywhere are removed from
// the missing list, and duplicate problems are dropped.
func Consolidate(results []ChunkResult) Consolidated {
	ordered := make([]ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	out := Consolidated{
		Stages:      []StageFinding{},
		Missing:     []MissingStage{},
		Problems:    []ProblemFinding{},
		ChunkErrors: []ChunkError{},
	}

	stages := make(map[string]*StageFinding)
	var missing []MissingStage
	seenProblem := make(map[problemKey]bool)
	var summaries []string

	for _, r := range ordered {
		for _, st := range r.Stages {
			if existing, ok := stages[st.StageCode]; ok {
				mergeStage(existing, st)
				continue
			}
			cp := st
			cp.Pages = uniqueSorted(st.Pages)
			cp.PageRange = PageRange(cp.Pages)
			stages[st.StageCode] = &cp
		}

		missing = append(missing, r.Missing...)

		for _, p := range r.Problems {
			key := problemKey{page: p.Page, desc: prefixRunes(p.Description, problemKeyRunes)}
			if seenProblem[key] {
				continue
			}
			seenProblem[key] = true
			out.Problems = append(out.Problems, p)
		}

		if s := strings.TrimSpace(r.Summary); s != "" {
			summaries = append(summaries, s)
		}
		if r.Err != nil {
			out.ChunkErrors = append(out.ChunkErrors, ChunkError{Chunk: r.Index + 1, Error: r.Err.Error()})
		}
	}

	for _, st := range stages {
		out.Stages = append(out.Stages, *st)
	}
	sort.Slice(out.Stages, func(i, j int) bool { return out.Stages[i].StageCode < out.Stages[j].StageCode })

	seenMissing := make(map[string]bool)
	for _, m := range missing {
		if _, found := stages[m.StageCode]; found || seenMissing[m.StageCode] {
			continue
		}
		seenMissing[m.StageCode] = true
		out.Missing = append(out.Missing, m)
	}
	sort.Slice(out.Missing, func(i, j int) bool { return out.Missing[i].StageCode < out.Missing[j].StageCode })

	sort.SliceStable(out.Problems, func(i, j int) bool {
		ri, rj := out.Problems[i].Type.rank(), out.Problems[j].Type.rank()
		if ri != rj {
			return ri < rj
		}
		return out.Problems[i].Page < out.Problems[j].Page
	})

	out.Summary = strings.Join(summaries, " | ")
	return out
}

type problemKey struct {
	page int
	desc string
}

func mergeStage(existing *StageFinding, incoming StageFinding) {
	existing.Pages = uniqueSorted(append(existing.Pages, incoming.Pages...))
	existing.PageRange = PageRange(existing.Pages)

	if d := strings.TrimSpace(incoming.Details); d != "" {
		switch {
		case existing.Details == "":
			existing.Details = d
		case !strings.Contains(existing.Details, d):
			existing.Details += "; " + d
		}
	}

	if incoming.Status.rank() > existing.Status.rank() {
		existing.Status = incoming.Status
	}
	if existing.StageName == "" {
		existing.StageName = incoming.StageName
	}
}

func prefixRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
