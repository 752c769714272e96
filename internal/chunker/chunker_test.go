package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

// buildPages produces page-marked text with n pages of bodyLen characters each.
func buildPages(n, bodyLen int) string {
	var blocks []string
	for i := 1; i <= n; i++ {
		blocks = append(blocks, Marker(i)+"\n"+strings.Repeat("x", bodyLen))
	}
	return strings.Join(blocks, "\n\n")
}

func TestSplit_FitsInOneChunk(t *testing.T) {
	text := buildPages(3, 50)
	chunks := Split(text, 30000)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("expected chunk to equal input")
	}
	if chunks[0].Index != 0 || chunks[0].Total != 1 {
		t.Errorf("expected index 0 of 1, got %d of %d", chunks[0].Index, chunks[0].Total)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	chunks := Split("", 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for empty input, got %d", len(chunks))
	}
	if chunks[0].Text != "" {
		t.Errorf("expected empty chunk, got %q", chunks[0].Text)
	}
}

func TestSplit_NeverCutsPages(t *testing.T) {
	text := buildPages(10, 90)
	const budget = 250
	chunks := Split(text, budget)

	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	seen := map[int]int{}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
		if c.Total != len(chunks) {
			t.Errorf("chunk %d: expected total %d, got %d", i, len(chunks), c.Total)
		}
		if c.Text == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if n := utf8.RuneCountInString(c.Text); n > budget {
			t.Errorf("chunk %d: %d chars exceeds budget %d", i, n, budget)
		}
		if !strings.HasPrefix(c.Text, "[PAGE ") {
			t.Errorf("chunk %d does not start at a page marker: %q", i, c.Text[:20])
		}
		for _, p := range MarkerPages(c.Text) {
			seen[p]++
		}
		rebuilt.WriteString(c.Text)
	}

	for p := 1; p <= 10; p++ {
		if seen[p] != 1 {
			t.Errorf("page %d: expected in exactly one chunk, found in %d", p, seen[p])
		}
	}
	if rebuilt.String() != text {
		t.Error("expected concatenated chunks to reproduce the input")
	}
}

func TestSplit_OversizedPageEmittedWhole(t *testing.T) {
	text := Marker(1) + "\nshort\n\n" + Marker(2) + "\n" + strings.Repeat("y", 500) + "\n\n" + Marker(3) + "\nshort"
	chunks := Split(text, 200)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	big := chunks[1]
	if pages := MarkerPages(big.Text); len(pages) != 1 || pages[0] != 2 {
		t.Fatalf("expected oversized chunk to hold only page 2, got pages %v", pages)
	}
	if utf8.RuneCountInString(big.Text) <= 200 {
		t.Errorf("expected oversized chunk above budget, got %d chars", utf8.RuneCountInString(big.Text))
	}
	if !strings.Contains(big.Text, strings.Repeat("y", 500)) {
		t.Error("expected page 2 body to be kept intact")
	}
}

func TestSplit_LeadingTextBeforeFirstMarker(t *testing.T) {
	text := strings.Repeat("p", 80) + "\n" + buildPages(2, 80)
	chunks := Split(text, 100)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "[PAGE") {
		t.Errorf("expected leading block without marker, got %q", chunks[0].Text)
	}
}

func TestSplit_ZeroBudgetUsesDefault(t *testing.T) {
	text := buildPages(2, 100)
	chunks := Split(text, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected default budget to hold the text in 1 chunk, got %d", len(chunks))
	}
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	// 100 two-byte runes per page: 200 bytes, ~110 characters per block.
	body := strings.Repeat("é", 100)
	text := Marker(1) + "\n" + body + "\n\n" + Marker(2) + "\n" + body
	chunks := Split(text, 250)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk when measured in characters, got %d", len(chunks))
	}
}

func TestApportion_EqualSlices(t *testing.T) {
	got := Apportion("abcdefghij", 3)
	want := "[PAGE 1]\nabcd\n\n[PAGE 2]\nefgh\n\n[PAGE 3]\nij"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApportion_SkipsBlankPages(t *testing.T) {
	got := Apportion("abcd    ", 2)
	if got != "[PAGE 1]\nabcd" {
		t.Errorf("expected only page 1, got %q", got)
	}
}

func TestApportion_Edges(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		pages int
		want  []int
	}{
		{"empty", "", 4, []int{}},
		{"zero pages", "hello", 0, []int{1}},
		{"more pages than chars", "abc", 10, []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkerPages(Apportion(tt.text, tt.pages))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("expected pages %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPageBlocks_RoundTrip(t *testing.T) {
	text := "intro\n" + buildPages(4, 10)
	blocks := PageBlocks(text)
	if len(blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(blocks))
	}
	if strings.Join(blocks, "") != text {
		t.Error("expected blocks to reproduce the input")
	}
	if PageBlocks("") != nil {
		t.Error("expected no blocks for empty text")
	}
}
