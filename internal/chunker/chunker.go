package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is the default chunk budget in characters.
const DefaultMaxChars = 30000

// Chunk is a bounded slice of page-marked text, ready for analysis.
type Chunk struct {
	Index int    // Position within the document, 0-based.
	Total int    // Number of chunks the document was split into.
	Text  string // Whole page blocks, markers included.
}

// Part returns the 1-based position of the chunk, as shown to the model.
func (c Chunk) Part() int {
	return c.Index + 1
}

// Split divides page-marked text into chunks of at most maxChars characters,
// never cutting through a page block. Text that already fits is returned as a
// single chunk, even when empty. A page block that alone exceeds maxChars is
// emitted whole as an oversized chunk.
func Split(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	if utf8.RuneCountInString(text) <= maxChars {
		return []Chunk{{Index: 0, Total: 1, Text: text}}
	}

	var parts []string
	var current strings.Builder
	currentLen := 0

	for _, block := range PageBlocks(text) {
		blockLen := utf8.RuneCountInString(block)

		// Would adding this block exceed the budget?
		if currentLen > 0 && currentLen+blockLen > maxChars {
			parts = append(parts, current.String())
			current.Reset()
			currentLen = 0
		}

		current.WriteString(block)
		currentLen += blockLen
	}

	if currentLen > 0 {
		parts = append(parts, current.String())
	}

	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Index: i, Total: len(parts), Text: p}
	}
	return chunks
}
