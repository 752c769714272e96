package chunker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// markerRe matches a page marker such as "[PAGE 12]".
var markerRe = regexp.MustCompile(`\[PAGE (\d+)\]`)

// Marker returns the marker that opens the block of the given 1-based page.
func Marker(page int) string {
	return fmt.Sprintf("[PAGE %d]", page)
}

// Apportion turns flat extracted text into page-marked text by cutting it into
// pages equal slices of ceil(len/pages) characters. Slices that are blank after
// trimming get no block. The extractor rarely knows where pages really break,
// so the resulting page numbers are approximate locators.
func Apportion(text string, pages int) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	if pages <= 0 {
		pages = 1
	}

	perPage := (len(runes) + pages - 1) / pages

	var sb strings.Builder
	for i := 0; i < pages; i++ {
		start := i * perPage
		if start >= len(runes) {
			break
		}
		end := min(start+perPage, len(runes))

		slice := strings.TrimSpace(string(runes[start:end]))
		if slice == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(Marker(i + 1))
		sb.WriteString("\n")
		sb.WriteString(slice)
	}
	return sb.String()
}

// PageBlocks splits page-marked text at the start of every marker. Each block
// runs from one marker up to, but not including, the next one. Text before the
// first marker forms its own leading block. Concatenating the blocks yields the
// input unchanged.
func PageBlocks(text string) []string {
	locs := markerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	blocks := make([]string, 0, len(locs)+1)
	if locs[0][0] > 0 {
		blocks = append(blocks, text[:locs[0][0]])
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, text[loc[0]:end])
	}
	return blocks
}

// MarkerPages returns the page numbers of all markers in text, in order.
func MarkerPages(text string) []int {
	matches := markerRe.FindAllStringSubmatch(text, -1)
	pages := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, n)
	}
	return pages
}
