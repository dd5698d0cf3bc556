// Package chunker splits extracted document sections into
// overlapping, retrievable windows of text sized for the embedding
// model's context window.
package chunker

import (
	"strings"

	"github.com/jhelwig/seneschal-program-sub001/internal/extract"
)

// Chunk is one windowed span of a document's extracted text, still
// carrying the section metadata it was cut from.
type Chunk struct {
	ChunkIndex   int
	Content      string
	SectionTitle string
	PageNumber   int
}

// ChunkSections packs a document's extracted sections into Chunks no
// larger than maxChars, carrying overlapChars of trailing context from
// one chunk into the next so a concept split across a window boundary
// still appears whole in at least one chunk. ChunkIndex is assigned
// sequentially across the whole document, not per-section, so
// chunks.chunk_index reflects reading order.
func ChunkSections(sections []extract.Section, maxChars, overlapChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = 1500
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = 0
	}

	var chunks []Chunk
	index := 0
	for _, sec := range sections {
		for _, content := range packSection(sec.Content, maxChars, overlapChars) {
			chunks = append(chunks, Chunk{
				ChunkIndex:   index,
				Content:      content,
				SectionTitle: sec.Title,
				PageNumber:   sec.PageNumber,
			})
			index++
		}
	}
	return chunks
}

// packSection packs a section's paragraphs into windows up to
// maxChars, carrying the trailing overlapChars of each window forward
// as a prefix of the next. Paragraphs that alone exceed maxChars are
// further split on whitespace word boundaries.
func packSection(content string, maxChars, overlapChars int) []string {
	paragraphs := splitParagraphs(content)
	if len(paragraphs) == 0 {
		return nil
	}

	var windows []string
	var current strings.Builder

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			windows = append(windows, text)
		}
		current.Reset()
	}

	carryOverlap := func() {
		if overlapChars == 0 {
			return
		}
		tail := lastChars(current.String(), overlapChars)
		current.Reset()
		if tail != "" {
			current.WriteString(tail)
			current.WriteString("\n\n")
		}
	}

	for _, para := range paragraphs {
		for _, piece := range splitOversizedParagraph(para, maxChars) {
			if current.Len() > 0 && current.Len()+len(piece)+2 > maxChars {
				flush()
				carryOverlap()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	flush()

	return windows
}

// splitParagraphs splits on blank lines, dropping empty entries.
func splitParagraphs(content string) []string {
	parts := strings.Split(content, "\n\n")
	var paragraphs []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitOversizedParagraph breaks a single paragraph larger than
// maxChars into word-boundary pieces, so one oversized paragraph
// doesn't force a chunk past the configured limit.
func splitOversizedParagraph(para string, maxChars int) []string {
	if len(para) <= maxChars {
		return []string{para}
	}

	words := strings.Fields(para)
	var pieces []string
	var current strings.Builder

	for _, w := range words {
		if current.Len() > 0 && current.Len()+len(w)+1 > maxChars {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// lastChars returns the trailing n characters of s (rune-safe), or
// all of s if it's shorter than n.
func lastChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
