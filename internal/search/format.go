package search

import (
	"fmt"
	"strings"
)

// noResultsMessages holds the localised "no results" fallback string
// per locale. There is no ecosystem localisation dependency anywhere
// in the corpus this package is grounded on; a one-string lookup map
// does not warrant pulling one in.
var noResultsMessages = map[string]string{
	"en": "No results found.",
}

// FormatChunkResultsForLLM renders chunk search results into the
// plain-text block an LLM tool call embeds as context: for each hit,
// "Section: <title>\nPage: <n>\nRelevance: <0.00>\nContent:\n<text>",
// separated by blank lines. An empty result set returns the localised
// "no results" string instead.
func FormatChunkResultsForLLM(results []*ChunkResult, locale string) string {
	if len(results) == 0 {
		return noResultsMessage(locale)
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf(
			"Section: %s\nPage: %d\nRelevance: %.2f\nContent:\n%s",
			r.Chunk.SectionTitle, r.Chunk.PageNumber, r.Score, r.Chunk.Content,
		))
	}
	return strings.Join(blocks, "\n\n")
}

func noResultsMessage(locale string) string {
	if msg, ok := noResultsMessages[locale]; ok {
		return msg
	}
	return noResultsMessages["en"]
}
