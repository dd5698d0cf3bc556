package search

import (
	"strings"
	"testing"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
)

func TestFormatChunkResultsForLLMEmptyReturnsNoResults(t *testing.T) {
	got := FormatChunkResultsForLLM(nil, "en")
	if got != "No results found." {
		t.Errorf("got %q, want the localized no-results message", got)
	}
}

func TestFormatChunkResultsForLLMUnknownLocaleFallsBackToEnglish(t *testing.T) {
	got := FormatChunkResultsForLLM(nil, "xx")
	if got != "No results found." {
		t.Errorf("got %q, want english fallback for unknown locale", got)
	}
}

func TestFormatChunkResultsForLLMSingleResult(t *testing.T) {
	results := []*ChunkResult{
		{
			Chunk: &dbstore.Chunk{SectionTitle: "Combat", PageNumber: 42, Content: "Roll a d20 to attack."},
			Score: 0.8765,
		},
	}
	got := FormatChunkResultsForLLM(results, "en")
	want := "Section: Combat\nPage: 42\nRelevance: 0.88\nContent:\nRoll a d20 to attack."
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatChunkResultsForLLMMultipleResultsSeparatedByBlankLine(t *testing.T) {
	results := []*ChunkResult{
		{Chunk: &dbstore.Chunk{SectionTitle: "A", PageNumber: 1, Content: "first"}, Score: 0.5},
		{Chunk: &dbstore.Chunk{SectionTitle: "B", PageNumber: 2, Content: "second"}, Score: 0.25},
	}
	got := FormatChunkResultsForLLM(results, "en")
	parts := strings.Split(got, "\n\n")
	if len(parts) != 2 {
		t.Fatalf("expected 2 blocks separated by a blank line, got %d: %q", len(parts), got)
	}
	if !strings.HasPrefix(parts[0], "Section: A") || !strings.HasPrefix(parts[1], "Section: B") {
		t.Errorf("blocks out of order or malformed: %q", got)
	}
}
