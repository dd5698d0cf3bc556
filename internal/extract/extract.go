// Package extract turns a precheck'd document file into a sequence of
// text sections ready for chunking. Each format (PDF, EPUB, Markdown,
// plain text) has its own extractor; Extract dispatches on the
// ingest.Format detected during the precheck step.
package extract

import (
	"github.com/jhelwig/seneschal-program-sub001/internal/ingest"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// Section is a titled span of extracted text, optionally tied to a
// source page number. PDF extraction produces one Section per page
// (grouped under a bookmark title where one applies); EPUB extraction
// produces one Section per spine chapter; Markdown and plain text
// extraction produce a single Section for the whole file.
type Section struct {
	Title      string
	Content    string
	PageNumber int
}

// Extract reads path and returns its content split into sections,
// dispatching on format.
func Extract(path string, format ingest.Format) ([]Section, error) {
	switch format {
	case ingest.FormatPDF:
		return extractPDF(path)
	case ingest.FormatEPUB:
		return extractEPUB(path)
	case ingest.FormatMarkdown, ingest.FormatText:
		return extractPlain(path)
	default:
		return nil, senerrors.UnsupportedFormat(string(format))
	}
}
