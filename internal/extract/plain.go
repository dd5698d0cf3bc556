package extract

import (
	"os"
	"strings"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// extractPlain reads a Markdown or plain text file verbatim as a
// single section. No bookmark or watermark structure applies.
func extractPlain(path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, senerrors.New(senerrors.ErrCodeTextExtraction, "cannot read file: "+path, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, senerrors.TextExtraction(0, nil)
	}

	return []Section{{Content: content}}, nil
}
