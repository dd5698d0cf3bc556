package errors_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/jhelwig/seneschal-program-sub001/internal/ingest"
)

// TestErrorWrapping_StoreContent verifies StoreContent wraps the
// underlying open error with context about what file it was opening.
func TestErrorWrapping_StoreContent(t *testing.T) {
	documentsDir := filepath.Join(t.TempDir(), "documents")
	_, err := ingest.StoreContent("/nonexistent/deeply/nested/source.pdf", documentsDir, "doc-1", "source.pdf")
	if err == nil {
		t.Fatal("expected error copying a nonexistent source file")
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "cannot open file") {
		t.Errorf("error should contain context about the failed open, got: %s", errMsg)
	}
}

// TestErrorWrapping_PrecheckFile verifies PrecheckFile wraps a missing
// file's stat error with context about the path involved.
func TestErrorWrapping_PrecheckFile(t *testing.T) {
	_, err := ingest.PrecheckFile("/nonexistent/path/notes.md", 0)
	if err == nil {
		t.Fatal("expected error prechecking a nonexistent file")
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "notes.md") && !strings.Contains(errMsg, "stat") {
		t.Errorf("error should mention the missing file, got: %s", errMsg)
	}
}
