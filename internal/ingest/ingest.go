// Package ingest handles the document-ingestion precondition checks
// that run before a document is handed to internal/extract: format
// detection from the file extension, content hashing for duplicate
// detection, and file size limit enforcement.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// Format is a supported document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatEPUB     Format = "epub"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

var extensionFormats = map[string]Format{
	".pdf":      FormatPDF,
	".epub":     FormatEPUB,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
}

// DetectFormat returns the Format implied by a file's extension.
// Returns ERR_201_UNSUPPORTED_FORMAT if the extension isn't recognized.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensionFormats[ext]; ok {
		return f, nil
	}
	return "", senerrors.UnsupportedFormat(ext)
}

// Precheck is the result of validating a candidate file before it is
// handed off for extraction.
type Precheck struct {
	Path      string
	Filename  string
	Format    Format
	SHA256    string
	SizeBytes int64
}

// PrecheckFile validates a candidate document: confirms it exists,
// detects its format from its extension, enforces maxSizeBytes, and
// computes its SHA-256 content hash for duplicate detection. It does
// not open a database connection; the caller is expected to check the
// returned hash against dbstore.GetDocumentBySHA256 itself.
func PrecheckFile(path string, maxSizeBytes int64) (*Precheck, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, senerrors.New(senerrors.ErrCodeInvalidRequest, "cannot open file: "+path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, senerrors.New(senerrors.ErrCodeInvalidRequest, "cannot stat file: "+path, err)
	}

	if maxSizeBytes > 0 && info.Size() > maxSizeBytes {
		return nil, senerrors.FileTooLarge(info.Size(), maxSizeBytes)
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return nil, senerrors.New(senerrors.ErrCodeInvalidRequest, "cannot read file: "+path, err)
	}

	return &Precheck{
		Path:      path,
		Filename:  filepath.Base(path),
		Format:    format,
		SHA256:    hex.EncodeToString(hasher.Sum(nil)),
		SizeBytes: info.Size(),
	}, nil
}

// IsSupportedFormat reports whether an extension (with or without the
// leading dot, case-insensitive) is ingestible.
func IsSupportedFormat(ext string) bool {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	_, ok := extensionFormats[strings.ToLower(ext)]
	return ok
}

// StorePath returns the canonical on-disk location a document's
// content is copied to: {documentsDir}/{docID}_{filename}, so the row
// never depends on the caller-supplied path continuing to exist.
func StorePath(documentsDir, docID, filename string) string {
	return filepath.Join(documentsDir, docID+"_"+filename)
}

// StoreContent copies the precheck'd file at src into documentsDir
// under docID's canonical name, creating documentsDir if needed, and
// returns the destination path. The copy is not atomic: a reader
// racing a concurrent StoreContent for the same docID would be wrong,
// but docID is only ever minted once per import.
func StoreContent(src, documentsDir, docID, filename string) (string, error) {
	if err := os.MkdirAll(documentsDir, 0755); err != nil {
		return "", senerrors.New(senerrors.ErrCodeInvalidRequest, "cannot create documents directory: "+documentsDir, err)
	}

	dst := StorePath(documentsDir, docID, filename)

	in, err := os.Open(src)
	if err != nil {
		return "", senerrors.New(senerrors.ErrCodeInvalidRequest, "cannot open file: "+src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", senerrors.New(senerrors.ErrCodeInvalidRequest, "cannot create file: "+dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", senerrors.New(senerrors.ErrCodeInvalidRequest, "cannot copy file: "+src, err)
	}

	return dst, nil
}
