package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"book.pdf":       FormatPDF,
		"novel.epub":     FormatEPUB,
		"notes.md":       FormatMarkdown,
		"notes.markdown": FormatMarkdown,
		"readme.txt":     FormatText,
	}
	for name, want := range cases {
		got, err := DetectFormat(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDetectFormat_Unsupported(t *testing.T) {
	_, err := DetectFormat("archive.zip")
	require.Error(t, err)
}

func TestPrecheckFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Hello"), 0644))

	pre, err := PrecheckFile(path, 0)
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, pre.Format)
	require.Equal(t, "doc.md", pre.Filename)
	require.NotEmpty(t, pre.SHA256)
	require.Equal(t, int64(len("# Hello")), pre.SizeBytes)
}

func TestPrecheckFile_TooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	_, err := PrecheckFile(path, 5)
	require.Error(t, err)
}

func TestPrecheckFile_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0644))

	_, err := PrecheckFile(path, 0)
	require.Error(t, err)
}

func TestPrecheckFile_SameContentSameHash(t *testing.T) {
	dir := t.TempDir()
	path1 := filepath.Join(dir, "a.txt")
	path2 := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(path1, []byte("identical content"), 0644))
	require.NoError(t, os.WriteFile(path2, []byte("identical content"), 0644))

	pre1, err := PrecheckFile(path1, 0)
	require.NoError(t, err)
	pre2, err := PrecheckFile(path2, 0)
	require.NoError(t, err)

	require.Equal(t, pre1.SHA256, pre2.SHA256)
}

func TestIsSupportedFormat(t *testing.T) {
	require.True(t, IsSupportedFormat(".pdf"))
	require.True(t, IsSupportedFormat("pdf"))
	require.False(t, IsSupportedFormat(".zip"))
}

func TestStoreContent_CopiesUnderCanonicalName(t *testing.T) {
	srcDir := t.TempDir()
	documentsDir := filepath.Join(t.TempDir(), "documents")
	src := filepath.Join(srcDir, "notes.md")
	require.NoError(t, os.WriteFile(src, []byte("# Hello"), 0644))

	dst, err := StoreContent(src, documentsDir, "doc-123", "notes.md")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(documentsDir, "doc-123_notes.md"), dst)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "# Hello", string(content))
}

func TestStorePath_IsDeterministic(t *testing.T) {
	require.Equal(t, filepath.Join("/data/documents", "abc_notes.md"), StorePath("/data/documents", "abc", "notes.md"))
}
