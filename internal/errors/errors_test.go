package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	senErr := New(ErrCodeTextExtraction, "text extraction failed: test.pdf", originalErr)

	require.NotNil(t, senErr)
	assert.Equal(t, originalErr, errors.Unwrap(senErr))
	assert.True(t, errors.Is(senErr, originalErr))
}

func TestSenError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "not found error",
			code:     ErrCodeNotFound,
			message:  "document not found",
			expected: "[ERR_101_NOT_FOUND] document not found",
		},
		{
			name:     "unsupported format error",
			code:     ErrCodeUnsupportedFormat,
			message:  "unsupported document format: .docx",
			expected: "[ERR_201_UNSUPPORTED_FORMAT] unsupported document format: .docx",
		},
		{
			name:     "llm connection error",
			code:     ErrCodeLLMConnection,
			message:  "request timed out",
			expected: "[ERR_403_LLM_CONNECTION] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSenError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeNotFound, "document A not found", nil)
	err2 := New(ErrCodeNotFound, "document B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestSenError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeNotFound, "document not found", nil)
	err2 := New(ErrCodeConfigInvalid, "config invalid", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestSenError_WithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeNotFound, "document not found", nil)

	err = err.WithDetail("document_id", "doc-123")
	err = err.WithDetail("page", "4")

	assert.Equal(t, "doc-123", err.Details["document_id"])
	assert.Equal(t, "4", err.Details["page"])
}

func TestSenError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeNotFound, CategoryRequest},
		{ErrCodeToolTimeout, CategoryRequest},
		{ErrCodeUnsupportedFormat, CategoryIngestion},
		{ErrCodeFileTooLarge, CategoryIngestion},
		{ErrCodeTextExtraction, CategoryExtraction},
		{ErrCodeEpubRead, CategoryExtraction},
		{ErrCodeEmbeddingGeneration, CategoryEmbedding},
		{ErrCodeLLMConnection, CategoryLLM},
		{ErrCodeDBQuery, CategoryDatabase},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestSenError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeDBMigration, SeverityFatal},
		{ErrCodeDBConnection, SeverityFatal},
		{ErrCodeEmbeddingModelInit, SeverityFatal},
		{ErrCodeNotFound, SeverityError},
		{ErrCodeLLMConnection, SeverityWarning},
		{ErrCodeEmbeddingGeneration, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestSenError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeLLMConnection, true},
		{ErrCodeEmbeddingGeneration, true},
		{ErrCodeToolTimeout, true},
		{ErrCodeNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeDBMigration, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesSenErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	senErr := Wrap(ErrCodeInternal, originalErr)

	require.NotNil(t, senErr)
	assert.Equal(t, ErrCodeInternal, senErr.Code)
	assert.Equal(t, "something went wrong", senErr.Message)
	assert.Equal(t, originalErr, senErr.Cause)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestNotFound_SetsEntityAndID(t *testing.T) {
	err := NotFound("document", "doc-42")

	assert.Equal(t, CategoryRequest, err.Category)
	assert.Equal(t, "document", err.Details["entity"])
	assert.Equal(t, "doc-42", err.Details["id"])
}

func TestFileTooLarge_SetsSizeDetails(t *testing.T) {
	err := FileTooLarge(200, 100)

	assert.Equal(t, CategoryIngestion, err.Category)
	assert.Equal(t, "200", err.Details["size"])
	assert.Equal(t, "100", err.Details["max"])
}

func TestLLMConnection_IsRetryable(t *testing.T) {
	err := LLMConnection("http://localhost:11434", nil)

	assert.Equal(t, CategoryLLM, err.Category)
	assert.True(t, err.Retryable)
}

func TestConfigError_CreatesConfigCategoryError(t *testing.T) {
	err := ConfigError("invalid yaml syntax", nil)

	assert.Equal(t, CategoryConfig, err.Category)
	assert.Contains(t, err.Code, "CONFIG")
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable SenError",
			err:      New(ErrCodeLLMConnection, "timeout", nil),
			expected: true,
		},
		{
			name:     "non-retryable SenError",
			err:      New(ErrCodeNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeLLMConnection, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "fatal db migration error",
			err:      New(ErrCodeDBMigration, "migration failed", nil),
			expected: true,
		},
		{
			name:     "fatal db connection error",
			err:      New(ErrCodeDBConnection, "cannot connect", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestGetCode_ReturnsCodeForSenError(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", nil)
	assert.Equal(t, ErrCodeNotFound, GetCode(err))
}

func TestGetCode_ReturnsEmptyForStandardError(t *testing.T) {
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
