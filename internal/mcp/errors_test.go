package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	var err error = nil

	result := MapError(err)

	assert.Nil(t, result)
}

func TestMapError_IndexNotFound(t *testing.T) {
	err := ErrIndexNotFound

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeIndexNotFound, result.Code)
	assert.Contains(t, result.Message, "Index not found")
}

func TestMapError_EmbeddingFailed(t *testing.T) {
	err := ErrEmbeddingFailed

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeEmbeddingFailed, result.Code)
	assert.Contains(t, result.Message, "Embedding")
}

func TestMapError_DeadlineExceeded(t *testing.T) {
	err := context.DeadlineExceeded

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "timed out")
}

func TestMapError_Canceled(t *testing.T) {
	err := context.Canceled

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "canceled")
}

func TestMapError_ToolNotFound(t *testing.T) {
	err := ErrToolNotFound

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeMethodNotFound, result.Code)
}

func TestMapError_InvalidParams(t *testing.T) {
	err := ErrInvalidParams

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInvalidParams, result.Code)
}

func TestMapError_UnknownError(t *testing.T) {
	err := errors.New("some unknown error")

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
	assert.Contains(t, result.Message, "Internal server error")
}

func TestMapError_WrappedError(t *testing.T) {
	err := fmt.Errorf("failed to search: %w", ErrIndexNotFound)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeIndexNotFound, result.Code)
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: "missing required field",
	}

	msg := err.Error()

	assert.Contains(t, msg, "MCP error")
	assert.Contains(t, msg, "-32602")
	assert.Contains(t, msg, "missing required field")
}

func TestNewInvalidParamsError(t *testing.T) {
	msg := "query parameter is required"

	err := NewInvalidParamsError(msg)

	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Equal(t, msg, err.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	name := "unknown_tool"

	err := NewMethodNotFoundError(name)

	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, name)
}

func TestNewResourceNotFoundError(t *testing.T) {
	uri := "file://src/main.go"

	err := NewResourceNotFoundError(uri)

	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, uri)
}

func TestMapError_SenError_NotFound(t *testing.T) {
	err := senerrors.New(senerrors.ErrCodeNotFound, "document 'dmg.pdf' not found", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeFileNotFound, result.Code)
	assert.Contains(t, result.Message, "dmg.pdf")
}

func TestMapError_SenError_LLMConnection(t *testing.T) {
	err := senerrors.New(senerrors.ErrCodeLLMConnection, "connection timed out", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeEmbeddingFailed, result.Code)
}

func TestMapError_SenError_InvalidRequest(t *testing.T) {
	err := senerrors.New(senerrors.ErrCodeInvalidRequest, "query cannot be empty", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInvalidParams, result.Code)
}

func TestMapError_SenError_ToolTimeout(t *testing.T) {
	err := senerrors.New(senerrors.ErrCodeToolTimeout, "tool call timed out", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
}

func TestMapError_SenError_Internal(t *testing.T) {
	err := senerrors.New(senerrors.ErrCodeInternal, "unexpected error", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
}

func TestMapError_WrappedSenError(t *testing.T) {
	senErr := senerrors.New(senerrors.ErrCodeLLMConnection, "timeout", nil)
	err := fmt.Errorf("operation failed: %w", senErr)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeEmbeddingFailed, result.Code)
}
