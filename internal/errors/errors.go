package errors

import (
	"fmt"
)

// SenError is the structured error type for seneschal. It carries enough
// context to be logged, retried, and surfaced to a caller without the
// caller needing to parse a message string.
type SenError struct {
	// Code is the unique error code (e.g., "ERR_301_TEXT_EXTRACTION").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Request, Ingestion, Extraction, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs, e.g.
	// "document_id", "page", "format".
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *SenError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SenError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code, enabling
// errors.Is() to work with SenError.
func (e *SenError) Is(target error) bool {
	if t, ok := target.(*SenError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error and returns it for
// method chaining.
func (e *SenError) WithDetail(key, value string) *SenError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SenError with the given code and message. Category,
// severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SenError {
	return &SenError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SenError from an existing error, using the error's
// message as the SenError message. Returns nil if err is nil.
func Wrap(code string, err error) *SenError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates an entity-not-found error.
func NotFound(entity, id string) *SenError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", entity, id), nil).
		WithDetail("entity", entity).WithDetail("id", id)
}

// InvalidRequest creates a caller-request validation error.
func InvalidRequest(message string) *SenError {
	return New(ErrCodeInvalidRequest, message, nil)
}

// UnsupportedFormat creates an ingestion error for an unrecognized document format.
func UnsupportedFormat(format string) *SenError {
	return New(ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported document format: %s", format), nil).
		WithDetail("format", format)
}

// FileTooLarge creates an ingestion error for a document exceeding the size limit.
func FileTooLarge(size, max int64) *SenError {
	return New(ErrCodeFileTooLarge, fmt.Sprintf("file size %d exceeds maximum %d", size, max), nil).
		WithDetail("size", fmt.Sprintf("%d", size)).
		WithDetail("max", fmt.Sprintf("%d", max))
}

// TextExtraction creates a text-extraction error for a specific page.
func TextExtraction(page int, cause error) *SenError {
	return New(ErrCodeTextExtraction, fmt.Sprintf("text extraction failed on page %d", page), cause).
		WithDetail("page", fmt.Sprintf("%d", page))
}

// EpubRead creates an EPUB-parsing error.
func EpubRead(message string, cause error) *SenError {
	return New(ErrCodeEpubRead, message, cause)
}

// EmbeddingGeneration creates an error for a failed embedding call.
func EmbeddingGeneration(message string, cause error) *SenError {
	return New(ErrCodeEmbeddingGeneration, message, cause)
}

// EmbeddingModelInit creates an error for embedder initialization failure.
func EmbeddingModelInit(message string, cause error) *SenError {
	return New(ErrCodeEmbeddingModelInit, message, cause)
}

// LLMConnection creates an error for a failed connection to the LLM backend.
func LLMConnection(url string, cause error) *SenError {
	return New(ErrCodeLLMConnection, fmt.Sprintf("failed to reach LLM backend at %s", url), cause).
		WithDetail("url", url)
}

// LLMModelNotFound creates an error for a missing LLM model.
func LLMModelNotFound(model string) *SenError {
	return New(ErrCodeLLMModelNotFound, fmt.Sprintf("LLM model not found: %s", model), nil).
		WithDetail("model", model)
}

// LLMGeneration creates an error for a failed LLM generation request.
func LLMGeneration(status int, message string) *SenError {
	return New(ErrCodeLLMGeneration, message, nil).
		WithDetail("status", fmt.Sprintf("%d", status))
}

// LLMInvalidResponse creates an error for a malformed LLM response.
func LLMInvalidResponse(cause error) *SenError {
	return New(ErrCodeLLMInvalidResponse, "LLM returned an unparseable response", cause)
}

// DBConnection creates a database connection error.
func DBConnection(cause error) *SenError {
	return New(ErrCodeDBConnection, "failed to connect to database", cause)
}

// DBQuery creates a database query error.
func DBQuery(cause error) *SenError {
	return New(ErrCodeDBQuery, "database query failed", cause)
}

// DBMigration creates a database migration error.
func DBMigration(cause error) *SenError {
	return New(ErrCodeDBMigration, "database migration failed", cause)
}

// DBSerialization creates a database serialization error (e.g. JSON column
// marshal/unmarshal failure).
func DBSerialization(cause error) *SenError {
	return New(ErrCodeDBSerialization, "failed to (de)serialize database value", cause)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *SenError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ToolTimeout creates an error for an external tool call that timed out
// waiting on the GM client.
func ToolTimeout(tool string) *SenError {
	return New(ErrCodeToolTimeout, fmt.Sprintf("Tool '%s' timed out", tool), nil).
		WithDetail("tool", tool)
}

// NoGMConnection creates an error for an external tool dispatch with no
// connected GM client to route the request to.
func NoGMConnection(tool string) *SenError {
	return New(ErrCodeNoGMConnection, "No GM connection available to execute FVTT tools", nil).
		WithDetail("tool", tool)
}

// InternalError creates an internal catch-all error.
func InternalError(message string, cause error) *SenError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SenError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SenError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SenError, or "" if not one.
func GetCode(err error) string {
	if se, ok := err.(*SenError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SenError, or "" if not one.
func GetCategory(err error) Category {
	if se, ok := err.(*SenError); ok {
		return se.Category
	}
	return ""
}
