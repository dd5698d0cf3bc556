package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForUser returns a user-friendly error message suitable for
// returning to an MCP tool caller or chat surface.
func FormatForUser(err error) string {
	if err == nil {
		return ""
	}

	se, ok := err.(*SenError)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString(se.Message)

	if len(se.Details) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range se.Details {
			if !first {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%s", k, v)
			first = false
		}
		sb.WriteString(")")
	}

	return sb.String()
}

// FormatForCLI formats an error for CLI output with code and detail lines.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	se, ok := err.(*SenError)
	if !ok {
		se = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", se.Message)
	fmt.Fprintf(&sb, "  Code: %s\n", se.Code)

	for k, v := range se.Details {
		fmt.Fprintf(&sb, "  %s: %s\n", k, v)
	}

	return sb.String()
}

// jsonError is the JSON representation of an error, used for tool
// responses returned over the duplex session transport.
type jsonError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Category  string            `json:"category"`
	Severity  string            `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
	Cause     string            `json:"cause,omitempty"`
	Retryable bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error, suitable for
// machine consumption (tool-call error payloads, structured logs).
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	se, ok := err.(*SenError)
	if !ok {
		se = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:      se.Code,
		Message:   se.Message,
		Category:  string(se.Category),
		Severity:  string(se.Severity),
		Details:   se.Details,
		Retryable: se.Retryable,
	}

	if se.Cause != nil {
		je.Cause = se.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error into key-value pairs suitable for slog
// attributes via slog.Any("error", FormatForLog(err)) or similar.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	se, ok := err.(*SenError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": se.Code,
		"message":    se.Message,
		"category":   string(se.Category),
		"severity":   string(se.Severity),
		"retryable":  se.Retryable,
	}

	if se.Cause != nil {
		result["cause"] = se.Cause.Error()
	}

	for k, v := range se.Details {
		result["detail_"+k] = v
	}

	return result
}
