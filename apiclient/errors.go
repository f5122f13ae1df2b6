package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	// CodeNetwork marks a request that never produced an HTTP response.
	CodeNetwork = "NETWORK_ERROR"
	// CodeUnknown is used when a failed response carries no code.
	CodeUnknown = "UNKNOWN_ERROR"

	codeValidation   = "VALIDATION_ERROR"
	codeUnauthorized = "UNAUTHORIZED"

	traceIDHeader = "X-Trace-ID"
)

// Error is the normalized form of every failed call: a transport failure
// (Status 0) or a non-2xx response. Details and Body are nil when absent.
type Error struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
	TraceID string

	// Body is the parsed response body, kept for diagnostics.
	Body json.RawMessage

	cause error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Unexpected reports a failure the caller cannot act on: no response at
// all or a server-side error.
func (e *Error) Unexpected() bool {
	return e.Status == 0 || e.Status >= http.StatusInternalServerError
}

// NetworkError wraps a transport failure.
func NetworkError(err error) *Error {
	return &Error{
		Status:  0,
		Code:    CodeNetwork,
		Message: "Network error. Please check your connection and try again.",
		cause:   err,
	}
}

// Normalize builds an Error from a failed response and its body. It never
// fails: an unparsable body is treated as absent. Top-level fields win over
// the same fields under "extensions".
func Normalize(resp *http.Response, body []byte) *Error {
	status := resp.StatusCode
	env := parseObject(body)
	ext := parseObject(env["extensions"])

	e := &Error{Status: status}
	if env != nil {
		e.Body = json.RawMessage(bytes.Clone(bytes.TrimSpace(body)))
	}

	e.Code = firstString(env["code"], ext["code"])
	if e.Code == "" {
		e.Code = CodeUnknown
	}

	e.Details = firstValue(env["details"], ext["details"], env["errors"])

	e.TraceID = firstString(env["traceId"], ext["traceId"])
	if e.TraceID == "" {
		e.TraceID = resp.Header.Get(traceIDHeader)
	}

	e.Message = firstString(env["detail"], env["message"], env["error"], env["title"])
	if e.Message == "" {
		e.Message = defaultMessage(status)
	}
	return e
}

func defaultMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("Request failed (HTTP %d %s)", status, text)
	}
	return fmt.Sprintf("Request failed (HTTP %d)", status)
}

// parseObject decodes raw as a JSON object, or returns nil.
func parseObject(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// firstString returns the first candidate that is a non-empty JSON string.
func firstString(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		var s string
		if len(raw) > 0 && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

// firstValue returns the first candidate that is present and not null.
func firstValue(candidates ...json.RawMessage) json.RawMessage {
	for _, raw := range candidates {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			return json.RawMessage(bytes.Clone(trimmed))
		}
	}
	return nil
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUnexpected reports whether err should surface as a generic failure with
// a trace id. Errors that did not come from this package count as unexpected.
func IsUnexpected(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := AsError(err); ok {
		return e.Unexpected()
	}
	return true
}

// IsValidationError reports a 400 VALIDATION_ERROR response.
func IsValidationError(err error) bool {
	e, ok := AsError(err)
	return ok && e.Status == http.StatusBadRequest && e.Code == codeValidation
}

// HasCode reports whether err carries the given application code.
func HasCode(err error, code string) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// ValidationFieldErrors returns field -> messages from the error details,
// looking inside a nested "errors" object when present. It returns nil when
// the details are not shaped that way.
func ValidationFieldErrors(err error) map[string][]string {
	e, ok := AsError(err)
	if !ok || len(e.Details) == 0 {
		return nil
	}

	obj := parseObject(e.Details)
	if obj == nil {
		return nil
	}
	if nested := parseObject(obj["errors"]); nested != nil {
		obj = nested
	}

	fields := make(map[string][]string, len(obj))
	for name, raw := range obj {
		var msgs []string
		if json.Unmarshal(raw, &msgs) == nil {
			fields[name] = msgs
			continue
		}
		var msg string
		if json.Unmarshal(raw, &msg) == nil {
			fields[name] = []string{msg}
			continue
		}
		return nil
	}
	return fields
}
