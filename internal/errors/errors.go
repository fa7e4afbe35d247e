// Package errors provides structured error types for cdbg.
// Every error carries a machine-readable code so that callers (the CLI, the
// MCP tools and the DAP bridge) can branch on the kind of failure, plus a
// hint that tells the user how to recover.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of error for programmatic handling
type ErrorCode string

const (
	// Setup errors
	CodeNoEndpoint    ErrorCode = "NO_ENDPOINT"
	CodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Resolution errors
	CodeNoDebuggee        ErrorCode = "NO_DEBUGGEE"
	CodeMultipleDebuggees ErrorCode = "MULTIPLE_DEBUGGEES"

	// Format errors
	CodeInvalidFormat   ErrorCode = "INVALID_FORMAT"
	CodeInvalidLocation ErrorCode = "INVALID_LOCATION"
	CodeInvalidLogLevel ErrorCode = "INVALID_LOG_LEVEL"
	CodeInvalidPattern  ErrorCode = "INVALID_PATTERN"

	// Validation errors
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Remote errors
	CodeRemoteFailure ErrorCode = "REMOTE_FAILURE"

	// Session errors
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionLimitReached ErrorCode = "SESSION_LIMIT_REACHED"
	CodePermissionDenied    ErrorCode = "PERMISSION_DENIED"
)

// DebugError is a structured error type that includes a code, a
// human-readable message and a hint on how to fix the problem.
type DebugError struct {
	// Code is a machine-readable error category
	Code ErrorCode `json:"code"`

	// Message is a human-readable description of what went wrong
	Message string `json:"message"`

	// Hint provides actionable guidance on how to fix the error
	Hint string `json:"hint,omitempty"`

	// Details contains additional context (e.g., the invalid value, expected format)
	Details map[string]interface{} `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *DebugError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Hint != "" {
		sb.WriteString(" | Hint: ")
		sb.WriteString(e.Hint)
	}

	return sb.String()
}

// Unwrap returns the underlying error for error chaining
func (e *DebugError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *DebugError) WithDetails(key string, value interface{}) *DebugError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *DebugError) WithCause(err error) *DebugError {
	e.Cause = err
	return e
}

// --- Setup Errors ---

// NoEndpoint creates an error for a client handle that was used before it
// was initialized.
func NoEndpoint(component string) *DebugError {
	return &DebugError{
		Code:    CodeNoEndpoint,
		Message: fmt.Sprintf("%s is not initialized", component),
		Hint:    "Construct the debugger with both a debugger API and a projects API client before issuing requests.",
		Details: map[string]interface{}{
			"component": component,
		},
	}
}

// ConfigInvalid creates an error for an invalid configuration value.
func ConfigInvalid(field, reason string) *DebugError {
	return &DebugError{
		Code:    CodeConfigInvalid,
		Message: fmt.Sprintf("configuration field '%s' is invalid: %s", field, reason),
		Hint:    "Check the configuration file and the CDBG_* environment variables.",
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// --- Resolution Errors ---

// NoDebuggee creates an error for a resolution that found no target. The
// pattern is empty when the default target was requested.
func NoDebuggee(pattern string) *DebugError {
	e := &DebugError{Code: CodeNoDebuggee}
	if pattern == "" {
		e.Message = "no default debug target could be determined"
		e.Hint = "Use --target to select a debuggee by ID, name or description. Run 'cdbg debuggees list' to see the registered targets."
		return e
	}
	e.Message = fmt.Sprintf("no debug target matches '%s'", pattern)
	e.Hint = "The pattern is matched against the debuggee ID, its name and its description. Run 'cdbg debuggees list' to see the registered targets."
	return e.WithDetails("pattern", pattern)
}

// MultipleDebuggees creates an error for an ambiguous resolution. The
// candidates are the display strings of every debuggee that matched.
func MultipleDebuggees(pattern string, candidates []string) *DebugError {
	var msg string
	if pattern == "" {
		msg = "multiple possible debug targets; the default target is ambiguous"
	} else {
		msg = fmt.Sprintf("multiple debug targets match '%s'", pattern)
	}
	return &DebugError{
		Code:    CodeMultipleDebuggees,
		Message: msg,
		Hint:    fmt.Sprintf("Use --target to select one of: %s", strings.Join(candidates, ", ")),
		Details: map[string]interface{}{
			"pattern":    pattern,
			"candidates": candidates,
		},
	}
}

// --- Format Errors ---

// InvalidFormat creates an error for a malformed log format string.
func InvalidFormat(format, reason string) *DebugError {
	return &DebugError{
		Code:    CodeInvalidFormat,
		Message: fmt.Sprintf("invalid log format string: %s", reason),
		Hint:    "Expressions are written as {expression}; every '{' must be closed by a matching '}'.",
		Details: map[string]interface{}{
			"format": format,
		},
	}
}

// InvalidLocation creates an error for a location that is not of the form
// path:line.
func InvalidLocation(location string) *DebugError {
	return &DebugError{
		Code:    CodeInvalidLocation,
		Message: fmt.Sprintf("invalid location '%s'", location),
		Hint:    `Location must be of the form "path:line", e.g. "main.go:42".`,
		Details: map[string]interface{}{
			"location": location,
		},
	}
}

// InvalidLogLevel creates an error for an unknown log level.
func InvalidLogLevel(level string) *DebugError {
	return &DebugError{
		Code:    CodeInvalidLogLevel,
		Message: fmt.Sprintf("invalid log level '%s'", level),
		Hint:    "Log level must be one of: info, warning, error.",
		Details: map[string]interface{}{
			"logLevel": level,
		},
	}
}

// InvalidPattern creates an error for a regular expression that does not
// compile.
func InvalidPattern(pattern string, err error) *DebugError {
	return &DebugError{
		Code:    CodeInvalidPattern,
		Message: fmt.Sprintf("invalid regular expression '%s': %v", pattern, err),
		Hint:    "Patterns use RE2 syntax. Escape literal metacharacters such as '.' or '('.",
		Cause:   err,
		Details: map[string]interface{}{
			"pattern": pattern,
		},
	}
}

// --- Validation Errors ---

// MissingParameter creates an error for missing required parameters
func MissingParameter(paramName, description string) *DebugError {
	return &DebugError{
		Code:    CodeMissingParameter,
		Message: fmt.Sprintf("required parameter '%s' is missing", paramName),
		Hint:    description,
		Details: map[string]interface{}{
			"parameter": paramName,
		},
	}
}

// InvalidParameter creates an error for invalid parameter values
func InvalidParameter(paramName string, value interface{}, expected string) *DebugError {
	return &DebugError{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid value for parameter '%s': %v", paramName, value),
		Hint:    fmt.Sprintf("Expected: %s", expected),
		Details: map[string]interface{}{
			"parameter": paramName,
			"value":     value,
			"expected":  expected,
		},
	}
}

// --- Remote Errors ---

// RemoteFailure wraps a transport or HTTP failure of a remote call.
func RemoteFailure(operation string, err error) *DebugError {
	return &DebugError{
		Code:    CodeRemoteFailure,
		Message: fmt.Sprintf("%s failed: %v", operation, err),
		Hint:    remoteHint(err),
		Cause:   err,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// StatusCoder is implemented by transport errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

func remoteHint(err error) string {
	var sc StatusCoder
	if !stderrors.As(err, &sc) {
		return "Check network connectivity and the configured API endpoints."
	}
	switch sc.HTTPStatus() {
	case 401:
		return "The access token was rejected. Refresh it and set CDBG_ACCESS_TOKEN."
	case 403:
		return "The caller lacks permission on this project. Check the project ID and IAM roles."
	case 404:
		return "The requested resource does not exist. Check the breakpoint ID and the selected target."
	case 429:
		return "The service is rate limiting requests. Retry later."
	default:
		return "The debugger service reported an error. Retry, or run with --verbosity=debug for details."
	}
}

// --- Session Errors ---

// SessionNotFound creates an error for when a session ID doesn't exist
func SessionNotFound(sessionID string) *DebugError {
	return &DebugError{
		Code:    CodeSessionNotFound,
		Message: fmt.Sprintf("session '%s' not found", sessionID),
		Hint:    "Use debug_list_sessions to see active sessions, or use debug_attach to select a target.",
		Details: map[string]interface{}{
			"sessionId": sessionID,
		},
	}
}

// SessionLimitReached creates an error when max sessions is reached
func SessionLimitReached(maxSessions int) *DebugError {
	return &DebugError{
		Code:    CodeSessionLimitReached,
		Message: fmt.Sprintf("maximum number of sessions (%d) reached", maxSessions),
		Hint:    "Use debug_detach to close an existing session before attaching to another target.",
		Details: map[string]interface{}{
			"maxSessions": maxSessions,
		},
	}
}

// PermissionDenied creates an error for an operation disabled by the
// configured capability mode.
func PermissionDenied(operation, mode string) *DebugError {
	return &DebugError{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("%s is not allowed in '%s' mode", operation, mode),
		Hint:    "Creating and deleting breakpoints requires mode 'full'.",
		Details: map[string]interface{}{
			"operation": operation,
			"mode":      mode,
		},
	}
}

// --- Helpers ---

// Wrap wraps a generic error with context
func Wrap(code ErrorCode, message string, hint string, err error) *DebugError {
	return &DebugError{
		Code:    code,
		Message: message,
		Hint:    hint,
		Cause:   err,
	}
}

// FromError creates a DebugError from a generic error, attempting to preserve any existing structure
func FromError(err error) *DebugError {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de
	}
	return &DebugError{
		Code:    "UNKNOWN_ERROR",
		Message: err.Error(),
		Cause:   err,
	}
}

// CodeOf returns the code of the first DebugError in err's chain, or the
// empty code if there is none.
func CodeOf(err error) ErrorCode {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a DebugError with the given
// code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if de, ok := err.(*DebugError); ok && de.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
