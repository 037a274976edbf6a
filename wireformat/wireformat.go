// Package wireformat defines the JSON wire format structures exchanged
// between the host and guest extensions. These types are the ABI contract:
// they must remain stable and backward compatible across releases, which is
// why they live in their own module with no host-side dependencies.
package wireformat

import (
	"fmt"
	"time"
)

// CallContext is the JSON wire format for context propagation on a hostcall.
type CallContext struct {
	Deadline  *time.Time `json:"deadline,omitempty"`
	TimeoutMs int64      `json:"timeout_ms,omitempty"`
	CallID    string     `json:"call_id,omitempty"` // For log and audit correlation
	Cancelled bool       `json:"cancelled,omitempty"`
}

// ReadRequest asks the host to read a file confined to the extension root.
type ReadRequest struct {
	Context CallContext `json:"context"`
	Path    string      `json:"path"`
}

// ReadResponse carries file contents back to the guest.
type ReadResponse struct {
	Content   string       `json:"content,omitempty"` // Base64 encoded
	Truncated bool         `json:"truncated,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// WriteRequest asks the host to write a file confined to the extension root.
type WriteRequest struct {
	Context CallContext `json:"context"`
	Path    string      `json:"path"`
	Content string      `json:"content,omitempty"` // Base64 encoded
}

// WriteResponse acknowledges a write.
type WriteResponse struct {
	BytesWritten int          `json:"bytes_written,omitempty"`
	Error        *ErrorDetail `json:"error,omitempty"`
}

// ExecRequest asks the host to run an external command.
type ExecRequest struct {
	Context   CallContext `json:"context"`
	Command   string      `json:"command"`
	Args      []string    `json:"args,omitempty"`
	Dir       string      `json:"dir,omitempty"`
	TimeoutMs int64       `json:"timeout_ms,omitempty"`
}

// ExecResponse carries the outcome of an external command.
type ExecResponse struct {
	Stdout          string       `json:"stdout,omitempty"`
	Stderr          string       `json:"stderr,omitempty"`
	ExitCode        int          `json:"exit_code"`
	StdoutTruncated bool         `json:"stdout_truncated,omitempty"`
	StderrTruncated bool         `json:"stderr_truncated,omitempty"`
	TimedOut        bool         `json:"timed_out,omitempty"`
	DurationMs      int64        `json:"duration_ms,omitempty"`
	Error           *ErrorDetail `json:"error,omitempty"`
}

// HTTPRequest asks the host to perform an HTTP request on the guest's behalf.
type HTTPRequest struct {
	Context CallContext         `json:"context"`
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    string              `json:"body,omitempty"` // Base64 encoded
}

// HTTPResponse carries an HTTP response back to the guest.
type HTTPResponse struct {
	StatusCode    int                 `json:"status_code"`
	Headers       map[string][]string `json:"headers,omitempty"`
	Body          string              `json:"body,omitempty"` // Base64 encoded
	BodyTruncated bool                `json:"body_truncated,omitempty"`
	Error         *ErrorDetail        `json:"error,omitempty"`
}

// EnvRequest asks the host for a single environment variable.
type EnvRequest struct {
	Context CallContext `json:"context"`
	Name    string      `json:"name"`
}

// EnvResponse carries an environment variable value back to the guest.
// Found distinguishes an empty value from an unset variable.
type EnvResponse struct {
	Value string       `json:"value,omitempty"`
	Found bool         `json:"found,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// LogMessage is a one-way log line from guest to host.
type LogMessage struct {
	Context   CallContext `json:"context"`
	Level     string      `json:"level"` // "debug", "info", "warn", "error"
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
	Attrs     []LogAttr   `json:"attrs,omitempty"`
}

// LogAttr is a single structured logging attribute.
type LogAttr struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "bool", "float64", "time"
	Value string `json:"value"` // String representation of the value
}

// ErrorDetail provides structured error information, consistent across host and SDK.
// Error Types: "capability", "path", "timeout", "config", "validation", "network", "internal"
type ErrorDetail struct {
	Message string       `json:"message"`
	Type    string       `json:"type"`
	Code    string       `json:"code,omitempty"` // "CAPABILITY_DENIED", "PATH_ESCAPE", "ETIMEDOUT", ...
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`
}

// Error implements the error interface for ErrorDetail.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}
