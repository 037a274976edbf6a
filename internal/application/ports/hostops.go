package ports

import (
	"context"
	"time"
)

// ExecSpec describes one process execution request. Env is the complete
// environment for the child; the host's own environment never leaks in.
type ExecSpec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// ExecResult carries the outcome of a completed or terminated process.
type ExecResult struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	StdoutTruncated bool
	StderrTruncated bool
	TimedOut        bool
	Duration        time.Duration
}

// HTTPSpec describes one outbound HTTP request.
type HTTPSpec struct {
	Method  string
	URL     string
	Headers map[string][]string
	Body    []byte
	Timeout time.Duration
}

// HTTPResult carries a completed HTTP response.
type HTTPResult struct {
	StatusCode    int
	Headers       map[string][]string
	Body          []byte
	BodyTruncated bool
}

// FileReader reads files. Paths must already be confinement-checked;
// implementations open exactly the path given.
type FileReader interface {
	// ReadFile returns at most limit bytes, reporting truncation.
	// A limit of zero means the implementation's default cap.
	ReadFile(ctx context.Context, path string, limit int64) (data []byte, truncated bool, err error)
}

// FileWriter writes files, creating parent directories as needed.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, data []byte) (written int, err error)
}

// CommandRunner executes host processes with bounded output. A timeout
// kills the process; the partial result is still returned with
// TimedOut set.
type CommandRunner interface {
	Run(ctx context.Context, spec ExecSpec) (ExecResult, error)
}

// HTTPFetcher performs outbound HTTP requests with bounded response
// bodies.
type HTTPFetcher interface {
	Fetch(ctx context.Context, spec HTTPSpec) (HTTPResult, error)
}

// EnvReader reads host environment variables.
type EnvReader interface {
	Getenv(name string) (value string, ok bool)
}

// HostOperations bundles every capability-gated operation the
// dispatcher can execute after policy allows it.
type HostOperations interface {
	FileReader
	FileWriter
	CommandRunner
	HTTPFetcher
	EnvReader
}
