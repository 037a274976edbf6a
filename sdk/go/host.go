package sdk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/portcullis-dev/portcullis/wireformat"
)

// Command describes an external command for Run. The host resolves the
// binary, applies its own output caps, and decides the call against the
// extension's exec capability.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// ExecResult is the outcome of Run. Output captured before a timeout or
// a nonzero exit is preserved.
type ExecResult struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	StdoutTruncated bool
	StderrTruncated bool
	TimedOut        bool
	Duration        time.Duration
}

// HTTPRequest describes an outbound HTTP request for Fetch.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string][]string
	Body    []byte
}

// HTTPResponse is the host's answer to Fetch. Body may be cut at the
// host's response cap; BodyTruncated reports when it was.
type HTTPResponse struct {
	StatusCode    int
	Headers       map[string][]string
	Body          []byte
	BodyTruncated bool
}

// ReadFile reads a file inside the extension's workspace view. The bool
// result reports host-side truncation at the read cap.
func ReadFile(ctx context.Context, path string) ([]byte, bool, error) {
	var resp wireformat.ReadResponse
	if err := hostcall(hostRead, wireformat.ReadRequest{Context: callContext(ctx), Path: path}, &resp); err != nil {
		return nil, false, err
	}
	if resp.Error != nil {
		return nil, false, resp.Error
	}
	data, err := base64.StdEncoding.DecodeString(resp.Content)
	if err != nil {
		return nil, false, fmt.Errorf("undecodable read response: %w", err)
	}
	return data, resp.Truncated, nil
}

// WriteFile writes a file inside the extension's workspace view and
// returns the byte count the host committed.
func WriteFile(ctx context.Context, path string, data []byte) (int, error) {
	req := wireformat.WriteRequest{
		Context: callContext(ctx),
		Path:    path,
		Content: base64.StdEncoding.EncodeToString(data),
	}
	var resp wireformat.WriteResponse
	if err := hostcall(hostWrite, req, &resp); err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, resp.Error
	}
	return resp.BytesWritten, nil
}

// Run executes an external command through the host. The result carries
// whatever output the host captured even when err is non-nil, so callers
// can surface stderr from failed commands.
func Run(ctx context.Context, cmd Command) (ExecResult, error) {
	req := wireformat.ExecRequest{
		Context:   callContext(ctx),
		Command:   cmd.Name,
		Args:      cmd.Args,
		Dir:       cmd.Dir,
		TimeoutMs: cmd.Timeout.Milliseconds(),
	}
	var resp wireformat.ExecResponse
	if err := hostcall(hostExec, req, &resp); err != nil {
		return ExecResult{}, err
	}
	result := ExecResult{
		Stdout:          resp.Stdout,
		Stderr:          resp.Stderr,
		ExitCode:        resp.ExitCode,
		StdoutTruncated: resp.StdoutTruncated,
		StderrTruncated: resp.StderrTruncated,
		TimedOut:        resp.TimedOut,
		Duration:        time.Duration(resp.DurationMs) * time.Millisecond,
	}
	if resp.Error != nil {
		return result, resp.Error
	}
	return result, nil
}

// Fetch performs an HTTP request through the host.
func Fetch(ctx context.Context, req HTTPRequest) (HTTPResponse, error) {
	wireReq := wireformat.HTTPRequest{
		Context: callContext(ctx),
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
	}
	if len(req.Body) > 0 {
		wireReq.Body = base64.StdEncoding.EncodeToString(req.Body)
	}
	var resp wireformat.HTTPResponse
	if err := hostcall(hostHTTP, wireReq, &resp); err != nil {
		return HTTPResponse{}, err
	}
	if resp.Error != nil {
		return HTTPResponse{}, resp.Error
	}
	body, err := base64.StdEncoding.DecodeString(resp.Body)
	if err != nil {
		return HTTPResponse{}, fmt.Errorf("undecodable response body: %w", err)
	}
	return HTTPResponse{
		StatusCode:    resp.StatusCode,
		Headers:       resp.Headers,
		Body:          body,
		BodyTruncated: resp.BodyTruncated,
	}, nil
}

// Getenv asks the host for one environment variable. Nothing is injected
// into the sandbox environment, so this call is the only way an extension
// sees host variables, and each lookup is policy-decided and audited. The
// bool result distinguishes an empty value from an unset variable.
func Getenv(ctx context.Context, name string) (string, bool, error) {
	var resp wireformat.EnvResponse
	if err := hostcall(hostEnv, wireformat.EnvRequest{Context: callContext(ctx), Name: name}, &resp); err != nil {
		return "", false, err
	}
	if resp.Error != nil {
		return "", false, resp.Error
	}
	return resp.Value, resp.Found, nil
}

// hostcall round-trips one JSON request through a packed ptr/len host
// import and decodes the response into response.
func hostcall(invoke func(uint64) uint64, request, response any) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal hostcall request: %w", err)
	}
	size := uint32(len(data))
	ptr := Allocate(size)
	if ptr == 0 {
		return errors.New("failed to allocate request buffer")
	}
	defer Deallocate(ptr, size)
	copyToMemory(ptr, data)

	packed := invoke(packPtrLen(ptr, size))
	if packed == 0 {
		return errors.New("host returned no response")
	}
	respPtr, respLen := unpackPtrLen(packed)
	payload := readFromMemory(respPtr, respLen)
	Deallocate(respPtr, respLen)
	if err := json.Unmarshal(payload, response); err != nil {
		return fmt.Errorf("undecodable hostcall response: %w", err)
	}
	return nil
}

// callContext captures ctx state for the wire so the host can honor
// deadlines and cancellation across the sandbox boundary.
func callContext(ctx context.Context) wireformat.CallContext {
	wire := wireformat.CallContext{CallID: CallID(ctx)}
	if deadline, ok := ctx.Deadline(); ok {
		wire.Deadline = &deadline
	}
	if ctx.Err() != nil {
		wire.Cancelled = true
	}
	return wire
}
