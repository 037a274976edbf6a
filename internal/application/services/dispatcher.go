package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/audit"
	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/domain/paths"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// Operation identifies one hostcall on the dispatch surface.
type Operation string

const (
	OpReadFile  Operation = "read_file"
	OpWriteFile Operation = "write_file"
	OpExec      Operation = "exec"
	OpHTTP      Operation = "http"
	OpEnvGet    Operation = "env_get"
	OpLog       Operation = "log"
)

// operationKinds maps each operation to the capability it requires.
// This mapping is the only source of the kind used in a decision: the
// caller's own label never participates, so a mislabeled request cannot
// ask for a weaker capability than the operation needs.
var operationKinds = map[Operation]capabilities.Kind{
	OpReadFile:  capabilities.KindRead,
	OpWriteFile: capabilities.KindWrite,
	OpExec:      capabilities.KindExec,
	OpHTTP:      capabilities.KindHTTP,
	OpEnvGet:    capabilities.KindEnv,
	OpLog:       capabilities.KindLog,
}

// ExtensionInfo is the dispatcher's view of the calling extension.
type ExtensionInfo struct {
	Name   values.ExtensionName
	Root   string
	Tier   compat.Tier
	Digest values.Digest
}

// Hostcall is one operation request from extension code.
type Hostcall struct {
	Operation Operation
	CallID    values.CallID

	// Path is the extension-supplied path for read and write.
	Path string
	// Data is the payload for write.
	Data []byte
	// ReadLimit caps read sizes; zero means the configured default.
	ReadLimit int64

	Exec ports.ExecSpec
	HTTP ports.HTTPSpec

	// EnvName is the variable name for env_get.
	EnvName string
}

// HostResult is the union of operation outputs.
type HostResult struct {
	// Path is the canonical path actually operated on.
	Path      string
	Data      []byte
	Truncated bool
	Written   int
	Exec      ports.ExecResult
	HTTP      ports.HTTPResult
	EnvValue  string
	EnvFound  bool
}

// DispatcherLimits bound the execution side of allowed operations.
type DispatcherLimits struct {
	DefaultReadLimit   int64
	DefaultExecTimeout time.Duration
	MaxExecTimeout     time.Duration
	HTTPTimeout        time.Duration
}

// DefaultDispatcherLimits returns the limits used when configuration
// does not override them.
func DefaultDispatcherLimits() DispatcherLimits {
	return DispatcherLimits{
		DefaultReadLimit:   8 * 1024 * 1024,
		DefaultExecTimeout: 30 * time.Second,
		MaxExecTimeout:     5 * time.Minute,
		HTTPTimeout:        30 * time.Second,
	}
}

// Dispatcher is the single mediation point between extension code and
// host capabilities. Every operation passes one confinement check and
// one policy decision, and leaves exactly one audit record, before the
// underlying operation may execute.
type Dispatcher struct {
	engine *PolicyEngine
	ops    ports.HostOperations
	ledger ports.Ledger
	limits DispatcherLimits
	logger *slog.Logger
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(engine *PolicyEngine, ops ports.HostOperations, ledger ports.Ledger, limits DispatcherLimits, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		engine: engine,
		ops:    ops,
		ledger: ledger,
		limits: limits,
		logger: logger,
	}
}

// Dispatch resolves and, when allowed, executes one hostcall.
func (d *Dispatcher) Dispatch(ctx context.Context, ext ExtensionInfo, call Hostcall) (HostResult, error) {
	kind, ok := operationKinds[call.Operation]
	if !ok {
		// A request that never names a real operation is a protocol
		// violation, not a capability attempt; nothing to audit.
		return HostResult{}, fmt.Errorf("unknown hostcall operation %q", call.Operation)
	}

	req := DecideRequest{
		Extension:  ext.Name,
		Capability: capabilities.Capability{Kind: kind},
		Tier:       ext.Tier,
		Digest:     ext.Digest,
		CallID:     call.CallID,
	}

	var canonical string
	switch call.Operation {
	case OpReadFile, OpWriteFile:
		resolved, visible, err := d.confine(ctx, ext, call, kind)
		if err != nil {
			return HostResult{}, err
		}
		canonical = resolved
		req.Capability.Pattern = visible
		req.Path = visible

	case OpExec:
		req.Capability.Pattern = call.Exec.Command
		req.Command = commandLine(call.Exec)

	case OpHTTP:
		host, err := requestHost(call.HTTP.URL)
		if err != nil {
			return HostResult{}, fmt.Errorf("invalid hostcall url: %w", err)
		}
		req.Capability.Pattern = host

	case OpEnvGet:
		req.Capability.Pattern = call.EnvName
	}

	decision, err := d.engine.Decide(ctx, req)
	if err != nil {
		return HostResult{}, &entities.CapabilityDeniedError{
			Extension:  ext.Name,
			Capability: req.Capability,
			Reason:     decision.Reason,
		}
	}
	if !decision.Allowed() {
		return HostResult{}, &entities.CapabilityDeniedError{
			Extension:  ext.Name,
			Capability: req.Capability,
			Reason:     decision.Reason,
		}
	}

	return d.execute(ctx, ext, call, canonical)
}

// confine runs the path through confinement, auditing escapes as
// denials. The policy engine is not consulted for an escaped path: the
// request is already dead, and the audit trail still gets its one
// record for the attempt.
func (d *Dispatcher) confine(ctx context.Context, ext ExtensionInfo, call Hostcall, kind capabilities.Kind) (canonical, visible string, err error) {
	canonical, err = paths.Confine(ext.Root, call.Path)
	if err == nil {
		visible, err = paths.View(ext.Root, canonical)
	}
	if err != nil {
		denial := policy.Decision{
			Outcome: policy.OutcomeDeny,
			Reason:  policy.ReasonPathEscape,
			Tier:    ext.Tier,
		}
		record := audit.NewRecord(ext.Name, capabilities.Capability{Kind: kind, Pattern: call.Path}, denial).
			WithPath(call.Path).
			WithCallID(call.CallID)
		if _, appendErr := d.ledger.Append(ctx, record); appendErr != nil {
			d.logger.ErrorContext(ctx, "failed to audit path escape",
				"extension", ext.Name.String(),
				"path", call.Path,
				"error", appendErr)
		}
		return "", "", err
	}
	return canonical, visible, nil
}

// execute runs the already-allowed operation.
func (d *Dispatcher) execute(ctx context.Context, ext ExtensionInfo, call Hostcall, canonical string) (HostResult, error) {
	switch call.Operation {
	case OpReadFile:
		limit := call.ReadLimit
		if limit <= 0 || limit > d.limits.DefaultReadLimit {
			limit = d.limits.DefaultReadLimit
		}
		data, truncated, err := d.ops.ReadFile(ctx, canonical, limit)
		if err != nil {
			return HostResult{}, fmt.Errorf("reading %s: %w", canonical, err)
		}
		return HostResult{Path: canonical, Data: data, Truncated: truncated}, nil

	case OpWriteFile:
		written, err := d.ops.WriteFile(ctx, canonical, call.Data)
		if err != nil {
			return HostResult{}, fmt.Errorf("writing %s: %w", canonical, err)
		}
		return HostResult{Path: canonical, Written: written}, nil

	case OpExec:
		spec := call.Exec
		spec.Timeout = d.execTimeout(spec.Timeout)
		result, err := d.ops.Run(ctx, spec)
		if err != nil {
			return HostResult{Exec: result}, fmt.Errorf("running %s: %w", spec.Command, err)
		}
		if result.TimedOut {
			// The decision record already exists; the timeout is a
			// disposition of an allowed call, reported to the caller.
			return HostResult{Exec: result}, &entities.HostcallTimeoutError{
				Extension: ext.Name,
				Operation: spec.Command,
				Timeout:   spec.Timeout,
			}
		}
		return HostResult{Exec: result}, nil

	case OpHTTP:
		spec := call.HTTP
		if spec.Timeout <= 0 || spec.Timeout > d.limits.HTTPTimeout {
			spec.Timeout = d.limits.HTTPTimeout
		}
		result, err := d.ops.Fetch(ctx, spec)
		if err != nil {
			return HostResult{HTTP: result}, fmt.Errorf("fetching %s: %w", spec.URL, err)
		}
		return HostResult{HTTP: result}, nil

	case OpEnvGet:
		value, found := d.ops.Getenv(call.EnvName)
		return HostResult{EnvValue: value, EnvFound: found}, nil

	case OpLog:
		// Log delivery happens at the protocol edge; dispatch only
		// decides whether the extension may emit at all.
		return HostResult{}, nil

	default:
		return HostResult{}, fmt.Errorf("unknown hostcall operation %q", call.Operation)
	}
}

func (d *Dispatcher) execTimeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return d.limits.DefaultExecTimeout
	}
	if requested > d.limits.MaxExecTimeout {
		return d.limits.MaxExecTimeout
	}
	return requested
}

// commandLine renders the full command for the audit record.
func commandLine(spec ports.ExecSpec) string {
	line := spec.Command
	for _, arg := range spec.Args {
		line += " " + arg
	}
	return line
}

// requestHost extracts the host[:port] pattern from a request URL.
func requestHost(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.Host, nil
}
