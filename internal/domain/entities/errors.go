package entities

import (
	"fmt"
	"time"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// PathEscapeError indicates a requested path resolved outside its
// confinement root after symlink resolution.
type PathEscapeError struct {
	Root      string
	Requested string
	Resolved  string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path escape denied: %q resolves outside root %q", e.Requested, e.Root)
}

// CapabilityDeniedError indicates policy refused a hostcall.
type CapabilityDeniedError struct {
	Extension  values.ExtensionName
	Capability capabilities.Capability
	Reason     policy.Reason
}

func (e *CapabilityDeniedError) Error() string {
	return fmt.Sprintf(
		"capability denied: %s may not %s (%s)",
		e.Extension.String(),
		e.Capability.String(),
		e.Reason,
	)
}

// PolicyConfigError indicates the policy configuration could not be
// parsed into a trustworthy ruleset. Decisions under such a
// configuration fail closed.
type PolicyConfigError struct {
	Field string
	Err   error
}

func (e *PolicyConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid policy configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid policy configuration: %s: %v", e.Field, e.Err)
}

func (e *PolicyConfigError) Unwrap() error { return e.Err }

// PromptUnavailableError indicates prompt mode needed an operator answer
// but no decision channel was attached. The decision resolves to Deny.
type PromptUnavailableError struct {
	Extension  values.ExtensionName
	Capability capabilities.Capability
}

func (e *PromptUnavailableError) Error() string {
	return fmt.Sprintf(
		"no prompt channel available to decide %s for %s, denying",
		e.Capability.String(),
		e.Extension.String(),
	)
}

// HostcallTimeoutError indicates an allowed operation exceeded its time
// budget and was terminated.
type HostcallTimeoutError struct {
	Extension values.ExtensionName
	Operation string
	Timeout   time.Duration
}

func (e *HostcallTimeoutError) Error() string {
	return fmt.Sprintf(
		"hostcall timeout: %s %s exceeded %s",
		e.Extension.String(),
		e.Operation,
		e.Timeout,
	)
}

// ManifestError indicates an extension manifest that cannot be loaded.
type ManifestError struct {
	Path  string
	Field string
	Err   error
}

func (e *ManifestError) Error() string {
	switch {
	case e.Path != "" && e.Field != "":
		return fmt.Sprintf("malformed manifest %s: %s: %v", e.Path, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("malformed manifest: %s: %v", e.Field, e.Err)
	case e.Path != "":
		return fmt.Sprintf("malformed manifest %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("malformed manifest: %v", e.Err)
	}
}

func (e *ManifestError) Unwrap() error { return e.Err }

// LedgerError indicates the audit ledger rejected a write. Decisions
// that cannot be recorded are treated as denied.
type LedgerError struct {
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("audit ledger write failed: %v", e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// IntegrityError indicates an artifact digest mismatch.
type IntegrityError struct {
	Expected values.Digest
	Actual   values.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf(
		"integrity check failed: expected %s, got %s",
		e.Expected.String(),
		e.Actual.String(),
	)
}
