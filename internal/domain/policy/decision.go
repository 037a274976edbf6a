package policy

import (
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

// Outcome is the result of evaluating a capability request.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeDeny
	// OutcomePromptPending means prompt mode needs an operator answer
	// before the outcome is known. It never escapes the policy engine:
	// the engine resolves it to Allow or Deny before returning.
	OutcomePromptPending
)

// String returns the ledger token for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeDeny:
		return "deny"
	case OutcomePromptPending:
		return "prompt-pending"
	default:
		return "deny"
	}
}

// Reason identifies which rule produced a decision. Reasons are stable
// tokens: they appear in the audit ledger and in policy explain output.
type Reason string

const (
	// ReasonExtensionDeny: a per-extension deny matched the request.
	ReasonExtensionDeny Reason = "extension-deny"
	// ReasonGlobalDeny: the global deny set matched the request.
	ReasonGlobalDeny Reason = "global-deny"
	// ReasonGranted: an explicit configuration grant covered the request.
	ReasonGranted Reason = "granted"
	// ReasonNoGrant: strict mode and no grant covered the request.
	ReasonNoGrant Reason = "no-grant"
	// ReasonDurableGrant: a stored always-allow answer covered the request.
	ReasonDurableGrant Reason = "durable-grant"
	// ReasonDurableDeny: a stored never-allow answer covered the request.
	ReasonDurableDeny Reason = "durable-deny"
	// ReasonPromptAllow: the operator approved this request interactively.
	ReasonPromptAllow Reason = "prompt-allow"
	// ReasonPromptDeny: the operator refused this request interactively.
	ReasonPromptDeny Reason = "prompt-deny"
	// ReasonPromptUnavailable: prompt mode with no channel to ask on.
	ReasonPromptUnavailable Reason = "prompt-unavailable"
	// ReasonPermissiveDefault: permissive mode allowed an ungranted request.
	ReasonPermissiveDefault Reason = "permissive-default"
	// ReasonTierBlocked: the extension's compatibility tier forces denial.
	ReasonTierBlocked Reason = "tier-blocked"
	// ReasonConfigInvalid: the policy configuration could not be trusted.
	ReasonConfigInvalid Reason = "config-invalid"
	// ReasonPathEscape: a filesystem request resolved outside its root.
	ReasonPathEscape Reason = "path-escape"
	// ReasonLedgerFailure: the decision could not be recorded.
	ReasonLedgerFailure Reason = "ledger-failure"
)

// Decision is the evaluated result for one capability request.
type Decision struct {
	Outcome Outcome
	Reason  Reason
	// Detail optionally carries rule specifics for explain output, such
	// as the grant pattern that matched.
	Detail string
	// Warning marks allows that happened without an explicit grant.
	Warning bool
	// Tier records the extension's compatibility tier at decision time.
	Tier compat.Tier
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Pending reports whether an operator answer is still required.
func (d Decision) Pending() bool {
	return d.Outcome == OutcomePromptPending
}
