// Package services contains application services composing the domain
// model with infrastructure ports.
package services

import (
	"context"
	"log/slog"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/audit"
	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// SnapshotFunc returns the active policy ruleset. Implementations swap
// the underlying snapshot atomically on configuration reload, so every
// call sees a complete ruleset, never a half-applied one.
type SnapshotFunc func() policy.Ruleset

// PolicyEngine resolves capability requests. Every call to Decide
// appends exactly one audit record before returning; a decision that
// cannot be recorded is a denial.
type PolicyEngine struct {
	snapshot SnapshotFunc
	grants   ports.GrantStore
	channel  ports.DecisionChannel
	ledger   ports.Ledger
	feedback ports.FeedbackStore
	logger   *slog.Logger
}

// NewPolicyEngine wires the engine. channel and feedback may be nil:
// without a channel prompt mode denies, without feedback denials are
// not fed back into scanning.
func NewPolicyEngine(
	snapshot SnapshotFunc,
	grants ports.GrantStore,
	channel ports.DecisionChannel,
	ledger ports.Ledger,
	feedback ports.FeedbackStore,
	logger *slog.Logger,
) *PolicyEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyEngine{
		snapshot: snapshot,
		grants:   grants,
		channel:  channel,
		ledger:   ledger,
		feedback: feedback,
		logger:   logger,
	}
}

// DecideRequest is one capability question plus its audit context.
type DecideRequest struct {
	Extension  values.ExtensionName
	Capability capabilities.Capability
	Tier       compat.Tier

	// Digest identifies the artifact for scan feedback on denials.
	Digest values.Digest

	// Path and Command are recorded on the audit record when present.
	Path    string
	Command string
	CallID  values.CallID
}

// Decide resolves the request to Allow or Deny. PromptPending never
// escapes: it is resolved here through the decision channel, with an
// unavailable channel resolving to Deny.
func (e *PolicyEngine) Decide(ctx context.Context, req DecideRequest) (policy.Decision, error) {
	ruleset := e.snapshot()

	decision := policy.Evaluate(ruleset, policy.Request{
		Extension:  req.Extension,
		Capability: req.Capability,
		Tier:       req.Tier,
	}, e.durableLookup(ctx))

	if decision.Pending() {
		decision = e.resolvePrompt(ctx, req, decision)
	}

	record := audit.NewRecord(req.Extension, req.Capability, decision).
		WithPath(req.Path).
		WithCommand(req.Command).
		WithCallID(req.CallID)

	if _, err := e.ledger.Append(ctx, record); err != nil {
		e.logger.ErrorContext(ctx, "audit append failed, denying",
			"extension", req.Extension.String(),
			"capability", req.Capability.String(),
			"error", err)
		return policy.Decision{
			Outcome: policy.OutcomeDeny,
			Reason:  policy.ReasonLedgerFailure,
			Tier:    req.Tier,
		}, &entities.LedgerError{Err: err}
	}

	if !decision.Allowed() {
		e.recordFeedback(ctx, req, decision)
	}
	return decision, nil
}

// Explain evaluates a hypothetical request without executing anything.
// No audit record is written: explain is a dry run, the ledger records
// actual attempts only.
func (e *PolicyEngine) Explain(ctx context.Context, ext values.ExtensionName, c capabilities.Capability, tier compat.Tier) policy.Decision {
	decision := policy.Evaluate(e.snapshot(), policy.Request{
		Extension:  ext,
		Capability: c,
		Tier:       tier,
	}, e.durableLookup(ctx))

	if decision.Pending() {
		decision.Detail = "would prompt the operator"
	}
	return decision
}

// Ruleset exposes the active snapshot for explain output.
func (e *PolicyEngine) Ruleset() policy.Ruleset {
	return e.snapshot()
}

// durableLookup adapts the grant store into the domain lookup shape.
// Store errors read as "no stored answer", which pushes the decision
// toward prompting and, failing that, denial.
func (e *PolicyEngine) durableLookup(ctx context.Context) policy.DurableLookup {
	if e.grants == nil {
		return nil
	}
	return func(ext values.ExtensionName, c capabilities.Capability) (bool, bool) {
		allowed, found, err := e.grants.Lookup(ctx, ext, c)
		if err != nil {
			e.logger.WarnContext(ctx, "durable grant lookup failed",
				"extension", ext.String(),
				"capability", c.String(),
				"error", err)
			return false, false
		}
		return allowed, found
	}
}

// resolvePrompt turns a pending decision into Allow or Deny via the
// decision channel.
func (e *PolicyEngine) resolvePrompt(ctx context.Context, req DecideRequest, pending policy.Decision) policy.Decision {
	if e.channel == nil || !e.channel.Available() {
		e.logger.WarnContext(ctx, "prompt channel unavailable, denying",
			"extension", req.Extension.String(),
			"capability", req.Capability.String())
		return policy.Decision{
			Outcome: policy.OutcomeDeny,
			Reason:  policy.ReasonPromptUnavailable,
			Tier:    pending.Tier,
		}
	}

	promptCtx := req.Path
	if promptCtx == "" {
		promptCtx = req.Command
	}
	answer, err := e.channel.Ask(ctx, ports.PromptRequest{
		Extension:  req.Extension,
		Capability: req.Capability,
		Risk:       req.Capability.RiskDescription(),
		Broad:      req.Capability.IsBroad(),
		Context:    promptCtx,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "prompt failed, denying",
			"extension", req.Extension.String(),
			"capability", req.Capability.String(),
			"error", err)
		return policy.Decision{
			Outcome: policy.OutcomeDeny,
			Reason:  policy.ReasonPromptUnavailable,
			Tier:    pending.Tier,
		}
	}

	if answer.Durable() {
		e.persistAnswer(ctx, req, answer)
	}

	if answer.Granted() {
		return policy.Decision{
			Outcome: policy.OutcomeAllow,
			Reason:  policy.ReasonPromptAllow,
			Tier:    pending.Tier,
		}
	}
	return policy.Decision{
		Outcome: policy.OutcomeDeny,
		Reason:  policy.ReasonPromptDeny,
		Tier:    pending.Tier,
	}
}

func (e *PolicyEngine) persistAnswer(ctx context.Context, req DecideRequest, answer ports.PromptAnswer) {
	if e.grants == nil {
		return
	}
	var err error
	if answer.Granted() {
		err = e.grants.SaveAllow(ctx, req.Extension, req.Capability)
	} else {
		err = e.grants.SaveDeny(ctx, req.Extension, req.Capability)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "failed to persist prompt answer",
			"extension", req.Extension.String(),
			"capability", req.Capability.String(),
			"error", err)
	}
}

// recordFeedback feeds behavioral denials back into future scans.
// Host-side failures and already-blocked extensions are excluded: they
// say nothing new about the extension's behavior.
func (e *PolicyEngine) recordFeedback(ctx context.Context, req DecideRequest, decision policy.Decision) {
	if e.feedback == nil || req.Digest.IsZero() {
		return
	}
	switch decision.Reason {
	case policy.ReasonLedgerFailure, policy.ReasonConfigInvalid, policy.ReasonTierBlocked, policy.ReasonPromptUnavailable:
		return
	}
	if err := e.feedback.RecordDenial(ctx, req.Digest, req.Capability); err != nil {
		e.logger.WarnContext(ctx, "failed to record denial feedback",
			"digest", req.Digest.Short(),
			"error", err)
	}
}
