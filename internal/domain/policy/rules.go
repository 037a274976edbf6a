package policy

import (
	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// Request is one capability question: may this extension, at this tier,
// perform this operation right now.
type Request struct {
	Extension  values.ExtensionName
	Capability capabilities.Capability
	Tier       compat.Tier
}

// Ruleset is an immutable snapshot of the active policy configuration.
// Concurrent evaluations share a snapshot; configuration reloads build a
// new one and swap it in atomically.
type Ruleset struct {
	Mode Mode
	// Degraded is set when the configuration could not be parsed into a
	// trustworthy ruleset. A degraded ruleset denies everything.
	Degraded bool
	// DefaultGrant applies to every extension, including ones with no
	// override block of their own.
	DefaultGrant capabilities.Grant
	// GlobalDeny applies to every extension before mode resolution.
	GlobalDeny capabilities.Grant
	// Grants holds per-extension grants keyed by extension name.
	Grants map[string]capabilities.Grant
	// Denies holds per-extension denies keyed by extension name.
	Denies map[string]capabilities.Grant
}

// GrantsFor returns the effective grant set for an extension: the
// default grants plus its own block.
func (rs Ruleset) GrantsFor(ext values.ExtensionName) capabilities.Grant {
	per := rs.Grants[ext.String()]
	if len(rs.DefaultGrant) == 0 {
		return per
	}
	if len(per) == 0 {
		return rs.DefaultGrant
	}
	merged := make(capabilities.Grant, 0, len(rs.DefaultGrant)+len(per))
	merged = append(merged, rs.DefaultGrant...)
	merged = append(merged, per...)
	return merged
}

// DeniesFor returns the deny set for an extension.
func (rs Ruleset) DeniesFor(ext values.ExtensionName) capabilities.Grant {
	return rs.Denies[ext.String()]
}

// DurableLookup consults remembered prompt answers. found is false when
// no stored answer covers the request.
type DurableLookup func(ext values.ExtensionName, c capabilities.Capability) (allowed bool, found bool)

// Evaluate resolves a request against the ruleset. Rules apply in fixed
// order: tier block, degraded config, per-extension deny, global deny,
// then the mode's own resolution. The result may be PromptPending in
// prompt mode; the caller resolves that with an operator answer.
func Evaluate(rs Ruleset, req Request, durable DurableLookup) Decision {
	if req.Tier == compat.TierBlocked {
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  ReasonTierBlocked,
			Detail:  "extension is blocked by compatibility scan",
			Tier:    req.Tier,
		}
	}

	if rs.Degraded {
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  ReasonConfigInvalid,
			Detail:  "policy configuration invalid, failing closed",
			Tier:    req.Tier,
		}
	}

	if rs.DeniesFor(req.Extension).Covers(req.Capability) {
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  ReasonExtensionDeny,
			Tier:    req.Tier,
		}
	}

	if rs.GlobalDeny.Covers(req.Capability) {
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  ReasonGlobalDeny,
			Tier:    req.Tier,
		}
	}

	granted := rs.GrantsFor(req.Extension).Covers(req.Capability)

	switch rs.Mode {
	case ModeStrict:
		if granted {
			return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted, Tier: req.Tier}
		}
		return Decision{Outcome: OutcomeDeny, Reason: ReasonNoGrant, Tier: req.Tier}

	case ModePrompt:
		if granted {
			return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted, Tier: req.Tier}
		}
		if durable != nil {
			if allowed, found := durable(req.Extension, req.Capability); found {
				if allowed {
					return Decision{Outcome: OutcomeAllow, Reason: ReasonDurableGrant, Tier: req.Tier}
				}
				return Decision{Outcome: OutcomeDeny, Reason: ReasonDurableDeny, Tier: req.Tier}
			}
		}
		return Decision{Outcome: OutcomePromptPending, Tier: req.Tier}

	case ModePermissive:
		if granted {
			return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted, Tier: req.Tier}
		}
		return Decision{
			Outcome: OutcomeAllow,
			Reason:  ReasonPermissiveDefault,
			Warning: true,
			Tier:    req.Tier,
		}

	default:
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  ReasonConfigInvalid,
			Detail:  "unrecognized policy mode, failing closed",
			Tier:    req.Tier,
		}
	}
}

// Predict estimates how runtime requests of one capability kind would
// fare before any concrete pattern is known. Only a kind-wide deny
// counts as a deny here, and any grant of the kind counts as granted
// even when its patterns are narrower than the requests may turn out to
// be. Scan preflight uses this to flag extensions whose imports the
// active policy can never satisfy.
func Predict(rs Ruleset, ext values.ExtensionName, kind capabilities.Kind) Decision {
	if rs.Degraded {
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  ReasonConfigInvalid,
			Detail:  "policy configuration invalid, failing closed",
		}
	}

	probe := capabilities.Capability{Kind: kind}
	if rs.DeniesFor(ext).Covers(probe) {
		return Decision{Outcome: OutcomeDeny, Reason: ReasonExtensionDeny}
	}
	if rs.GlobalDeny.Covers(probe) {
		return Decision{Outcome: OutcomeDeny, Reason: ReasonGlobalDeny}
	}

	granted := rs.GrantsFor(ext).CoversKind(kind)

	switch rs.Mode {
	case ModeStrict:
		if granted {
			return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted}
		}
		return Decision{Outcome: OutcomeDeny, Reason: ReasonNoGrant}

	case ModePrompt:
		if granted {
			return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted}
		}
		return Decision{Outcome: OutcomePromptPending}

	case ModePermissive:
		if granted {
			return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted}
		}
		return Decision{Outcome: OutcomeAllow, Reason: ReasonPermissiveDefault, Warning: true}

	default:
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  ReasonConfigInvalid,
			Detail:  "unrecognized policy mode, failing closed",
		}
	}
}
