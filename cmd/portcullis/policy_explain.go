package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/config"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/container"
)

func newPolicyExplainCmd() *cobra.Command {
	var (
		capToken   string
		tierToken  string
		policyPath string
	)

	cmd := &cobra.Command{
		Use:   "explain <extension>",
		Short: "Show how the policy would decide one capability request",
		Long: `Explain runs the policy rule table against a hypothetical request and
prints which rule fires. Nothing is executed, no prompt is raised, and
no audit record is written. Prompt-mode requests that would wait on the
operator are reported as such.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return explainPolicy(os.Stdout, args[0], capToken, tierToken, policyPath)
		},
	}

	cmd.Flags().StringVar(&capToken, "capability", "", `capability to test, e.g. "read:./data/**" or "exec:git"`)
	cmd.Flags().StringVar(&tierToken, "tier", "compatible", "assumed compatibility tier: compatible, warning, blocked")
	cmd.Flags().StringVar(&policyPath, "policy", "", "capability policy file (default ~/.portcullis/policy.yaml)")
	_ = cmd.MarkFlagRequired("capability")

	return cmd
}

func explainPolicy(w io.Writer, extToken, capToken, tierToken, policyPath string) error {
	ext, err := values.NewExtensionName(extToken)
	if err != nil {
		return err
	}
	capability, err := capabilities.ParseToken(capToken)
	if err != nil {
		return err
	}
	tier, err := compat.ParseTier(tierToken)
	if err != nil {
		return err
	}

	if policyPath == "" {
		policyPath = container.DefaultPolicyPath()
	}
	cfg, err := config.NewLoader(slog.Default()).Load(policyPath)
	if err != nil {
		return fmt.Errorf("loading policy: %w", err)
	}
	rules := cfg.Ruleset

	decision := policy.Evaluate(rules, policy.Request{
		Extension:  ext,
		Capability: capability,
		Tier:       tier,
	}, nil)

	fmt.Fprintf(w, "policy: %s (mode %s)\n", policyPath, rules.Mode)
	fmt.Fprintf(w, "request: extension %s, capability %s, tier %s\n", ext, capToken, tier)
	fmt.Fprintf(w, "outcome: %s\n", outcomeWord(decision))
	if decision.Reason != "" {
		fmt.Fprintf(w, "rule: %s\n", decision.Reason)
	}
	fmt.Fprintf(w, "explanation: %s\n", reasonExplanation(decision.Reason))
	if decision.Detail != "" {
		fmt.Fprintf(w, "detail: %s\n", decision.Detail)
	}
	if decision.Warning {
		fmt.Fprintln(w, "warning: the request succeeds without an explicit grant")
	}
	return nil
}

// outcomeWord renders the decision for operators. Prompt-pending never
// reaches extensions at runtime, but a dry run surfaces it directly.
func outcomeWord(d policy.Decision) string {
	if d.Pending() {
		return "would prompt the operator"
	}
	return d.Outcome.String()
}

// reasonExplanation expands a decision reason token into a sentence.
// The empty reason belongs to prompt-pending decisions.
func reasonExplanation(r policy.Reason) string {
	switch r {
	case policy.ReasonExtensionDeny:
		return "a deny rule in this extension's policy block matches the capability"
	case policy.ReasonGlobalDeny:
		return "the global deny list matches the capability for every extension"
	case policy.ReasonGranted:
		return "an explicit grant covers the capability"
	case policy.ReasonNoGrant:
		return "strict mode denies capabilities no grant covers"
	case policy.ReasonDurableGrant:
		return "a remembered always-allow answer covers the capability"
	case policy.ReasonDurableDeny:
		return "a remembered never-allow answer covers the capability"
	case policy.ReasonPromptAllow:
		return "the operator approved the request when prompted"
	case policy.ReasonPromptDeny:
		return "the operator refused the request when prompted"
	case policy.ReasonPromptUnavailable:
		return "prompt mode had no interactive channel to ask on, so the request was denied"
	case policy.ReasonPermissiveDefault:
		return "permissive mode allows ungranted capabilities and flags them with a warning"
	case policy.ReasonTierBlocked:
		return "the compatibility tier blocks the extension from running at all"
	case policy.ReasonConfigInvalid:
		return "the policy file could not be trusted, so everything is denied"
	case policy.ReasonPathEscape:
		return "the requested path resolves outside the extension's workspace root"
	case policy.ReasonLedgerFailure:
		return "the decision could not be recorded in the audit ledger, so the request was denied"
	case "":
		return "no grant covers the capability; prompt mode would ask the operator and remember a durable answer"
	default:
		return string(r)
	}
}
