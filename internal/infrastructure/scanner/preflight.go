package scanner

import (
	"context"
	"fmt"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// Preflight classifies the artifact and additionally predicts how the
// active policy would treat its import-implied capabilities. A kind the
// policy denies outright fails preflight; one that would prompt the
// operator or ride a permissive default warns. The prediction works at
// kind granularity: a narrow deny such as a single command pattern does
// not fail the whole kind, and a narrow grant still counts as granted.
func (s *Scanner) Preflight(ctx context.Context, req ports.ScanRequest, rules policy.Ruleset) (compat.Report, error) {
	report, err := s.Classify(ctx, req)
	if err != nil {
		return compat.Report{}, err
	}

	var ext values.ExtensionName
	if req.Extension != "" {
		ext, err = values.NewExtensionName(req.Extension)
		if err != nil {
			return compat.Report{}, fmt.Errorf("preflight extension name: %w", err)
		}
	}

	findings := append([]compat.Finding(nil), report.Findings...)
	seen := make(map[capabilities.Kind]bool)
	for _, use := range report.Imports {
		for _, token := range use.Kinds {
			kind, err := capabilities.ParseKind(token)
			if err != nil || seen[kind] {
				continue
			}
			seen[kind] = true

			decision := policy.Predict(rules, ext, kind)

			switch {
			case decision.Outcome == policy.OutcomeDeny:
				findings = append(findings, compat.Finding{
					Class: compat.ClassCapabilityPolicy,
					Rule:  "policy-denied-capability",
					Message: fmt.Sprintf("implied %s capability is denied by the active policy (%s)",
						kind, decision.Reason),
					File:    use.File,
					Line:    use.Line,
					Verdict: compat.VerdictFail,
				})
			case decision.Outcome == policy.OutcomePromptPending:
				findings = append(findings, compat.Finding{
					Class: compat.ClassCapabilityPolicy,
					Rule:  "policy-prompt-capability",
					Message: fmt.Sprintf("implied %s capability will prompt the operator at runtime",
						kind),
					File:    use.File,
					Line:    use.Line,
					Verdict: compat.VerdictWarn,
				})
			case decision.Warning:
				findings = append(findings, compat.Finding{
					Class: compat.ClassCapabilityPolicy,
					Rule:  "policy-ungranted-capability",
					Message: fmt.Sprintf("implied %s capability runs only because permissive mode allows ungranted requests",
						kind),
					File:    use.File,
					Line:    use.Line,
					Verdict: compat.VerdictWarn,
				})
			}
		}
	}

	report.Findings = findings
	report.Verdict = compat.WorstVerdict(findings)
	// A runtime feedback downgrade already applied by Classify may sit
	// below what the findings alone justify; keep the worse of the two.
	if tier := report.Verdict.Tier(); tier > report.Tier {
		report.Tier = tier
	}
	return report, nil
}
