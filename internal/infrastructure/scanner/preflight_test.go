package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
)

// fsImportArtifact declares and uses the filesystem module, so the only
// findings left for preflight to add are policy predictions.
func fsImportArtifact(t *testing.T) ports.ScanRequest {
	t.Helper()
	dir := writeArtifact(t, map[string]string{
		"index.js": "import fs from \"fs\";\nexport default function() {}\n",
	})
	return ports.ScanRequest{
		Dir:       dir,
		Extension: "demo",
		Declared:  mustGrant(t, "read:/**", "write:/**"),
	}
}

func policyFindings(report compat.Report) []compat.Finding {
	var out []compat.Finding
	for _, f := range report.Findings {
		if f.Class == compat.ClassCapabilityPolicy {
			out = append(out, f)
		}
	}
	return out
}

func Test_Preflight_StrictModeDeniesImpliedKinds(t *testing.T) {
	t.Parallel()

	s := New(nil, nil, discardLogger())
	report, err := s.Preflight(context.Background(), fsImportArtifact(t), policy.Ruleset{Mode: policy.ModeStrict})
	require.NoError(t, err)

	assert.Equal(t, compat.VerdictFail, report.Verdict)
	assert.Equal(t, compat.TierBlocked, report.Tier)

	findings := policyFindings(report)
	require.Len(t, findings, 2, "fs implies read and write")
	for _, f := range findings {
		assert.Equal(t, "policy-denied-capability", f.Rule)
		assert.Contains(t, f.Message, "no-grant")
		assert.Equal(t, "index.js", f.File)
	}
	assert.Contains(t, findings[0].Message, "read")
	assert.Contains(t, findings[1].Message, "write")
}

func Test_Preflight_GrantedKindsProduceNoFindings(t *testing.T) {
	t.Parallel()

	rules := policy.Ruleset{
		Mode: policy.ModeStrict,
		Grants: map[string]capabilities.Grant{
			"demo": mustGrant(t, "read:/**", "write:/**"),
		},
	}

	s := New(nil, nil, discardLogger())
	report, err := s.Preflight(context.Background(), fsImportArtifact(t), rules)
	require.NoError(t, err)

	assert.Equal(t, compat.VerdictPass, report.Verdict)
	assert.Equal(t, compat.TierCompatible, report.Tier)
	assert.Empty(t, report.Findings)
}

func Test_Preflight_PromptModeWarns(t *testing.T) {
	t.Parallel()

	s := New(nil, nil, discardLogger())
	report, err := s.Preflight(context.Background(), fsImportArtifact(t), policy.Ruleset{Mode: policy.ModePrompt})
	require.NoError(t, err)

	assert.Equal(t, compat.VerdictWarn, report.Verdict)
	assert.Equal(t, compat.TierWarning, report.Tier)

	findings := policyFindings(report)
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, "policy-prompt-capability", f.Rule)
		assert.Contains(t, f.Message, "will prompt")
	}
}

func Test_Preflight_PermissiveModeWarns(t *testing.T) {
	t.Parallel()

	s := New(nil, nil, discardLogger())
	report, err := s.Preflight(context.Background(), fsImportArtifact(t), policy.Ruleset{Mode: policy.ModePermissive})
	require.NoError(t, err)

	assert.Equal(t, compat.VerdictWarn, report.Verdict)

	findings := policyFindings(report)
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, "policy-ungranted-capability", f.Rule)
		assert.Contains(t, f.Message, "permissive")
	}
}

func Test_Preflight_GlobalDenyFailsEvenWhenPermissive(t *testing.T) {
	t.Parallel()

	dir := writeArtifact(t, map[string]string{
		"index.js": "import https from \"https\";\nexport default function() {}\n",
	})
	req := ports.ScanRequest{Dir: dir, Extension: "demo", Declared: mustGrant(t, "http:*")}
	rules := policy.Ruleset{
		Mode:       policy.ModePermissive,
		GlobalDeny: mustGrant(t, "http:*"),
	}

	s := New(nil, nil, discardLogger())
	report, err := s.Preflight(context.Background(), req, rules)
	require.NoError(t, err)

	assert.Equal(t, compat.VerdictFail, report.Verdict)
	findings := policyFindings(report)
	require.Len(t, findings, 1)
	assert.Equal(t, "policy-denied-capability", findings[0].Rule)
	assert.Contains(t, findings[0].Message, "global-deny")
}

func Test_Preflight_NarrowDenyDoesNotFailTheKind(t *testing.T) {
	t.Parallel()

	dir := writeArtifact(t, map[string]string{
		"index.js": "import { execFile } from \"child_process\";\nexport default function() {}\n",
	})
	req := ports.ScanRequest{Dir: dir, Extension: "demo", Declared: mustGrant(t, "exec:*")}
	rules := policy.Ruleset{
		Mode:   policy.ModeStrict,
		Grants: map[string]capabilities.Grant{"demo": mustGrant(t, "exec:*")},
		Denies: map[string]capabilities.Grant{"demo": mustGrant(t, "exec:rm*")},
	}

	s := New(nil, nil, discardLogger())
	report, err := s.Preflight(context.Background(), req, rules)
	require.NoError(t, err)

	assert.Equal(t, compat.VerdictPass, report.Verdict)
	assert.Empty(t, report.Findings, "a deny scoped to one command does not condemn the kind")
}

func Test_Preflight_NarrowGrantStillCountsAsGranted(t *testing.T) {
	t.Parallel()

	rules := policy.Ruleset{
		Mode: policy.ModeStrict,
		Grants: map[string]capabilities.Grant{
			"demo": mustGrant(t, "read:/workspace/demo/*", "write:/workspace/demo/*"),
		},
	}

	s := New(nil, nil, discardLogger())
	report, err := s.Preflight(context.Background(), fsImportArtifact(t), rules)
	require.NoError(t, err)

	assert.Equal(t, compat.VerdictPass, report.Verdict,
		"a grant scoped to one directory satisfies the kind prediction")
	assert.Empty(t, report.Findings)
}

func Test_Preflight_RepeatedImportsYieldOneFindingPerKind(t *testing.T) {
	t.Parallel()

	dir := writeArtifact(t, map[string]string{
		"a.js": "import http from \"http\";\n",
		"b.js": "import https from \"https\";\nimport net from \"net\";\n",
	})
	req := ports.ScanRequest{Dir: dir, Extension: "demo", Declared: mustGrant(t, "http:*")}

	s := New(nil, nil, discardLogger())
	report, err := s.Preflight(context.Background(), req, policy.Ruleset{Mode: policy.ModePrompt})
	require.NoError(t, err)

	findings := policyFindings(report)
	require.Len(t, findings, 1, "three network imports collapse into one http prediction")
}

func Test_Preflight_InvalidExtensionName(t *testing.T) {
	t.Parallel()

	dir := writeArtifact(t, map[string]string{"index.js": "export default function() {}\n"})

	s := New(nil, nil, discardLogger())
	_, err := s.Preflight(context.Background(), ports.ScanRequest{Dir: dir, Extension: "Not Valid!"}, policy.Ruleset{Mode: policy.ModeStrict})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight extension name")
}

func Test_Preflight_KeepsFeedbackDowngrade(t *testing.T) {
	t.Parallel()

	s := New(nil, stubFeedback{downgrades: 2}, discardLogger())
	report, err := s.Preflight(context.Background(), fsImportArtifact(t), policy.Ruleset{Mode: policy.ModePrompt})
	require.NoError(t, err)

	assert.Equal(t, compat.VerdictWarn, report.Verdict, "findings alone only warn")
	assert.Equal(t, compat.TierBlocked, report.Tier, "the denial history keeps the artifact blocked")
}
