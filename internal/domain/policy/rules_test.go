package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

func extName(t *testing.T, name string) values.ExtensionName {
	t.Helper()
	n, err := values.NewExtensionName(name)
	if err != nil {
		t.Fatalf("invalid extension name %q: %v", name, err)
	}
	return n
}

func grantMap(name string, g capabilities.Grant) map[string]capabilities.Grant {
	return map[string]capabilities.Grant{name: g}
}

func Test_Evaluate_Strict(t *testing.T) {
	ext := "formatter"
	readWorkspace := capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/*"}

	tests := []struct {
		name        string
		ruleset     Ruleset
		request     capabilities.Capability
		wantOutcome Outcome
		wantReason  Reason
	}{
		{
			name: "granted capability allowed",
			ruleset: Ruleset{
				Mode:   ModeStrict,
				Grants: grantMap(ext, capabilities.NewGrant(readWorkspace)),
			},
			request:     capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/a.txt"},
			wantOutcome: OutcomeAllow,
			wantReason:  ReasonGranted,
		},
		{
			name: "ungranted kind denied",
			ruleset: Ruleset{
				Mode:   ModeStrict,
				Grants: grantMap(ext, capabilities.NewGrant(readWorkspace)),
			},
			request:     capabilities.Capability{Kind: capabilities.KindExec, Pattern: "git"},
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonNoGrant,
		},
		{
			name:        "no grants at all denied",
			ruleset:     Ruleset{Mode: ModeStrict},
			request:     capabilities.Capability{Kind: capabilities.KindLog},
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonNoGrant,
		},
		{
			name: "per-extension deny wins over grant",
			ruleset: Ruleset{
				Mode:   ModeStrict,
				Grants: grantMap(ext, capabilities.NewGrant(readWorkspace)),
				Denies: grantMap(ext, capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindRead})),
			},
			request:     capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/a.txt"},
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonExtensionDeny,
		},
		{
			name: "global deny wins over grant",
			ruleset: Ruleset{
				Mode:       ModeStrict,
				GlobalDeny: capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindExec}),
				Grants:     grantMap(ext, capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindExec, Pattern: "git"})),
			},
			request:     capabilities.Capability{Kind: capabilities.KindExec, Pattern: "git"},
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonGlobalDeny,
		},
		{
			name: "degraded config denies despite grants",
			ruleset: Ruleset{
				Mode:     ModePermissive,
				Degraded: true,
				Grants:   grantMap(ext, capabilities.NewGrant(readWorkspace)),
			},
			request:     capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/a.txt"},
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{
				Extension:  extName(t, ext),
				Capability: tt.request,
				Tier:       compat.TierCompatible,
			}
			got := Evaluate(tt.ruleset, req, nil)
			assert.Equal(t, tt.wantOutcome, got.Outcome)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func Test_Evaluate_Prompt(t *testing.T) {
	ext := extName(t, "uploader")
	httpCap := capabilities.Capability{Kind: capabilities.KindHTTP, Pattern: "api.example.com"}

	rs := Ruleset{
		Mode:   ModePrompt,
		Grants: grantMap("uploader", capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindLog})),
	}

	t.Run("config grant bypasses prompting", func(t *testing.T) {
		got := Evaluate(rs, Request{Extension: ext, Capability: capabilities.Capability{Kind: capabilities.KindLog}}, nil)
		assert.Equal(t, OutcomeAllow, got.Outcome)
		assert.Equal(t, ReasonGranted, got.Reason)
	})

	t.Run("durable allow answer", func(t *testing.T) {
		durable := func(values.ExtensionName, capabilities.Capability) (bool, bool) { return true, true }
		got := Evaluate(rs, Request{Extension: ext, Capability: httpCap}, durable)
		assert.Equal(t, OutcomeAllow, got.Outcome)
		assert.Equal(t, ReasonDurableGrant, got.Reason)
	})

	t.Run("durable deny answer", func(t *testing.T) {
		durable := func(values.ExtensionName, capabilities.Capability) (bool, bool) { return false, true }
		got := Evaluate(rs, Request{Extension: ext, Capability: httpCap}, durable)
		assert.Equal(t, OutcomeDeny, got.Outcome)
		assert.Equal(t, ReasonDurableDeny, got.Reason)
	})

	t.Run("no stored answer leaves prompt pending", func(t *testing.T) {
		durable := func(values.ExtensionName, capabilities.Capability) (bool, bool) { return false, false }
		got := Evaluate(rs, Request{Extension: ext, Capability: httpCap}, durable)
		assert.True(t, got.Pending())
	})

	t.Run("nil lookup leaves prompt pending", func(t *testing.T) {
		got := Evaluate(rs, Request{Extension: ext, Capability: httpCap}, nil)
		assert.True(t, got.Pending())
	})
}

func Test_Evaluate_Permissive(t *testing.T) {
	ext := extName(t, "linter")
	rs := Ruleset{
		Mode:   ModePermissive,
		Grants: grantMap("linter", capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/*"})),
		Denies: grantMap("linter", capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindExec})),
	}

	t.Run("granted allow carries no warning", func(t *testing.T) {
		got := Evaluate(rs, Request{Extension: ext, Capability: capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/a"}}, nil)
		assert.Equal(t, OutcomeAllow, got.Outcome)
		assert.False(t, got.Warning)
	})

	t.Run("ungranted allow is flagged", func(t *testing.T) {
		got := Evaluate(rs, Request{Extension: ext, Capability: capabilities.Capability{Kind: capabilities.KindHTTP, Pattern: "example.com"}}, nil)
		assert.Equal(t, OutcomeAllow, got.Outcome)
		assert.Equal(t, ReasonPermissiveDefault, got.Reason)
		assert.True(t, got.Warning)
	})

	t.Run("deny still wins", func(t *testing.T) {
		got := Evaluate(rs, Request{Extension: ext, Capability: capabilities.Capability{Kind: capabilities.KindExec, Pattern: "git"}}, nil)
		assert.Equal(t, OutcomeDeny, got.Outcome)
		assert.Equal(t, ReasonExtensionDeny, got.Reason)
	})
}

func Test_Evaluate_TierBlocked(t *testing.T) {
	ext := extName(t, "legacy-tool")
	rs := Ruleset{
		Mode:   ModePermissive,
		Grants: grantMap("legacy-tool", capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindRead})),
	}

	got := Evaluate(rs, Request{
		Extension:  ext,
		Capability: capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/a"},
		Tier:       compat.TierBlocked,
	}, nil)

	assert.Equal(t, OutcomeDeny, got.Outcome)
	assert.Equal(t, ReasonTierBlocked, got.Reason)
	assert.Equal(t, compat.TierBlocked, got.Tier)
}

func Test_Evaluate_DefaultGrantCoversUnlistedExtensions(t *testing.T) {
	rs := Ruleset{
		Mode:         ModeStrict,
		DefaultGrant: capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindLog}),
		Grants:       grantMap("listed", capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/*"})),
	}

	unlisted := Evaluate(rs, Request{
		Extension:  extName(t, "unlisted"),
		Capability: capabilities.Capability{Kind: capabilities.KindLog},
	}, nil)
	assert.Equal(t, OutcomeAllow, unlisted.Outcome, "default grants apply without an override block")

	listed := Evaluate(rs, Request{
		Extension:  extName(t, "listed"),
		Capability: capabilities.Capability{Kind: capabilities.KindLog},
	}, nil)
	assert.Equal(t, OutcomeAllow, listed.Outcome, "an override block adds to the defaults, not replaces them")

	denied := Evaluate(rs, Request{
		Extension:  extName(t, "unlisted"),
		Capability: capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/a"},
	}, nil)
	assert.Equal(t, OutcomeDeny, denied.Outcome, "another extension's block grants nothing here")
}

func Test_Evaluate_WarningTierDoesNotChangeOutcome(t *testing.T) {
	ext := extName(t, "scraper")
	rs := Ruleset{
		Mode:   ModeStrict,
		Grants: grantMap("scraper", capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindHTTP, Pattern: "example.com"})),
	}

	got := Evaluate(rs, Request{
		Extension:  ext,
		Capability: capabilities.Capability{Kind: capabilities.KindHTTP, Pattern: "example.com"},
		Tier:       compat.TierWarning,
	}, nil)

	assert.Equal(t, OutcomeAllow, got.Outcome)
	assert.Equal(t, compat.TierWarning, got.Tier, "tier is recorded on the decision")
}

func Test_Predict(t *testing.T) {
	ext := "importer"

	tests := []struct {
		name        string
		ruleset     Ruleset
		kind        capabilities.Kind
		wantOutcome Outcome
		wantReason  Reason
		wantWarning bool
	}{
		{
			name: "narrow grant counts as granted",
			ruleset: Ruleset{
				Mode:   ModeStrict,
				Grants: grantMap(ext, capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/*"})),
			},
			kind:        capabilities.KindRead,
			wantOutcome: OutcomeAllow,
			wantReason:  ReasonGranted,
		},
		{
			name: "ungranted kind denied in strict mode",
			ruleset: Ruleset{
				Mode:   ModeStrict,
				Grants: grantMap(ext, capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindRead, Pattern: "/workspace/*"})),
			},
			kind:        capabilities.KindExec,
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonNoGrant,
		},
		{
			name: "narrow deny does not condemn the kind",
			ruleset: Ruleset{
				Mode:   ModeStrict,
				Grants: grantMap(ext, capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindExec, Pattern: "git*"})),
				Denies: grantMap(ext, capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindExec, Pattern: "rm*"})),
			},
			kind:        capabilities.KindExec,
			wantOutcome: OutcomeAllow,
			wantReason:  ReasonGranted,
		},
		{
			name: "kind-wide extension deny condemns it",
			ruleset: Ruleset{
				Mode:   ModePermissive,
				Denies: grantMap(ext, capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindExec})),
			},
			kind:        capabilities.KindExec,
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonExtensionDeny,
		},
		{
			name: "kind-wide global deny condemns it",
			ruleset: Ruleset{
				Mode:       ModePermissive,
				GlobalDeny: capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindHTTP}),
			},
			kind:        capabilities.KindHTTP,
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonGlobalDeny,
		},
		{
			name: "permissive without grant warns",
			ruleset: Ruleset{
				Mode: ModePermissive,
			},
			kind:        capabilities.KindHTTP,
			wantOutcome: OutcomeAllow,
			wantReason:  ReasonPermissiveDefault,
			wantWarning: true,
		},
		{
			name: "degraded config fails closed",
			ruleset: Ruleset{
				Mode:     ModePermissive,
				Degraded: true,
				Grants:   grantMap(ext, capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindRead})),
			},
			kind:        capabilities.KindRead,
			wantOutcome: OutcomeDeny,
			wantReason:  ReasonConfigInvalid,
		},
		{
			name: "default grant covers unlisted extensions",
			ruleset: Ruleset{
				Mode:         ModeStrict,
				DefaultGrant: capabilities.NewGrant(capabilities.Capability{Kind: capabilities.KindLog}),
			},
			kind:        capabilities.KindLog,
			wantOutcome: OutcomeAllow,
			wantReason:  ReasonGranted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Predict(tt.ruleset, extName(t, ext), tt.kind)
			assert.Equal(t, tt.wantOutcome, got.Outcome)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.Equal(t, tt.wantWarning, got.Warning)
		})
	}

	t.Run("prompt mode without grant leaves prompt pending", func(t *testing.T) {
		got := Predict(Ruleset{Mode: ModePrompt}, extName(t, ext), capabilities.KindHTTP)
		assert.True(t, got.Pending())
	})
}

func Test_ParseMode(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    Mode
		wantErr bool
	}{
		{"strict", "strict", ModeStrict, false},
		{"prompt", "prompt", ModePrompt, false},
		{"permissive", "permissive", ModePermissive, false},
		{"unknown falls back to strict", "paranoid", ModeStrict, true},
		{"empty", "", ModeStrict, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
