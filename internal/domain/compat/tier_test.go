package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseTier(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    Tier
		wantErr bool
	}{
		{"compatible", "compatible", TierCompatible, false},
		{"warning", "warning", TierWarning, false},
		{"blocked", "blocked", TierBlocked, false},
		{"unknown token", "trusted", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTier(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Tier_Downgrade(t *testing.T) {
	tests := []struct {
		name string
		tier Tier
		want Tier
	}{
		{"compatible to warning", TierCompatible, TierWarning},
		{"warning to blocked", TierWarning, TierBlocked},
		{"blocked stays blocked", TierBlocked, TierBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Downgrade())
		})
	}
}

func Test_Verdict_Tier(t *testing.T) {
	assert.Equal(t, TierCompatible, VerdictPass.Tier())
	assert.Equal(t, TierWarning, VerdictWarn.Tier())
	assert.Equal(t, TierBlocked, VerdictFail.Tier())
}

func Test_WorstVerdict(t *testing.T) {
	tests := []struct {
		name     string
		findings []Finding
		want     Verdict
	}{
		{
			name:     "no findings pass",
			findings: nil,
			want:     VerdictPass,
		},
		{
			name: "flagged pattern warns",
			findings: []Finding{
				{Class: ClassFlaggedPattern, Rule: "dynamic-eval", Verdict: VerdictWarn},
			},
			want: VerdictWarn,
		},
		{
			name: "forbidden pattern fails over warnings",
			findings: []Finding{
				{Class: ClassFlaggedPattern, Rule: "dynamic-eval", Verdict: VerdictWarn},
				{Class: ClassForbiddenPattern, Rule: "native-module", Verdict: VerdictFail},
			},
			want: VerdictFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WorstVerdict(tt.findings))
		})
	}
}
