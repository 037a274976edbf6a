package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-dev/portcullis/internal/domain/audit"
)

func queryRecords() []audit.Record {
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return []audit.Record{
		{Seq: 1, Timestamp: base, Extension: "hello", Capability: "read:/data.txt", Outcome: "allow", Reason: "granted", Tier: "compatible", Path: "/data.txt"},
		{Seq: 2, Timestamp: base.Add(time.Minute), Extension: "hello", Capability: "exec:rm", Outcome: "deny", Reason: "no-grant", Tier: "compatible", Command: "rm -rf /"},
		{Seq: 3, Timestamp: base.Add(2 * time.Minute), Extension: "linter", Capability: "exec:git", Outcome: "allow", Reason: "granted", Tier: "warning", Warning: true, Command: "git status"},
		{Seq: 4, Timestamp: base.Add(3 * time.Minute), Extension: "linter", Capability: "http:api.example.com", Outcome: "deny", Reason: "global-deny", Tier: "warning", Warning: true},
	}
}

func Test_CompileFilter_Matching(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantSeqs   []uint64
	}{
		{
			name:       "by outcome",
			expression: `outcome == "deny"`,
			wantSeqs:   []uint64{2, 4},
		},
		{
			name:       "denied exec calls",
			expression: `denied && capability startsWith "exec"`,
			wantSeqs:   []uint64{2},
		},
		{
			name:       "warnings from one extension",
			expression: `extension == "linter" && warning`,
			wantSeqs:   []uint64{3, 4},
		},
		{
			name:       "command substring",
			expression: `command contains "git"`,
			wantSeqs:   []uint64{3},
		},
		{
			name:       "sequence window",
			expression: `seq >= 2 && seq < 4`,
			wantSeqs:   []uint64{2, 3},
		},
		{
			name:       "nothing matches",
			expression: `extension == "ghost"`,
			wantSeqs:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := CompileFilter(tt.expression)
			require.NoError(t, err)

			matched, err := filter.Select(queryRecords())
			require.NoError(t, err)

			var seqs []uint64
			for _, record := range matched {
				seqs = append(seqs, record.Seq)
			}
			assert.Equal(t, tt.wantSeqs, seqs)
		})
	}
}

func Test_CompileFilter_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{name: "empty", expression: ""},
		{name: "syntax error", expression: `outcome == `},
		{name: "unknown field", expression: `verdict == "deny"`},
		{name: "not a boolean", expression: `seq + 1`},
		{name: "too long", expression: `outcome == "` + strings.Repeat("x", 2000) + `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileFilter(tt.expression)
			require.Error(t, err)
		})
	}
}

func Test_Filter_TimestampComparison(t *testing.T) {
	filter, err := CompileFilter(`ts < date("2026-02-01T12:02:00Z")`)
	require.NoError(t, err)

	matched, err := filter.Select(queryRecords())
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, uint64(1), matched[0].Seq)
	assert.Equal(t, uint64(2), matched[1].Seq)
}
