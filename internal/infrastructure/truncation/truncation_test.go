package truncation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Bytes(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		max           int
		wantTruncated bool
	}{
		{name: "under the cap", input: "short", max: 100, wantTruncated: false},
		{name: "exactly at the cap", input: "12345", max: 5, wantTruncated: false},
		{name: "over the cap", input: strings.Repeat("x", 200), max: 64, wantTruncated: true},
		{name: "zero cap means unlimited", input: strings.Repeat("x", 200), max: 0, wantTruncated: false},
		{name: "negative cap means unlimited", input: strings.Repeat("x", 200), max: -1, wantTruncated: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Bytes(tt.input, tt.max)
			assert.Equal(t, tt.wantTruncated, truncated)
			if !tt.wantTruncated {
				assert.Equal(t, tt.input, got)
			}
		})
	}
}

func Test_Bytes_KeepsHeadAndTail(t *testing.T) {
	input := "HEAD" + strings.Repeat("m", 500) + "TAIL"
	got, truncated := Bytes(input, 64)

	assert.True(t, truncated)
	assert.True(t, strings.HasPrefix(got, "HEAD"))
	assert.True(t, strings.HasSuffix(got, "TAIL"))
	assert.Contains(t, got, "bytes truncated")
}

func Test_Lines(t *testing.T) {
	input := strings.Join([]string{"l1", "l2", "l3", "l4", "l5", "l6"}, "\n")

	got, truncated := Lines(input, 4)
	assert.True(t, truncated)
	assert.Contains(t, got, "l1")
	assert.Contains(t, got, "l2")
	assert.Contains(t, got, "l5")
	assert.Contains(t, got, "l6")
	assert.NotContains(t, got, "l3")
	assert.NotContains(t, got, "l4")
	assert.Contains(t, got, "2 lines truncated")

	got, truncated = Lines(input, 6)
	assert.False(t, truncated)
	assert.Equal(t, input, got)

	got, truncated = Lines(input, 0)
	assert.False(t, truncated)
	assert.Equal(t, input, got)
}

func Test_HeadTail_AppliesBothCaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString(strings.Repeat("a", 40))
		b.WriteString("\n")
	}

	got, truncated := HeadTail(b.String(), 256, 10)
	assert.True(t, truncated)
	assert.LessOrEqual(t, len(got), 256+64)
	assert.Contains(t, got, "truncated")
}
