package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

func TestTerminalChannel_Available(t *testing.T) {
	// Not t.Parallel() because it inspects os.Stdin
	channel := NewTerminalChannel()
	assert.IsType(t, true, channel.Available())
}

func TestParseAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected ports.PromptAnswer
	}{
		{input: "y\n", expected: ports.AnswerAllowOnce},
		{input: "yes\n", expected: ports.AnswerAllowOnce},
		{input: "Y\n", expected: ports.AnswerAllowOnce},
		{input: "  yes  \n", expected: ports.AnswerAllowOnce},
		{input: "a\n", expected: ports.AnswerAllowAlways},
		{input: "always\n", expected: ports.AnswerAllowAlways},
		{input: "ALWAYS\n", expected: ports.AnswerAllowAlways},
		{input: "n\n", expected: ports.AnswerDenyOnce},
		{input: "no\n", expected: ports.AnswerDenyOnce},
		{input: "\n", expected: ports.AnswerDenyOnce},
		{input: "never\n", expected: ports.AnswerDenyAlways},
		{input: "Never\n", expected: ports.AnswerDenyAlways},
		{input: "whatever\n", expected: ports.AnswerDenyOnce},
		{input: "yess\n", expected: ports.AnswerDenyOnce},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAnswer(tt.input))
		})
	}
}

func TestParseAnswer_DurableAndGranted(t *testing.T) {
	t.Parallel()

	assert.True(t, ParseAnswer("a\n").Durable())
	assert.True(t, ParseAnswer("a\n").Granted())
	assert.True(t, ParseAnswer("never\n").Durable())
	assert.False(t, ParseAnswer("never\n").Granted())
	assert.False(t, ParseAnswer("y\n").Durable())
	assert.False(t, ParseAnswer("n\n").Granted())
}

func TestDescribeRequest(t *testing.T) {
	t.Parallel()

	execGit, err := capabilities.ParseToken("exec:git")
	require.NoError(t, err)
	readAll, err := capabilities.ParseToken("read:/**")
	require.NoError(t, err)

	tests := []struct {
		name     string
		req      ports.PromptRequest
		expected string
	}{
		{
			name: "plain capability",
			req: ports.PromptRequest{
				Extension:  values.MustNewExtensionName("hello"),
				Capability: execGit,
			},
			expected: "exec:git",
		},
		{
			name: "with request context",
			req: ports.PromptRequest{
				Extension:  values.MustNewExtensionName("hello"),
				Capability: execGit,
				Context:    "git status",
			},
			expected: "exec:git (git status)",
		},
		{
			name: "broad pattern flagged",
			req: ports.PromptRequest{
				Extension:  values.MustNewExtensionName("hello"),
				Capability: readAll,
				Broad:      true,
			},
			expected: "read:/** [broad pattern]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DescribeRequest(tt.req))
		})
	}
}
