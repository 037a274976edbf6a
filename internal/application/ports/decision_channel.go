package ports

import (
	"context"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// PromptAnswer is an operator's response to a capability prompt.
type PromptAnswer int

const (
	// AnswerAllowOnce permits this request only.
	AnswerAllowOnce PromptAnswer = iota
	// AnswerAllowAlways permits and persists the grant.
	AnswerAllowAlways
	// AnswerDenyOnce refuses this request only.
	AnswerDenyOnce
	// AnswerDenyAlways refuses and persists the denial.
	AnswerDenyAlways
)

// Granted reports whether the answer permits the request.
func (a PromptAnswer) Granted() bool {
	return a == AnswerAllowOnce || a == AnswerAllowAlways
}

// Durable reports whether the answer should be remembered.
func (a PromptAnswer) Durable() bool {
	return a == AnswerAllowAlways || a == AnswerDenyAlways
}

// PromptRequest carries everything a prompt surface needs to ask an
// informed question.
type PromptRequest struct {
	Extension  values.ExtensionName
	Capability capabilities.Capability
	// Risk describes what granting would allow, from the capability's
	// own risk description.
	Risk  string
	Broad bool
	// Context optionally names the specific path or command requested.
	Context string
}

// DecisionChannel is the interactive surface that resolves prompt-mode
// decisions. The policy engine owns the fallback: when no channel is
// available the decision is Deny, never a silent Allow.
type DecisionChannel interface {
	// Available reports whether an operator can actually be asked, for
	// example whether stdin is a terminal.
	Available() bool

	// Ask blocks until the operator answers or ctx is done.
	Ask(ctx context.Context, req PromptRequest) (PromptAnswer, error)
}
