package capabilities

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
)

// TerminalChannel resolves prompt-mode decisions on the controlling
// terminal. Prompts go to stderr so stdout stays clean for command
// output.
type TerminalChannel struct{}

// NewTerminalChannel creates a new TerminalChannel.
func NewTerminalChannel() *TerminalChannel {
	return &TerminalChannel{}
}

// Available reports whether stdin is a terminal an operator can
// actually answer on.
func (c *TerminalChannel) Available() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Ask prints the request and blocks on one line of input. The read
// itself cannot be interrupted by ctx; callers gate on Available
// before asking.
func (c *TerminalChannel) Ask(ctx context.Context, req ports.PromptRequest) (ports.PromptAnswer, error) {
	if err := ctx.Err(); err != nil {
		return ports.AnswerDenyOnce, err
	}

	fmt.Fprintf(os.Stderr, "\nExtension %q requests a capability:\n", req.Extension)
	fmt.Fprintf(os.Stderr, "  %s\n", DescribeRequest(req))
	if req.Risk != "" {
		fmt.Fprintf(os.Stderr, "  Risk: %s\n", req.Risk)
	}
	fmt.Fprintf(os.Stderr, "\nAllow this capability? [y/N/always/never]: ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		// EOF or a closed stdin counts as "no".
		return ports.AnswerDenyOnce, nil
	}
	return ParseAnswer(response), nil
}

// ParseAnswer maps one line of operator input onto a prompt answer.
// Anything unrecognized, including an empty line, denies once.
func ParseAnswer(response string) ports.PromptAnswer {
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return ports.AnswerAllowOnce
	case "a", "always":
		return ports.AnswerAllowAlways
	case "never":
		return ports.AnswerDenyAlways
	case "n", "no", "":
		return ports.AnswerDenyOnce
	default:
		return ports.AnswerDenyOnce
	}
}

// DescribeRequest renders the request line shown to the operator.
func DescribeRequest(req ports.PromptRequest) string {
	var b strings.Builder
	b.WriteString(req.Capability.String())
	if req.Context != "" {
		fmt.Fprintf(&b, " (%s)", req.Context)
	}
	if req.Broad {
		b.WriteString(" [broad pattern]")
	}
	return b.String()
}
