package capabilities

import (
	"fmt"
	"strings"
)

// Pattern sets used for risk classification.
var broadPathPatterns = []string{
	"*",
	"/",
	"/*",
	"/etc/*",
	"/root/*",
	"/home/*",
	"~/*",
}

var dangerousShells = []string{
	"sh", "bash", "zsh", "fish", "dash", "ksh", "csh", "tcsh",
	"powershell", "pwsh", "cmd",
}

var dangerousInterpreters = []string{
	"python", "python3", "node", "nodejs", "ruby", "perl", "php",
	"deno", "bun",
}

var broadEnvPatterns = []string{
	"*",
	"AWS_*",
	"GITHUB_*",
	"GOOGLE_*",
	"AZURE_*",
	"*_TOKEN",
	"*_KEY",
	"*_SECRET",
	"*_PASSWORD",
}

// RiskLevel classifies how much damage a capability could do if abused.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

// String returns a human-readable risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Capability pairs an operation kind with an optional scope pattern.
// An empty pattern grants or requests the whole kind.
type Capability struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// ParseToken parses a declaration token of the form "kind" or "kind:pattern",
// e.g. "read:/workspace/*" or "exec".
func ParseToken(token string) (Capability, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Capability{}, fmt.Errorf("empty capability token")
	}
	kindPart, pattern, _ := strings.Cut(token, ":")
	kind, err := ParseKind(kindPart)
	if err != nil {
		return Capability{}, err
	}
	return Capability{Kind: kind, Pattern: pattern}, nil
}

// Equals checks if two capabilities are identical.
func (c Capability) Equals(other Capability) bool {
	return c.Kind == other.Kind && c.Pattern == other.Pattern
}

// String returns the token form of the capability.
func (c Capability) String() string {
	if c.Pattern == "" {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s:%s", c.Kind, c.Pattern)
}

// IsBroad reports whether the capability grants overly wide access for
// its kind. Broad capabilities are surfaced prominently in prompts and
// scan reports.
func (c Capability) IsBroad() bool {
	switch c.Kind {
	case KindRead, KindWrite:
		return c.Pattern == "" || matchesAny(c.Pattern, broadPathPatterns)
	case KindExec:
		if c.Pattern == "" || c.Pattern == "*" {
			return true
		}
		return matchesInterpreter(c.Pattern, dangerousShells) ||
			matchesInterpreter(c.Pattern, dangerousInterpreters)
	case KindHTTP:
		return c.Pattern == "" || c.Pattern == "*"
	case KindEnv:
		return c.Pattern == "" || matchesAny(c.Pattern, broadEnvPatterns)
	default:
		return false
	}
}

// RiskLevel classifies the capability for prompt ordering and scan reports.
func (c Capability) RiskLevel() RiskLevel {
	switch c.Kind {
	case KindRead:
		if c.IsBroad() {
			return RiskHigh
		}
		return RiskLow
	case KindWrite:
		if c.IsBroad() {
			return RiskHigh
		}
		return RiskMedium
	case KindExec:
		if c.IsBroad() {
			return RiskHigh
		}
		return RiskMedium
	case KindHTTP:
		if c.IsBroad() {
			return RiskMedium
		}
		return RiskLow
	case KindEnv:
		if c.IsBroad() {
			return RiskHigh
		}
		return RiskLow
	default:
		return RiskLow
	}
}

// RiskDescription returns a short explanation of what granting this
// capability allows, suitable for interactive prompts.
func (c Capability) RiskDescription() string {
	switch c.Kind {
	case KindRead:
		if c.IsBroad() {
			return "read any file on the host, including configuration and credentials"
		}
		return fmt.Sprintf("read files matching %q", c.Pattern)
	case KindWrite:
		if c.IsBroad() {
			return "write or overwrite any file on the host"
		}
		return fmt.Sprintf("write files matching %q", c.Pattern)
	case KindExec:
		if c.Pattern == "" || c.Pattern == "*" {
			return "run arbitrary commands on the host"
		}
		if matchesInterpreter(c.Pattern, dangerousShells) {
			return fmt.Sprintf("run the %s shell, which can execute arbitrary commands", extractInterpreterName(c.Pattern))
		}
		if matchesInterpreter(c.Pattern, dangerousInterpreters) {
			return fmt.Sprintf("run the %s interpreter, which can execute arbitrary code", extractInterpreterName(c.Pattern))
		}
		return fmt.Sprintf("run the %q command", c.Pattern)
	case KindHTTP:
		if c.IsBroad() {
			return "make HTTP requests to any host"
		}
		return fmt.Sprintf("make HTTP requests to %q", c.Pattern)
	case KindEnv:
		if c.IsBroad() {
			return "read environment variables that may contain secrets"
		}
		return fmt.Sprintf("read the %q environment variable", c.Pattern)
	case KindLog:
		return "emit log messages through the host logger"
	default:
		return c.String()
	}
}

// matchesAny checks value against a pattern list supporting a trailing
// "*" prefix wildcard and a leading "*" suffix wildcard.
func matchesAny(value string, patterns []string) bool {
	for _, p := range patterns {
		if p == value || p == "*" {
			return true
		}
		if strings.HasSuffix(p, "*") && strings.HasPrefix(value, strings.TrimSuffix(p, "*")) {
			return true
		}
		if strings.HasPrefix(p, "*") && strings.HasSuffix(value, strings.TrimPrefix(p, "*")) {
			return true
		}
	}
	return false
}

// matchesInterpreter checks whether the command pattern names one of the
// listed interpreters, with or without a path prefix or version suffix.
func matchesInterpreter(pattern string, interpreters []string) bool {
	name := extractInterpreterName(pattern)
	for _, interp := range interpreters {
		if name == interp || isInterpreterVariant(name, interp) {
			return true
		}
	}
	return false
}

// extractInterpreterName strips any directory prefix from a command pattern.
func extractInterpreterName(pattern string) string {
	if idx := strings.LastIndex(pattern, "/"); idx >= 0 {
		return pattern[idx+1:]
	}
	return pattern
}

// isInterpreterVariant matches versioned names like "python3.12" against
// their base interpreter.
func isInterpreterVariant(name, interp string) bool {
	if !strings.HasPrefix(name, interp) {
		return false
	}
	rest := name[len(interp):]
	if rest == "" {
		return true
	}
	for _, r := range rest {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
