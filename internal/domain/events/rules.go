// Package events defines the dispatch rules for delivering protocol
// events to registered handlers: which handler result wins and when
// delivery short-circuits.
package events

import (
	"encoding/json"
	"strings"
)

// Strategy determines how the results of a handler chain combine into
// one dispatch result.
type Strategy int

const (
	// StrategyLastResult runs every handler; the last non-empty result
	// wins. Earlier results are superseded, not merged.
	StrategyLastResult Strategy = iota
	// StrategyFirstResult stops at the first handler that returns a
	// non-empty result; remaining handlers are skipped.
	StrategyFirstResult
	// StrategyStopOnFlag inspects each non-empty result for a true
	// boolean flag. A set flag stops delivery immediately and that
	// result wins; otherwise last non-empty result wins.
	StrategyStopOnFlag
)

// String returns a human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyLastResult:
		return "last-result"
	case StrategyFirstResult:
		return "first-result"
	case StrategyStopOnFlag:
		return "stop-on-flag"
	default:
		return "last-result"
	}
}

// Rule binds an event-name pattern to a dispatch strategy. Patterns are
// exact names, trailing-"*" prefixes, or the universal "*".
type Rule struct {
	Pattern  string
	Strategy Strategy
	// FlagKeys names the boolean result fields StrategyStopOnFlag
	// inspects, checked in order.
	FlagKeys []string
}

// matches reports whether the rule's pattern covers the event name.
func (r Rule) matches(event string) bool {
	if r.Pattern == "*" || r.Pattern == event {
		return true
	}
	if strings.HasSuffix(r.Pattern, "*") {
		return strings.HasPrefix(event, strings.TrimSuffix(r.Pattern, "*"))
	}
	return false
}

// RuleTable resolves event names to dispatch rules. The table is
// ordered: the first matching rule wins, and events matching nothing
// fall back to StrategyLastResult. Tables are immutable; Extend returns
// a new table.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable builds a table from the given rules in priority order.
func NewRuleTable(rules ...Rule) RuleTable {
	return RuleTable{rules: rules}
}

// DefaultRuleTable returns the built-in event families.
//
// Command interception events want exactly one responder, so the first
// result short-circuits. Pre-execution tool events and destructive
// lifecycle steps (compaction, branch switches) let any handler veto
// via a block or cancel flag.
func DefaultRuleTable() RuleTable {
	return NewRuleTable(
		Rule{Pattern: "command.intercept*", Strategy: StrategyFirstResult},
		Rule{Pattern: "tool.pre*", Strategy: StrategyStopOnFlag, FlagKeys: []string{"block", "cancel"}},
		Rule{Pattern: "session.compact.pre", Strategy: StrategyStopOnFlag, FlagKeys: []string{"cancel"}},
		Rule{Pattern: "branch.switch.pre", Strategy: StrategyStopOnFlag, FlagKeys: []string{"cancel"}},
	)
}

// Extend returns a table with additional rules appended after the
// existing ones. Existing families keep priority.
func (t RuleTable) Extend(rules ...Rule) RuleTable {
	combined := make([]Rule, 0, len(t.rules)+len(rules))
	combined = append(combined, t.rules...)
	combined = append(combined, rules...)
	return RuleTable{rules: combined}
}

// RuleFor returns the dispatch rule for an event name.
func (t RuleTable) RuleFor(event string) Rule {
	for _, r := range t.rules {
		if r.matches(event) {
			return r
		}
	}
	return Rule{Pattern: "*", Strategy: StrategyLastResult}
}

// IsEmptyResult reports whether a handler result counts as "no result"
// for dispatch purposes. JSON null is empty; any other value, including
// false and {}, is a result.
func IsEmptyResult(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// StopFlag reports whether a handler result sets any of the given
// boolean flags to true. Non-object results and non-boolean fields
// never stop delivery.
func StopFlag(raw json.RawMessage, keys []string) bool {
	if IsEmptyResult(raw) || len(keys) == 0 {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	for _, key := range keys {
		fieldRaw, ok := fields[key]
		if !ok {
			continue
		}
		var flag bool
		if err := json.Unmarshal(fieldRaw, &flag); err != nil {
			continue
		}
		if flag {
			return true
		}
	}
	return false
}
