package audit

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/portcullis-dev/portcullis/internal/domain/audit"
)

const (
	// maxFilterLength caps filter source length to bound compile cost.
	maxFilterLength = 1000
	// maxFilterNodes caps the compiled AST size.
	maxFilterNodes = 100
)

// Filter is a compiled predicate over audit records. Expressions see
// one record at a time through named fields, for example:
//
//	outcome == "deny" && capability startsWith "exec"
//	extension == "hello" && warning
//	ts > date("2026-01-01")
type Filter struct {
	source  string
	program *vm.Program
}

// CompileFilter compiles an expression into a record predicate. The
// expression must evaluate to a boolean.
func CompileFilter(expression string) (*Filter, error) {
	if expression == "" {
		return nil, fmt.Errorf("audit filter must not be empty")
	}
	if len(expression) > maxFilterLength {
		return nil, fmt.Errorf("audit filter exceeds maximum length of %d characters", maxFilterLength)
	}

	program, err := expr.Compile(expression,
		expr.Env(filterEnv(audit.Record{})),
		expr.AsBool(),
		expr.MaxNodes(maxFilterNodes),
	)
	if err != nil {
		return nil, fmt.Errorf("compiling audit filter: %w", err)
	}
	return &Filter{source: expression, program: program}, nil
}

// Match evaluates the filter against one record.
func (f *Filter) Match(record audit.Record) (bool, error) {
	output, err := expr.Run(f.program, filterEnv(record))
	if err != nil {
		return false, fmt.Errorf("evaluating audit filter %q: %w", f.source, err)
	}
	matched, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("audit filter %q did not evaluate to a boolean", f.source)
	}
	return matched, nil
}

// Select returns the records the filter accepts, preserving order.
func (f *Filter) Select(records []audit.Record) ([]audit.Record, error) {
	var out []audit.Record
	for _, record := range records {
		matched, err := f.Match(record)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, record)
		}
	}
	return out, nil
}

// filterEnv exposes one record's fields to the expression VM.
func filterEnv(r audit.Record) map[string]interface{} {
	return map[string]interface{}{
		"seq":        int(r.Seq),
		"ts":         r.Timestamp,
		"extension":  r.Extension,
		"capability": r.Capability,
		"outcome":    r.Outcome,
		"reason":     r.Reason,
		"tier":       r.Tier,
		"warning":    r.Warning,
		"path":       r.Path,
		"command":    r.Command,
		"call_id":    r.CallID,
		"denied":     r.Denied(),
		"age":        time.Since(r.Timestamp),
	}
}
