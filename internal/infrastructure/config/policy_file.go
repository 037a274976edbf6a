// Package config loads the policy file into immutable rulesets and
// keeps the active snapshot fresh. This package handles YAML parsing,
// file I/O, and hot reload; the decision logic itself lives in the
// domain.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

const (
	// DefaultMaxMemoryMB bounds one wasm instance when the policy file
	// does not set max_memory_mb.
	DefaultMaxMemoryMB = 512

	// DefaultEventBudget bounds one event emission when the policy file
	// does not set event_budget_ms.
	DefaultEventBudget = 30 * time.Second
)

// PolicyFile is the on-disk policy schema. Unknown fields are a load
// error, never silently ignored.
type PolicyFile struct {
	Mode          string                     `yaml:"mode"`
	MaxMemoryMB   int                        `yaml:"max_memory_mb,omitempty"`
	EventBudgetMS int                        `yaml:"event_budget_ms,omitempty"`
	DefaultCaps   []string                   `yaml:"default_caps,omitempty"`
	DenyCaps      []string                   `yaml:"deny_caps,omitempty"`
	Extensions    map[string]ExtensionPolicy `yaml:"extensions,omitempty"`
}

// ExtensionPolicy is one per-extension override block.
type ExtensionPolicy struct {
	Grant []string `yaml:"grant"`
	Deny  []string `yaml:"deny"`
}

// HostConfig is the compiled configuration: the policy ruleset plus the
// load-time host limits that do not participate in hot reload.
type HostConfig struct {
	Ruleset     policy.Ruleset
	MaxMemoryMB int
	EventBudget time.Duration
}

// Compile turns the parsed file into an immutable ruleset. Token and
// name errors reject the whole file; an unrecognized mode degrades to
// strict with zero grants, exactly as if no policy were configured.
func (f PolicyFile) Compile(logger *slog.Logger) (HostConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := HostConfig{
		MaxMemoryMB: f.MaxMemoryMB,
		EventBudget: time.Duration(f.EventBudgetMS) * time.Millisecond,
	}
	if f.MaxMemoryMB < 0 {
		return HostConfig{}, &entities.PolicyConfigError{
			Field: "max_memory_mb",
			Err:   fmt.Errorf("must not be negative, got %d", f.MaxMemoryMB),
		}
	}
	if cfg.MaxMemoryMB == 0 {
		cfg.MaxMemoryMB = DefaultMaxMemoryMB
	}
	if f.EventBudgetMS < 0 {
		return HostConfig{}, &entities.PolicyConfigError{
			Field: "event_budget_ms",
			Err:   fmt.Errorf("must not be negative, got %d", f.EventBudgetMS),
		}
	}
	if cfg.EventBudget == 0 {
		cfg.EventBudget = DefaultEventBudget
	}

	if f.Mode == "" {
		cfg.Ruleset = policy.Ruleset{Mode: policy.ModeStrict}
	} else {
		mode, err := policy.ParseMode(f.Mode)
		if err != nil {
			logger.Warn("unrecognized policy mode, treating as strict with zero grants", "mode", f.Mode)
			cfg.Ruleset = policy.Ruleset{Mode: policy.ModeStrict}
			return cfg, nil
		}
		cfg.Ruleset = policy.Ruleset{Mode: mode}
	}

	defaultGrant, err := capabilities.FromTokens(f.DefaultCaps)
	if err != nil {
		return HostConfig{}, &entities.PolicyConfigError{Field: "default_caps", Err: err}
	}
	globalDeny, err := capabilities.FromTokens(f.DenyCaps)
	if err != nil {
		return HostConfig{}, &entities.PolicyConfigError{Field: "deny_caps", Err: err}
	}
	cfg.Ruleset.DefaultGrant = defaultGrant
	cfg.Ruleset.GlobalDeny = globalDeny

	if len(f.Extensions) > 0 {
		cfg.Ruleset.Grants = make(map[string]capabilities.Grant, len(f.Extensions))
		cfg.Ruleset.Denies = make(map[string]capabilities.Grant, len(f.Extensions))
	}
	for name, block := range f.Extensions {
		if _, err := values.NewExtensionName(name); err != nil {
			return HostConfig{}, &entities.PolicyConfigError{
				Field: "extensions",
				Err:   fmt.Errorf("invalid extension name %q: %w", name, err),
			}
		}
		grant, err := capabilities.FromTokens(block.Grant)
		if err != nil {
			return HostConfig{}, &entities.PolicyConfigError{
				Field: fmt.Sprintf("extensions.%s.grant", name),
				Err:   err,
			}
		}
		deny, err := capabilities.FromTokens(block.Deny)
		if err != nil {
			return HostConfig{}, &entities.PolicyConfigError{
				Field: fmt.Sprintf("extensions.%s.deny", name),
				Err:   err,
			}
		}
		if len(grant) > 0 {
			cfg.Ruleset.Grants[name] = grant
		}
		if len(deny) > 0 {
			cfg.Ruleset.Denies[name] = deny
		}
	}
	return cfg, nil
}
