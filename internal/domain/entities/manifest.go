// Package entities contains domain entities for the portcullis domain
// model. These are pure domain types with NO infrastructure dependencies.
package entities

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// Manifest describes one extension artifact: its identity, what it
// declares it can do, and where its code lives inside the artifact.
//
// Invariants Enforced:
// - Name must be a valid extension name
// - Version and APIVersion must parse as semantic versions
// - Declared capability tokens must parse against the closed kind set
// - The entry module is required
//
// A manifest is immutable once loaded. Runtime state (tier, grants,
// instances) lives elsewhere; the manifest only says what the author
// shipped.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	APIVersion  string `yaml:"api_version" json:"api_version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Capabilities lists declared capability tokens such as
	// "read:/workspace/*" or "http:api.example.com". Declarations drive
	// scan mismatch findings and prompt content; they are not grants.
	Capabilities []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`

	Entry Entry `yaml:"entry" json:"entry"`

	// EventHooks lists event names the extension wants delivered.
	EventHooks []string `yaml:"event_hooks,omitempty" json:"event_hooks,omitempty"`
}

// Entry locates the runnable and scannable parts of an artifact,
// relative to the artifact root.
type Entry struct {
	// Module is the compiled wasm module to instantiate.
	Module string `yaml:"module" json:"module"`
	// Source is the directory holding the original script source that
	// the compatibility scanner inspects. Optional; an artifact without
	// source is scanned as unknown.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Validate enforces manifest invariants. A manifest that fails here is
// malformed and the extension must not load.
func (m *Manifest) Validate() error {
	if _, err := values.NewExtensionName(m.Name); err != nil {
		return &ManifestError{Field: "name", Err: err}
	}
	if m.Version == "" {
		return &ManifestError{Field: "version", Err: fmt.Errorf("version is required")}
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return &ManifestError{Field: "version", Err: fmt.Errorf("invalid version %q: %w", m.Version, err)}
	}
	if m.APIVersion == "" {
		return &ManifestError{Field: "api_version", Err: fmt.Errorf("api_version is required")}
	}
	if _, err := semver.NewVersion(m.APIVersion); err != nil {
		return &ManifestError{Field: "api_version", Err: fmt.Errorf("invalid api_version %q: %w", m.APIVersion, err)}
	}
	if _, err := capabilities.FromTokens(m.Capabilities); err != nil {
		return &ManifestError{Field: "capabilities", Err: err}
	}
	if m.Entry.Module == "" {
		return &ManifestError{Field: "entry.module", Err: fmt.Errorf("entry module is required")}
	}
	for i, hook := range m.EventHooks {
		if hook == "" {
			return &ManifestError{Field: "event_hooks", Err: fmt.Errorf("event hook %d is empty", i)}
		}
	}
	return nil
}

// ExtensionName returns the validated name. Call Validate first.
func (m *Manifest) ExtensionName() values.ExtensionName {
	name, err := values.NewExtensionName(m.Name)
	if err != nil {
		return values.ExtensionName{}
	}
	return name
}

// DeclaredCapabilities parses the declared tokens into a grant set.
// Call Validate first; afterwards parsing cannot fail.
func (m *Manifest) DeclaredCapabilities() capabilities.Grant {
	g, err := capabilities.FromTokens(m.Capabilities)
	if err != nil {
		return nil
	}
	return g
}

// DeclaresKind reports whether any declared capability has the kind.
func (m *Manifest) DeclaresKind(kind capabilities.Kind) bool {
	return m.DeclaredCapabilities().CoversKind(kind)
}

// HasEventHook reports whether the manifest declares the event hook.
func (m *Manifest) HasEventHook(event string) bool {
	for _, hook := range m.EventHooks {
		if hook == event {
			return true
		}
	}
	return false
}
