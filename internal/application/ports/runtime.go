package ports

import (
	"context"
	"encoding/json"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// ToolSpec is one tool an extension offers to the host.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// SlashSpec is one user-invocable command an extension offers.
type SlashSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Announcement is the decoded register response from a guest: its
// identity plus every surface it serves. The wire payload is schema
// validated before it becomes an Announcement.
type Announcement struct {
	Name          string
	Version       string
	APIVersion    string
	Capabilities  []string
	Tools         []ToolSpec
	SlashCommands []SlashSpec
	EventHooks    []string
}

// InstanceSpec carries everything the runtime needs to start one
// extension instance. Workspace is the confinement root for every path
// the instance will ever touch; Tier and Digest ride along into
// hostcall decisions.
type InstanceSpec struct {
	Manifest entities.Manifest
	// Root is the artifact directory the module was unpacked into.
	Root string
	// Workspace confines the instance's file operations.
	Workspace string
	// ModulePath is the absolute path of the compiled module.
	ModulePath string
	Tier       compat.Tier
	Digest     values.Digest
}

// Instance is one running extension. Implementations serialize guest
// calls: no two calls into the same instance overlap, while distinct
// instances run concurrently.
type Instance interface {
	// Register invokes the guest's register export and returns its
	// announcement.
	Register(ctx context.Context) (Announcement, error)

	// CallTool invokes a registered tool and returns its result.
	CallTool(ctx context.Context, tool string, input json.RawMessage, id values.CallID) (json.RawMessage, error)

	// RunSlash invokes a registered slash command.
	RunSlash(ctx context.Context, command string, args []string, id values.CallID) (json.RawMessage, error)

	// DeliverEvent delivers one event to the guest's hook and returns
	// the hook's result, empty when the hook passed.
	DeliverEvent(ctx context.Context, event string, payload json.RawMessage) (json.RawMessage, error)

	// Close releases the instance. Safe to call more than once.
	Close(ctx context.Context) error
}

// Runtime instantiates extension artifacts into running instances.
type Runtime interface {
	Instantiate(ctx context.Context, spec InstanceSpec) (Instance, error)
}
