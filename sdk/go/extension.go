// Package sdk implements the guest side of the extension protocol. An
// extension declares its tools, slash commands, and event hooks with the
// Extension builder, installs the result with Serve from an init function,
// and forwards the sandbox exports to the Handle and memory functions in
// this package. All host access goes through the typed wrappers in this
// package, which drive the portcullis_host imports; the sandbox itself has
// no filesystem, no network, and no environment.
//
// Extensions are compiled with:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o extension.wasm .
package sdk

import (
	"context"
	"encoding/json"

	"github.com/portcullis-dev/portcullis/wireformat"
)

// ToolResult is what a tool handler returns on success. Content is the
// human-readable outcome; Details carries optional structured data and is
// marshalled to JSON on the wire.
type ToolResult struct {
	Content string
	Details any
}

// ToolHandler runs a registered tool. Input is the raw JSON argument
// object from the host; DecodeInput unmarshals and validates it.
type ToolHandler func(ctx context.Context, input json.RawMessage) (ToolResult, error)

// SlashHandler runs a user-typed command. Args is everything after the
// command name, unparsed.
type SlashHandler func(ctx context.Context, args string) (string, error)

// EventHandler responds to a host event. The returned JSON is inspected
// by the host's dispatch rules; nil means the handler has nothing to add.
type EventHandler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

type toolEntry struct {
	decl    wireformat.ToolDecl
	handler ToolHandler
}

type slashEntry struct {
	decl    wireformat.SlashCmdDecl
	handler SlashHandler
}

type hookEntry struct {
	event   string
	handler EventHandler
}

// Extension is a guest-side declaration of everything an extension
// provides. Build one with New and the chainable declaration methods,
// then install it with Serve. Declaration order is preserved on the
// wire; the host delivers events to hooks in the order they were added.
type Extension struct {
	name         string
	version      string
	description  string
	capabilities []string
	tools        []toolEntry
	slashes      []slashEntry
	hooks        []hookEntry
}

// New starts an extension declaration. The name must match the manifest
// the host loaded the module under, or registration is rejected.
func New(name, version string) *Extension {
	return &Extension{name: name, version: version}
}

// Description sets the human-readable summary shown in listings and
// install prompts.
func (e *Extension) Description(text string) *Extension {
	e.description = text
	return e
}

// Requires declares capability tokens the extension needs, in the form
// "kind" or "kind:pattern" ("read", "exec:git", "env:HOME"). The host
// decides every hostcall against these at runtime; declaring them here
// is what makes them visible to scans and install prompts.
func (e *Extension) Requires(tokens ...string) *Extension {
	e.capabilities = append(e.capabilities, tokens...)
	return e
}

// Tool registers a callable tool. Schema is the JSON Schema for the
// input object, usually produced by GenerateSchema.
func (e *Extension) Tool(name, description string, schema []byte, handler ToolHandler) *Extension {
	e.tools = append(e.tools, toolEntry{
		decl: wireformat.ToolDecl{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
		handler: handler,
	})
	return e
}

// SlashCommand registers a user-invocable command.
func (e *Extension) SlashCommand(name, description string, handler SlashHandler) *Extension {
	e.slashes = append(e.slashes, slashEntry{
		decl:    wireformat.SlashCmdDecl{Name: name, Description: description},
		handler: handler,
	})
	return e
}

// OnEvent registers a hook for a named host event.
func (e *Extension) OnEvent(event string, handler EventHandler) *Extension {
	e.hooks = append(e.hooks, hookEntry{event: event, handler: handler})
	return e
}

func (e *Extension) registerPayload() wireformat.RegisterPayload {
	payload := wireformat.RegisterPayload{
		Name:         e.name,
		Version:      e.version,
		APIVersion:   wireformat.ProtocolVersion,
		Description:  e.description,
		Capabilities: e.capabilities,
	}
	for _, tool := range e.tools {
		payload.Tools = append(payload.Tools, tool.decl)
	}
	for _, slash := range e.slashes {
		payload.SlashCommands = append(payload.SlashCommands, slash.decl)
	}
	for _, hook := range e.hooks {
		payload.EventHooks = append(payload.EventHooks, hook.event)
	}
	return payload
}

func (e *Extension) tool(name string) (toolEntry, bool) {
	for _, entry := range e.tools {
		if entry.decl.Name == name {
			return entry, true
		}
	}
	return toolEntry{}, false
}

func (e *Extension) slash(name string) (slashEntry, bool) {
	for _, entry := range e.slashes {
		if entry.decl.Name == name {
			return entry, true
		}
	}
	return slashEntry{}, false
}

func (e *Extension) hook(event string) (hookEntry, bool) {
	for _, entry := range e.hooks {
		if entry.event == event {
			return entry, true
		}
	}
	return hookEntry{}, false
}
