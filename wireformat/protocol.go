package wireformat

import "encoding/json"

// Envelope wraps every protocol message exchanged between host and extension.
// Payload decoding is driven by Type; APIVersion tracks the protocol revision
// the sender speaks.
type Envelope struct {
	Type       string          `json:"type"`
	APIVersion string          `json:"api_version"`
	ID         string          `json:"id,omitempty"` // Correlation id for call/result pairs
	Payload    json.RawMessage `json:"payload"`
}

// ProtocolVersion is the wire protocol revision this package speaks.
// Envelopes carry it as api_version.
const ProtocolVersion = "1.0.0"

// Envelope type tokens.
const (
	TypeRegister     = "register"
	TypeToolCall     = "tool_call"
	TypeToolResult   = "tool_result"
	TypeSlashCommand = "slash_command"
	TypeSlashResult  = "slash_result"
	TypeEventHook    = "event_hook"
	TypeEventResult  = "event_result"
	TypeLog          = "log"
	TypeError        = "error"
)

// RegisterPayload is sent by an extension to declare everything it provides.
type RegisterPayload struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	APIVersion    string          `json:"api_version"`
	Description   string          `json:"description,omitempty"`
	Capabilities  []string        `json:"capabilities,omitempty"` // "kind" or "kind:pattern" tokens
	Tools         []ToolDecl      `json:"tools,omitempty"`
	SlashCommands []SlashCmdDecl  `json:"slash_commands,omitempty"`
	EventHooks    []string        `json:"event_hooks,omitempty"` // Event names, delivery in declaration order
	Config        json.RawMessage `json:"config,omitempty"`
}

// ToolDecl declares a tool an extension offers to the host.
type ToolDecl struct {
	Name        string          `json:"name"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"` // JSON Schema for the input
}

// SlashCmdDecl declares a user-invocable slash command.
type SlashCmdDecl struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolCallPayload is sent host to extension to invoke a registered tool.
type ToolCallPayload struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResultPayload carries a tool invocation's outcome back to the host.
type ToolResultPayload struct {
	Content string          `json:"content,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// SlashCommandPayload is sent host to extension for a user-typed command.
type SlashCommandPayload struct {
	Command string `json:"command"`
	Args    string `json:"args,omitempty"`
}

// SlashResultPayload carries a slash command's outcome back to the host.
type SlashResultPayload struct {
	Content string       `json:"content,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// EventHookPayload delivers an event to a registered hook.
type EventHookPayload struct {
	EventName string          `json:"event_name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventResultPayload is a hook's response to an event delivery. An empty
// Result means the handler passed; dispatch rules inspect Result for
// block/cancel flags on the event families that honor them.
type EventResultPayload struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}
