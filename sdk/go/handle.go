package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/portcullis-dev/portcullis/wireformat"
)

// current is the extension the exports dispatch to. The sandbox delivers
// calls one at a time, so no lock guards it.
var current *Extension

// Serve installs ext behind the package's Handle functions. Call it from
// an init function: with -buildmode=c-shared the runtime executes package
// initializers but never main, so a Serve call in main would be too late.
func Serve(ext *Extension) {
	current = ext
}

type callIDKey struct{}

func withCallID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallID returns the correlation id of the call a handler is serving, or
// "" outside a call. Hostcalls attach it automatically so the host's
// audit records line up with the invocation that caused them.
func CallID(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

// HandleRegister backs the register export.
func HandleRegister() uint64 {
	return writeResult(handleRegister())
}

// HandleToolCall backs the tool_call export.
func HandleToolCall(ptr uint32, length uint32) uint64 {
	return writeResult(handleToolCall(readFromMemory(ptr, length)))
}

// HandleSlashCommand backs the slash_command export.
func HandleSlashCommand(ptr uint32, length uint32) uint64 {
	return writeResult(handleSlashCommand(readFromMemory(ptr, length)))
}

// HandleEventHook backs the event_hook export.
func HandleEventHook(ptr uint32, length uint32) uint64 {
	return writeResult(handleEventHook(readFromMemory(ptr, length)))
}

func handleRegister() []byte {
	if current == nil {
		return errorEnvelope("", "validation", "no extension installed: call sdk.Serve from an init function")
	}
	return envelope("", wireformat.TypeRegister, current.registerPayload())
}

func handleToolCall(request []byte) []byte {
	env, errData := decodeCall(request, wireformat.TypeToolCall)
	if errData != nil {
		return errData
	}
	var call wireformat.ToolCallPayload
	if err := json.Unmarshal(env.Payload, &call); err != nil {
		return errorEnvelope(env.ID, "validation", "malformed tool_call payload: "+err.Error())
	}
	entry, ok := current.tool(call.Tool)
	if !ok {
		return envelope(env.ID, wireformat.TypeToolResult, wireformat.ToolResultPayload{
			Error: &wireformat.ErrorDetail{Message: fmt.Sprintf("unknown tool %q", call.Tool), Type: "validation"},
		})
	}
	result, err := invokeTool(withCallID(context.Background(), env.ID), entry.handler, call.Input)
	if err != nil {
		return envelope(env.ID, wireformat.TypeToolResult, wireformat.ToolResultPayload{Error: toErrorDetail(err)})
	}
	payload := wireformat.ToolResultPayload{Content: result.Content}
	if result.Details != nil {
		details, err := json.Marshal(result.Details)
		if err != nil {
			return envelope(env.ID, wireformat.TypeToolResult, wireformat.ToolResultPayload{
				Error: &wireformat.ErrorDetail{Message: "tool details are not serializable: " + err.Error(), Type: "internal"},
			})
		}
		payload.Details = details
	}
	return envelope(env.ID, wireformat.TypeToolResult, payload)
}

func handleSlashCommand(request []byte) []byte {
	env, errData := decodeCall(request, wireformat.TypeSlashCommand)
	if errData != nil {
		return errData
	}
	var cmd wireformat.SlashCommandPayload
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		return errorEnvelope(env.ID, "validation", "malformed slash_command payload: "+err.Error())
	}
	entry, ok := current.slash(cmd.Command)
	if !ok {
		return envelope(env.ID, wireformat.TypeSlashResult, wireformat.SlashResultPayload{
			Error: &wireformat.ErrorDetail{Message: fmt.Sprintf("unknown command %q", cmd.Command), Type: "validation"},
		})
	}
	content, err := invokeSlash(withCallID(context.Background(), env.ID), entry.handler, cmd.Args)
	if err != nil {
		return envelope(env.ID, wireformat.TypeSlashResult, wireformat.SlashResultPayload{Error: toErrorDetail(err)})
	}
	return envelope(env.ID, wireformat.TypeSlashResult, wireformat.SlashResultPayload{Content: content})
}

func handleEventHook(request []byte) []byte {
	env, errData := decodeCall(request, wireformat.TypeEventHook)
	if errData != nil {
		return errData
	}
	var event wireformat.EventHookPayload
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		return errorEnvelope(env.ID, "validation", "malformed event_hook payload: "+err.Error())
	}
	entry, ok := current.hook(event.EventName)
	if !ok {
		return envelope(env.ID, wireformat.TypeEventResult, wireformat.EventResultPayload{
			Error: &wireformat.ErrorDetail{Message: fmt.Sprintf("no hook for event %q", event.EventName), Type: "validation"},
		})
	}
	result, err := invokeEvent(withCallID(context.Background(), env.ID), entry.handler, event.Payload)
	if err != nil {
		return envelope(env.ID, wireformat.TypeEventResult, wireformat.EventResultPayload{Error: toErrorDetail(err)})
	}
	return envelope(env.ID, wireformat.TypeEventResult, wireformat.EventResultPayload{Result: result})
}

// decodeCall parses an incoming envelope and checks its type. The second
// return value is a ready-to-send error envelope when parsing failed.
func decodeCall(request []byte, wantType string) (wireformat.Envelope, []byte) {
	var env wireformat.Envelope
	if err := json.Unmarshal(request, &env); err != nil {
		return env, errorEnvelope("", "validation", "malformed envelope: "+err.Error())
	}
	if env.Type != wantType {
		return env, errorEnvelope(env.ID, "validation", fmt.Sprintf("unexpected message type %q", env.Type))
	}
	if current == nil {
		return env, errorEnvelope(env.ID, "internal", "no extension installed")
	}
	return env, nil
}

func invokeTool(ctx context.Context, handler ToolHandler, input json.RawMessage) (result ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool handler panicked: %v", r)
		}
	}()
	return handler(ctx, input)
}

func invokeSlash(ctx context.Context, handler SlashHandler, args string) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command handler panicked: %v", r)
		}
	}()
	return handler(ctx, args)
}

func invokeEvent(ctx context.Context, handler EventHandler, payload json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return handler(ctx, payload)
}

// envelope wraps payload for the wire. Marshal failures collapse into an
// error envelope so the host always receives valid JSON.
func envelope(id, msgType string, payload any) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		return errorEnvelope(id, "internal", "failed to marshal response: "+err.Error())
	}
	data, err := json.Marshal(wireformat.Envelope{
		Type:       msgType,
		APIVersion: wireformat.ProtocolVersion,
		ID:         id,
		Payload:    body,
	})
	if err != nil {
		return errorEnvelope(id, "internal", "failed to marshal envelope: "+err.Error())
	}
	return data
}

func errorEnvelope(id, errType, message string) []byte {
	payload, _ := json.Marshal(wireformat.ErrorDetail{Message: message, Type: errType})
	data, _ := json.Marshal(wireformat.Envelope{
		Type:       wireformat.TypeError,
		APIVersion: wireformat.ProtocolVersion,
		ID:         id,
		Payload:    payload,
	})
	return data
}

// toErrorDetail converts a handler error for the wire, preserving the
// structured form when the handler returned a wireformat.ErrorDetail, as
// DecodeInput and the hostcall wrappers do.
func toErrorDetail(err error) *wireformat.ErrorDetail {
	if err == nil {
		return nil
	}
	var detail *wireformat.ErrorDetail
	if errors.As(err, &detail) {
		return detail
	}
	return &wireformat.ErrorDetail{Message: err.Error(), Type: "internal"}
}
