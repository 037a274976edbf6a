package wasm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/application/services"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/wasm/hostfuncs"
	"github.com/portcullis-dev/portcullis/wireformat"
)

// Instance is one live extension module. A mutex serializes every
// guest entry: no two calls into the same instance ever overlap, while
// distinct instances run concurrently on the shared runtime.
type Instance struct {
	caller    services.ExtensionInfo
	module    api.Module
	validator RegisterValidator

	mu     sync.Mutex
	closed bool
}

func newInstance(spec ports.InstanceSpec, module api.Module, validator RegisterValidator) *Instance {
	root := spec.Workspace
	if root == "" {
		root = spec.Root
	}
	return &Instance{
		caller: services.ExtensionInfo{
			Name:   spec.Manifest.ExtensionName(),
			Root:   root,
			Tier:   spec.Tier,
			Digest: spec.Digest,
		},
		module:    module,
		validator: validator,
	}
}

// initialize runs the _initialize export when present. Modules built
// as reactors expose it instead of _start.
func (i *Instance) initialize(ctx context.Context) error {
	initFn := i.module.ExportedFunction("_initialize")
	if initFn == nil {
		return nil
	}
	ctx = hostfuncs.WithCaller(ctx, i.caller)
	if _, err := initFn.Call(ctx); err != nil {
		return fmt.Errorf("failed to initialize extension %s: %w", i.caller.Name.String(), err)
	}
	return nil
}

// Register invokes the guest's register export, validates the payload
// against the register schema, and returns the announcement.
func (i *Instance) Register(ctx context.Context) (ports.Announcement, error) {
	envelope, err := i.callNoArg(ctx, "register")
	if err != nil {
		return ports.Announcement{}, err
	}
	if envelope.Type != wireformat.TypeRegister {
		return ports.Announcement{}, fmt.Errorf(
			"extension %s answered register with %q", i.caller.Name.String(), envelope.Type)
	}
	if err := i.validator.Validate(envelope.Payload); err != nil {
		return ports.Announcement{}, fmt.Errorf(
			"register payload from %s rejected: %w", i.caller.Name.String(), err)
	}

	var payload wireformat.RegisterPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return ports.Announcement{}, fmt.Errorf(
			"malformed register payload from %s: %w", i.caller.Name.String(), err)
	}
	return announcementFromPayload(payload), nil
}

// CallTool invokes a registered tool and returns the tool result
// payload. A guest-reported tool error becomes a host-side error.
func (i *Instance) CallTool(ctx context.Context, tool string, input json.RawMessage, id values.CallID) (json.RawMessage, error) {
	envelope, err := i.call(ctx, "tool_call", wireformat.TypeToolCall, id.String(), wireformat.ToolCallPayload{
		Tool:  tool,
		Input: input,
	})
	if err != nil {
		return nil, err
	}
	if envelope.Type != wireformat.TypeToolResult {
		return nil, fmt.Errorf("extension %s answered tool_call with %q", i.caller.Name.String(), envelope.Type)
	}

	var result wireformat.ToolResultPayload
	if err := json.Unmarshal(envelope.Payload, &result); err != nil {
		return nil, fmt.Errorf("malformed tool result from %s: %w", i.caller.Name.String(), err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("tool %s failed: %w", tool, result.Error)
	}
	return envelope.Payload, nil
}

// RunSlash invokes a registered slash command. Arguments reach the
// guest as the single string the user typed after the command.
func (i *Instance) RunSlash(ctx context.Context, command string, args []string, id values.CallID) (json.RawMessage, error) {
	envelope, err := i.call(ctx, "slash_command", wireformat.TypeSlashCommand, id.String(), wireformat.SlashCommandPayload{
		Command: command,
		Args:    strings.Join(args, " "),
	})
	if err != nil {
		return nil, err
	}
	if envelope.Type != wireformat.TypeSlashResult {
		return nil, fmt.Errorf("extension %s answered slash_command with %q", i.caller.Name.String(), envelope.Type)
	}

	var result wireformat.SlashResultPayload
	if err := json.Unmarshal(envelope.Payload, &result); err != nil {
		return nil, fmt.Errorf("malformed slash result from %s: %w", i.caller.Name.String(), err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("slash command %s failed: %w", command, result.Error)
	}
	return envelope.Payload, nil
}

// DeliverEvent delivers one event to the guest's hook and returns the
// hook's result, empty when the hook passed.
func (i *Instance) DeliverEvent(ctx context.Context, event string, payload json.RawMessage) (json.RawMessage, error) {
	envelope, err := i.call(ctx, "event_hook", wireformat.TypeEventHook, values.NewCallID().String(), wireformat.EventHookPayload{
		EventName: event,
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}
	if envelope.Type != wireformat.TypeEventResult {
		return nil, fmt.Errorf("extension %s answered event_hook with %q", i.caller.Name.String(), envelope.Type)
	}

	var result wireformat.EventResultPayload
	if err := json.Unmarshal(envelope.Payload, &result); err != nil {
		return nil, fmt.Errorf("malformed event result from %s: %w", i.caller.Name.String(), err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("event hook %s failed: %w", event, result.Error)
	}
	return result.Result, nil
}

// Close releases the instance. Safe to call more than once.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.module.Close(ctx)
}

// call serializes one request envelope into guest memory, invokes the
// export, and decodes the response envelope. The instance mutex covers
// the whole round trip.
func (i *Instance) call(ctx context.Context, export, msgType, id string, payload any) (*wireformat.Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	request, err := json.Marshal(wireformat.Envelope{
		Type:       msgType,
		APIVersion: wireformat.ProtocolVersion,
		ID:         id,
		Payload:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", msgType, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, fmt.Errorf("extension %s is closed", i.caller.Name.String())
	}

	ctx = hostfuncs.WithCaller(ctx, i.caller)

	fn := i.module.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("extension %s does not export %s", i.caller.Name.String(), export)
	}

	ptr, err := i.writeToMemory(ctx, request)
	if err != nil {
		return nil, err
	}
	defer i.deallocate(ctx, ptr, uint32(len(request))) //nolint:gosec // G115: request length is bounded by guest memory

	results, err := fn.Call(ctx, uint64(ptr), uint64(len(request)))
	if err != nil {
		return nil, fmt.Errorf("failed to call %s on %s: %w", export, i.caller.Name.String(), err)
	}
	return i.decodeResult(ctx, export, results)
}

// callNoArg invokes an export that takes no request buffer.
func (i *Instance) callNoArg(ctx context.Context, export string) (*wireformat.Envelope, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, fmt.Errorf("extension %s is closed", i.caller.Name.String())
	}

	ctx = hostfuncs.WithCaller(ctx, i.caller)

	fn := i.module.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("extension %s does not export %s", i.caller.Name.String(), export)
	}

	results, err := fn.Call(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s on %s: %w", export, i.caller.Name.String(), err)
	}
	return i.decodeResult(ctx, export, results)
}

// decodeResult unpacks the packed return value, copies the guest
// buffer out, and unmarshals the envelope. A guest error envelope
// becomes a host-side error.
func (i *Instance) decodeResult(ctx context.Context, export string, results []uint64) (*wireformat.Envelope, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%s returned no result", export)
	}

	packed := results[0]
	ptr := uint32(packed >> 32)         //nolint:gosec // G115: WASM32 pointers are always 32-bit
	size := uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: WASM32 lengths are always 32-bit
	if ptr == 0 || size == 0 {
		return nil, fmt.Errorf("%s returned null pointer or zero length", export)
	}

	data, err := i.readResult(ctx, ptr, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s result: %w", export, err)
	}

	var envelope wireformat.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed %s result envelope: %w", export, err)
	}
	if envelope.Type == wireformat.TypeError {
		detail := &wireformat.ErrorDetail{}
		if err := json.Unmarshal(envelope.Payload, detail); err != nil || detail.Message == "" {
			return nil, fmt.Errorf("extension %s reported an error it could not describe", i.caller.Name.String())
		}
		return nil, detail
	}
	return &envelope, nil
}

// readResult copies size bytes out of guest memory and returns the
// guest buffer to the guest allocator.
func (i *Instance) readResult(ctx context.Context, ptr, size uint32) ([]byte, error) {
	defer i.deallocate(ctx, ptr, size)

	data, ok := i.module.Memory().Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("result at %d+%d is outside guest memory", ptr, size)
	}
	out := make([]byte, size)
	copy(out, data)
	return out, nil
}

// deallocate frees a guest buffer, tolerating guests without a
// deallocate export. A cleanup panic must not clobber the call result.
func (i *Instance) deallocate(ctx context.Context, ptr, size uint32) {
	defer func() {
		_ = recover()
	}()

	fn := i.module.ExportedFunction("deallocate")
	if fn != nil {
		//nolint:errcheck,gosec // G104: deallocation is best-effort cleanup
		fn.Call(ctx, uint64(ptr), uint64(size))
	}
}

// writeToMemory allocates a guest buffer and copies data into it.
func (i *Instance) writeToMemory(ctx context.Context, data []byte) (uint32, error) {
	allocateFn := i.module.ExportedFunction("allocate")
	if allocateFn == nil {
		return 0, fmt.Errorf("extension %s does not export allocate", i.caller.Name.String())
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate guest memory: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocate returned no result")
	}

	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("allocate returned null pointer")
	}
	if !i.module.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write %d bytes into guest memory at %d", len(data), ptr)
	}
	return ptr, nil
}

// announcementFromPayload lifts the validated wire declaration into
// the application's view of the extension.
func announcementFromPayload(payload wireformat.RegisterPayload) ports.Announcement {
	a := ports.Announcement{
		Name:         payload.Name,
		Version:      payload.Version,
		APIVersion:   payload.APIVersion,
		Capabilities: payload.Capabilities,
		EventHooks:   payload.EventHooks,
	}
	for _, tool := range payload.Tools {
		a.Tools = append(a.Tools, ports.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}
	for _, slash := range payload.SlashCommands {
		a.SlashCommands = append(a.SlashCommands, ports.SlashSpec{
			Name:        slash.Name,
			Description: slash.Description,
		})
	}
	return a
}
