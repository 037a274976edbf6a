package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// packPtrLen and unpackPtrLen implement the packed pointer ABI shared
// with the SDK: the upper 32 bits carry the pointer, the lower 32 the
// length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32) //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed)    //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}

// readRequest reads a packed guest buffer and unmarshals it into out.
// The guest owns the request buffer and frees it itself.
func readRequest(mod api.Module, packed uint64, out any) error {
	ptr, length := unpackPtrLen(packed)
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return fmt.Errorf("hostcall request at %d+%d is outside guest memory", ptr, length)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed hostcall request: %w", err)
	}
	return nil
}

// writeResponse marshals the response into guest memory via the
// guest's allocate export and returns the packed pointer. Zero means
// the response could not be delivered at all; the guest treats that as
// a fatal protocol failure.
func (h *Host) writeResponse(ctx context.Context, mod api.Module, response any) uint64 {
	data, err := json.Marshal(response)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal hostcall response", "error", err)
		data = []byte(`{"error":{"message":"host failed to marshal response","type":"internal"}}`)
	}

	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		h.logger.ErrorContext(ctx, "guest does not export allocate", "module", mod.Name())
		return 0
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		h.logger.ErrorContext(ctx, "guest allocate failed", "module", mod.Name(), "error", err)
		return 0
	}

	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 || !mod.Memory().Write(ptr, data) {
		h.logger.ErrorContext(ctx, "failed to write hostcall response into guest memory",
			"module", mod.Name(), "bytes", len(data))
		return 0
	}

	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: WASM memory allocations are bounded to 4GB
}
