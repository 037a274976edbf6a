// The hello extension exercises the full extension surface: a tool, a
// slash command, an event hook, and the file, env, and log hostcalls.
//
// It is compiled to WASM with:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o hello.wasm .
package main

import "github.com/portcullis-dev/portcullis/sdk"

//go:wasmexport register
func register() uint64 {
	return sdk.HandleRegister()
}

//go:wasmexport tool_call
func toolCall(ptr uint32, length uint32) uint64 {
	return sdk.HandleToolCall(ptr, length)
}

//go:wasmexport slash_command
func slashCommand(ptr uint32, length uint32) uint64 {
	return sdk.HandleSlashCommand(ptr, length)
}

//go:wasmexport event_hook
func eventHook(ptr uint32, length uint32) uint64 {
	return sdk.HandleEventHook(ptr, length)
}

//go:wasmexport allocate
func allocate(size uint32) uint32 {
	return sdk.Allocate(size)
}

//go:wasmexport deallocate
func deallocate(ptr uint32, size uint32) {
	sdk.Deallocate(ptr, size)
}

// main is required for compilation but never runs; the host calls the
// exports directly.
func main() {}
