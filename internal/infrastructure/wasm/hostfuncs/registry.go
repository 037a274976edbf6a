// Package hostfuncs exposes the host function surface extensions call
// back into. Every function decodes a wire request from guest memory,
// routes it through the hostcall dispatcher, and writes the wire
// response back through the guest's own allocator. Nothing in this
// package touches the filesystem, the network, or the environment
// directly.
package hostfuncs

import (
	"context"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/portcullis-dev/portcullis/internal/application/services"
)

// HostModule is the import namespace guests link against.
const HostModule = "portcullis_host"

// Dispatcher is the slice of the hostcall dispatcher the host
// functions need: one mediated call per operation.
type Dispatcher interface {
	Dispatch(ctx context.Context, ext services.ExtensionInfo, call services.Hostcall) (services.HostResult, error)
}

// Host carries the shared dependencies of every host function.
type Host struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewHost wires the host function surface to the dispatcher.
func NewHost(dispatcher Dispatcher, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{dispatcher: dispatcher, logger: logger}
}

// Register instantiates the host module on the runtime.
func (h *Host) Register(ctx context.Context, runtime wazero.Runtime) error {
	builder := runtime.NewHostModuleBuilder(HostModule)

	// Each export takes a packed ptr+len pointing at a JSON wire
	// request and returns a packed ptr+len pointing at the JSON wire
	// response.
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostRead),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("host_read")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostWrite),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("host_write")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostExec),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("host_exec")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostHTTP),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("host_http")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostEnv),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("host_env")

	// host_log has no response channel.
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostLog),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("host_log")

	_, err := builder.Instantiate(ctx)
	return err
}
