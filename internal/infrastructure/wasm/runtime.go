// Package wasm hosts extension modules on a wazero runtime. Guests
// get no preopened filesystem and no host environment: every effect
// leaves the sandbox through the portcullis_host functions and the
// hostcall dispatcher behind them.
package wasm

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/redaction"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/wasm/hostfuncs"
)

// globalCache speeds up compilation across runtimes.
var globalCache = wazero.NewCompilationCache()

// RegisterValidator checks a guest's register payload before the host
// trusts anything in it.
type RegisterValidator interface {
	Validate(payload []byte) error
}

// Config bounds the runtime.
type Config struct {
	// MemoryLimitMB caps guest memory per module. Zero selects the
	// default, -1 disables the cap.
	MemoryLimitMB int
}

// Runtime implements ports.Runtime on wazero.
type Runtime struct {
	runtime   wazero.Runtime
	validator RegisterValidator
	scrubber  *redaction.Scrubber
	logger    *slog.Logger
}

// NewRuntime builds the wazero runtime, instantiates WASI, and
// registers the host function module. WASI supplies clocks and
// randomness only; filesystem and environment stay empty. The
// scrubber, when present, wraps every guest's stdout and stderr.
func NewRuntime(
	ctx context.Context,
	dispatcher hostfuncs.Dispatcher,
	validator RegisterValidator,
	cfg Config,
	scrubber *redaction.Scrubber,
	logger *slog.Logger,
) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	memoryLimitMB := cfg.MemoryLimitMB
	switch {
	case memoryLimitMB == 0:
		memoryLimitMB = 256
		logger.Info("using default guest memory limit", "mb", memoryLimitMB)
	case memoryLimitMB == -1:
		logger.Warn("guest memory limit disabled")
	case memoryLimitMB > 0:
		if memoryLimitMB < 64 {
			logger.Warn("guest memory limit very low, extensions may fail", "mb", memoryLimitMB)
		}
	default:
		return nil, fmt.Errorf("invalid guest memory limit: %d (must be >= -1)", memoryLimitMB)
	}

	config := wazero.NewRuntimeConfig().WithCompilationCache(globalCache)
	if memoryLimitMB > 0 {
		// One WASM page is 64KB, so 1MB is 16 pages.
		pages := uint32(memoryLimitMB * 16) //nolint:gosec // G115: bounded by the validation above
		config = config.WithMemoryLimitPages(pages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, config)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	if err := hostfuncs.NewHost(dispatcher, logger).Register(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return &Runtime{
		runtime:   r,
		validator: validator,
		scrubber:  scrubber,
		logger:    logger,
	}, nil
}

// Instantiate compiles the artifact named by the spec and starts one
// long-lived instance of it. The instance keeps its memory until
// Close; call serialization happens inside the instance.
func (r *Runtime) Instantiate(ctx context.Context, spec ports.InstanceSpec) (ports.Instance, error) {
	moduleBytes, err := os.ReadFile(spec.ModulePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", spec.ModulePath, err)
	}

	compiled, err := r.runtime.CompileModule(ctx, moduleBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile extension %s: %w", spec.Manifest.Name, err)
	}

	var stdout, stderr io.Writer = os.Stderr, os.Stderr
	if r.scrubber != nil {
		stdout = redaction.NewWriter(os.Stderr, r.scrubber)
		stderr = redaction.NewWriter(os.Stderr, r.scrubber)
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(spec.Manifest.Name).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader).
		WithStdout(stdout).
		WithStderr(stderr)

	mod, err := r.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate extension %s: %w", spec.Manifest.Name, err)
	}

	instance := newInstance(spec, mod, r.validator)
	if err := instance.initialize(ctx); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}

	r.logger.Debug("extension instantiated",
		"extension", spec.Manifest.Name,
		"tier", spec.Tier.String(),
		"module", spec.ModulePath)
	return instance, nil
}

// Close releases the runtime and every instance on it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}
