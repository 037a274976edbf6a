// Package container wires the host's dependency graph at a single
// composition root.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/application/services"
	"github.com/portcullis-dev/portcullis/internal/domain/events"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/artifacts"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/audit"
	infracaps "github.com/portcullis-dev/portcullis/internal/infrastructure/capabilities"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/config"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/hostops"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/output"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/redaction"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/scanner"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/secrets"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/validation"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/wasm"
)

// Options configure the container. Empty paths resolve to defaults
// under ~/.portcullis.
type Options struct {
	Logger *slog.Logger

	// PolicyPath is the policy rules file. A missing file runs the
	// host strict with zero grants.
	PolicyPath string
	// AuditLogPath is the audit ledger file. Empty keeps the ledger in
	// memory, for one-shot commands that only need the session tail.
	AuditLogPath string
	GrantsPath   string
	FeedbackPath string

	// MemoryLimitMB overrides the policy file's guest memory limit
	// when nonzero.
	MemoryLimitMB int
	// Interactive enables terminal prompts for prompt-mode decisions.
	// Without it, prompt mode denies.
	Interactive bool
	// WatchPolicy builds a hot-reload watcher for the policy file; the
	// caller runs it via Watcher().
	WatchPolicy bool

	Registry  artifacts.Config
	Redaction redaction.Config

	// Secrets names values that must never appear in logs or audit
	// records. They resolve at startup and register with the scrubber.
	Secrets secrets.Sources
}

// Container holds the wired application dependencies.
type Container struct {
	engine     *services.PolicyEngine
	dispatcher *services.Dispatcher
	manager    *services.ExtensionManager
	events     *services.EventDispatcher
	runtime    *wasm.Runtime
	scanner    *scanner.Scanner
	ledger     ports.Ledger
	store      *config.Store
	watcher    *config.Watcher
	registry   ports.ArtifactRegistry
	formatters *output.FormatterFactory
	scrubber   *redaction.Scrubber
	hostCfg    config.HostConfig
	logger     *slog.Logger
	closers    []io.Closer
}

// New wires the full dependency graph. The context covers construction
// only; long-running pieces (watcher, instances) take their own.
func New(ctx context.Context, opts Options) (*Container, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	base := defaultBaseDir()
	if opts.PolicyPath == "" {
		opts.PolicyPath = filepath.Join(base, "policy.yaml")
	}
	if opts.GrantsPath == "" {
		opts.GrantsPath = filepath.Join(base, "grants.yaml")
	}
	if opts.FeedbackPath == "" {
		opts.FeedbackPath = filepath.Join(base, "feedback.yaml")
	}

	scrubber, err := redaction.New(opts.Redaction)
	if err != nil {
		return nil, fmt.Errorf("building redactor: %w", err)
	}

	// An unresolvable secret has no value to leak, so resolution
	// failures warn instead of failing construction.
	if !opts.Secrets.Empty() {
		resolver := secrets.NewResolver(opts.Secrets, scrubber)
		if err := resolver.ResolveAll(); err != nil {
			opts.Logger.Warn("some named secrets did not resolve", "error", err)
		}
	}

	var (
		ledger  ports.Ledger
		closers []io.Closer
	)
	if opts.AuditLogPath != "" {
		fileLedger, err := audit.OpenFileLedger(opts.AuditLogPath)
		if err != nil {
			return nil, err
		}
		ledger = fileLedger
		closers = append(closers, fileLedger)
	} else {
		ledger = audit.NewMemoryLedger()
	}

	loader := config.NewLoader(opts.Logger)
	hostCfg, err := loader.Load(opts.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	store := config.NewStore(hostCfg.Ruleset)

	var watcher *config.Watcher
	if opts.WatchPolicy {
		watcher = config.NewWatcher(opts.PolicyPath, loader, store, opts.Logger)
	}

	grants := infracaps.NewFileGrantStore(opts.GrantsPath)
	var channel ports.DecisionChannel
	if opts.Interactive {
		channel = infracaps.NewTerminalChannel()
	}
	feedback := scanner.NewFileFeedbackStore(opts.FeedbackPath)

	engine := services.NewPolicyEngine(store.Snapshot, grants, channel, ledger, feedback, opts.Logger)
	ops := hostops.New(hostops.Options{Logger: opts.Logger})
	dispatcher := services.NewDispatcher(engine, ops, ledger, services.DefaultDispatcherLimits(), opts.Logger)

	validator, err := validation.NewRegisterValidator()
	if err != nil {
		return nil, fmt.Errorf("compiling register schema: %w", err)
	}

	memoryLimit := opts.MemoryLimitMB
	if memoryLimit == 0 {
		memoryLimit = hostCfg.MaxMemoryMB
	}
	runtime, err := wasm.NewRuntime(ctx, dispatcher, validator, wasm.Config{MemoryLimitMB: memoryLimit}, scrubber, opts.Logger)
	if err != nil {
		return nil, err
	}

	scan := scanner.New(scanner.NewMemoryCache(), feedback, opts.Logger)
	eventDispatcher := services.NewEventDispatcher(events.DefaultRuleTable(), hostCfg.EventBudget, opts.Logger)

	manager, err := services.NewExtensionManager(scan, runtime, eventDispatcher, services.DefaultManagerConfig(), opts.Logger)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}

	return &Container{
		engine:     engine,
		dispatcher: dispatcher,
		manager:    manager,
		events:     eventDispatcher,
		runtime:    runtime,
		scanner:    scan,
		ledger:     ledger,
		store:      store,
		watcher:    watcher,
		registry:   artifacts.NewRegistry(opts.Registry, opts.Logger),
		formatters: output.NewFormatterFactory(),
		scrubber:   scrubber,
		hostCfg:    hostCfg,
		logger:     opts.Logger,
		closers:    closers,
	}, nil
}

// Close releases everything the container owns. The manager shuts down
// first so instances stop calling into the runtime.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.manager != nil {
		if err := c.manager.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.runtime != nil {
		if err := c.runtime.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Engine returns the policy engine.
func (c *Container) Engine() *services.PolicyEngine {
	return c.engine
}

// Dispatcher returns the hostcall dispatcher.
func (c *Container) Dispatcher() *services.Dispatcher {
	return c.dispatcher
}

// Manager returns the extension manager.
func (c *Container) Manager() *services.ExtensionManager {
	return c.manager
}

// Events returns the event dispatcher.
func (c *Container) Events() *services.EventDispatcher {
	return c.events
}

// Scanner returns the compatibility scanner.
func (c *Container) Scanner() *scanner.Scanner {
	return c.scanner
}

// Ledger returns the audit ledger.
func (c *Container) Ledger() ports.Ledger {
	return c.ledger
}

// PolicyStore returns the live policy snapshot store.
func (c *Container) PolicyStore() *config.Store {
	return c.store
}

// Watcher returns the policy watcher, or nil when watching is off.
func (c *Container) Watcher() *config.Watcher {
	return c.watcher
}

// ArtifactRegistry returns the OCI artifact client.
func (c *Container) ArtifactRegistry() ports.ArtifactRegistry {
	return c.registry
}

// Formatters returns the report formatter factory.
func (c *Container) Formatters() *output.FormatterFactory {
	return c.formatters
}

// HostConfig returns the compiled policy file settings.
func (c *Container) HostConfig() config.HostConfig {
	return c.hostCfg
}

// Logger returns the configured logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// BaseDir returns the host's state directory.
func BaseDir() string {
	return defaultBaseDir()
}

// DefaultPolicyPath returns where the policy file lives when no flag
// overrides it.
func DefaultPolicyPath() string {
	return filepath.Join(defaultBaseDir(), "policy.yaml")
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".portcullis"
	}
	return filepath.Join(home, ".portcullis")
}
