package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// DefaultAPIConstraint is the host's accepted extension api_version
// range when configuration does not narrow it.
const DefaultAPIConstraint = "^1.0.0"

// ManagerConfig tunes extension lifecycle behavior.
type ManagerConfig struct {
	// APIConstraint is a semver range the announced api_version must
	// satisfy. Empty means DefaultAPIConstraint.
	APIConstraint string
	// ShutdownBudget bounds how long Shutdown waits for instances to
	// close before giving up on the stragglers.
	ShutdownBudget time.Duration
	// LoadConcurrency caps how many artifacts are prepared at once.
	LoadConcurrency int
}

// DefaultManagerConfig returns the stock lifecycle settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		APIConstraint:   DefaultAPIConstraint,
		ShutdownBudget:  10 * time.Second,
		LoadConcurrency: 4,
	}
}

// LoadRequest names one artifact to bring up: its parsed manifest and
// the directory the artifact was unpacked into.
type LoadRequest struct {
	Manifest entities.Manifest
	Root     string
	// Workspace confines the extension's file operations. Empty keeps
	// the extension inside its own artifact directory.
	Workspace string
}

// ExtensionRecord is the manager's public view of one loaded artifact.
type ExtensionRecord struct {
	Manifest     entities.Manifest
	Root         string
	Tier         compat.Tier
	Digest       values.Digest
	Report       compat.Report
	Announcement ports.Announcement
	// Active is false for artifacts the scan blocked; their record is
	// kept so operators can see why nothing runs.
	Active bool
}

// LoadOutcome pairs one load request with its result.
type LoadOutcome struct {
	Name   string
	Record *ExtensionRecord
	Err    error
}

type managedExtension struct {
	record   ExtensionRecord
	instance ports.Instance
}

// ExtensionManager owns the extension lifecycle: scan, instantiate,
// register, route calls, and shut down. Calls into one instance are
// serialized by the instance itself; the manager only adds the
// cross-instance bookkeeping.
type ExtensionManager struct {
	scanner       ports.Scanner
	runtime       ports.Runtime
	events        *EventDispatcher
	apiConstraint *semver.Constraints
	config        ManagerConfig
	logger        *slog.Logger

	mu      sync.RWMutex
	byName  map[string]*managedExtension
	order   []string
	tools   map[string]string
	slashes map[string]string
	closed  bool
}

// NewExtensionManager wires the manager. The event dispatcher receives
// a handler per announced hook at load time.
func NewExtensionManager(
	scanner ports.Scanner,
	runtime ports.Runtime,
	events *EventDispatcher,
	config ManagerConfig,
	logger *slog.Logger,
) (*ExtensionManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := config.APIConstraint
	if raw == "" {
		raw = DefaultAPIConstraint
	}
	constraint, err := semver.NewConstraint(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid api constraint %q: %w", raw, err)
	}
	if config.ShutdownBudget <= 0 {
		config.ShutdownBudget = DefaultManagerConfig().ShutdownBudget
	}
	if config.LoadConcurrency <= 0 {
		config.LoadConcurrency = DefaultManagerConfig().LoadConcurrency
	}
	return &ExtensionManager{
		scanner:       scanner,
		runtime:       runtime,
		events:        events,
		apiConstraint: constraint,
		config:        config,
		logger:        logger,
		byName:        make(map[string]*managedExtension),
		tools:         make(map[string]string),
		slashes:       make(map[string]string),
	}, nil
}

// LoadAll brings up a batch of artifacts. Preparation (scan,
// instantiate, announce) runs concurrently across artifacts; adoption
// into the routing tables runs serially in request order so event hook
// delivery order is deterministic. One bad artifact never stops the
// rest.
func (m *ExtensionManager) LoadAll(ctx context.Context, requests []LoadRequest) []LoadOutcome {
	outcomes := make([]LoadOutcome, len(requests))
	prepared := make([]*managedExtension, len(requests))

	g := new(errgroup.Group)
	g.SetLimit(m.config.LoadConcurrency)
	for i := range requests {
		g.Go(func() error {
			ext, err := m.prepare(ctx, requests[i])
			prepared[i] = ext
			outcomes[i] = LoadOutcome{Name: requests[i].Manifest.Name, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, ext := range prepared {
		if ext == nil {
			continue
		}
		if err := m.adopt(ext); err != nil {
			outcomes[i].Err = err
			continue
		}
		record := ext.record
		outcomes[i].Record = &record
	}
	return outcomes
}

// Load brings up a single artifact.
func (m *ExtensionManager) Load(ctx context.Context, req LoadRequest) (*ExtensionRecord, error) {
	outcome := m.LoadAll(ctx, []LoadRequest{req})[0]
	return outcome.Record, outcome.Err
}

// prepare takes one artifact from manifest to announced instance
// without touching shared state.
func (m *ExtensionManager) prepare(ctx context.Context, req LoadRequest) (*managedExtension, error) {
	if err := req.Manifest.Validate(); err != nil {
		return nil, err
	}
	name := req.Manifest.ExtensionName()

	scanDir := req.Root
	if req.Manifest.Entry.Source != "" {
		scanDir = filepath.Join(req.Root, req.Manifest.Entry.Source)
	}
	report, err := m.scanner.Classify(ctx, ports.ScanRequest{
		Dir:       scanDir,
		Extension: req.Manifest.Name,
		Declared:  req.Manifest.DeclaredCapabilities(),
	})
	if err != nil {
		return nil, fmt.Errorf("classifying %s: %w", name, err)
	}

	digest, digestErr := values.ParseDigest(report.Digest)
	if digestErr != nil {
		digest = values.Digest{}
	}

	ext := &managedExtension{record: ExtensionRecord{
		Manifest: req.Manifest,
		Root:     req.Root,
		Tier:     report.Tier,
		Digest:   digest,
		Report:   report,
	}}

	if report.Tier == compat.TierBlocked {
		m.logger.WarnContext(ctx, "extension blocked by compatibility scan",
			"extension", name.String(),
			"findings", len(report.Findings))
		return ext, nil
	}

	workspace := req.Workspace
	if workspace == "" {
		workspace = req.Root
	}
	instance, err := m.runtime.Instantiate(ctx, ports.InstanceSpec{
		Manifest:   req.Manifest,
		Root:       req.Root,
		Workspace:  workspace,
		ModulePath: filepath.Join(req.Root, req.Manifest.Entry.Module),
		Tier:       report.Tier,
		Digest:     digest,
	})
	if err != nil {
		return nil, fmt.Errorf("instantiating %s: %w", name, err)
	}

	announcement, err := instance.Register(ctx)
	if err != nil {
		_ = instance.Close(ctx)
		return nil, fmt.Errorf("registering %s: %w", name, err)
	}
	if err := m.checkAnnouncement(req.Manifest, announcement); err != nil {
		_ = instance.Close(ctx)
		return nil, err
	}

	ext.record.Announcement = announcement
	ext.record.Active = true
	ext.instance = instance
	return ext, nil
}

// checkAnnouncement verifies the guest's register response against the
// manifest and the host's accepted API range.
func (m *ExtensionManager) checkAnnouncement(manifest entities.Manifest, a ports.Announcement) error {
	if a.Name != manifest.Name {
		return &entities.ManifestError{
			Field: "name",
			Err:   fmt.Errorf("announced name %q does not match manifest name %q", a.Name, manifest.Name),
		}
	}
	version, err := semver.NewVersion(a.APIVersion)
	if err != nil {
		return &entities.ManifestError{
			Field: "api_version",
			Err:   fmt.Errorf("announced api_version %q: %w", a.APIVersion, err),
		}
	}
	if !m.apiConstraint.Check(version) {
		return &entities.ManifestError{
			Field: "api_version",
			Err:   fmt.Errorf("api_version %s outside supported range %s", a.APIVersion, m.apiConstraint),
		}
	}
	for _, tool := range a.Tools {
		if tool.Name == "" {
			return &entities.ManifestError{Field: "tools", Err: fmt.Errorf("tool with empty name")}
		}
	}
	for _, slash := range a.SlashCommands {
		if slash.Name == "" {
			return &entities.ManifestError{Field: "slash_commands", Err: fmt.Errorf("slash command with empty name")}
		}
	}
	return nil
}

// adopt indexes a prepared extension into the routing tables and wires
// its event hooks.
func (m *ExtensionManager) adopt(ext *managedExtension) error {
	name := ext.record.Manifest.ExtensionName()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.closeDiscarded(ext)
		return fmt.Errorf("manager is shut down")
	}
	if _, exists := m.byName[name.String()]; exists {
		m.closeDiscarded(ext)
		return fmt.Errorf("extension %s is already loaded", name)
	}
	for _, tool := range ext.record.Announcement.Tools {
		if owner, taken := m.tools[tool.Name]; taken {
			m.closeDiscarded(ext)
			return fmt.Errorf("tool %q is already registered by %s", tool.Name, owner)
		}
	}
	for _, slash := range ext.record.Announcement.SlashCommands {
		if owner, taken := m.slashes[slash.Name]; taken {
			m.closeDiscarded(ext)
			return fmt.Errorf("slash command %q is already registered by %s", slash.Name, owner)
		}
	}

	m.byName[name.String()] = ext
	m.order = append(m.order, name.String())
	for _, tool := range ext.record.Announcement.Tools {
		m.tools[tool.Name] = name.String()
	}
	for _, slash := range ext.record.Announcement.SlashCommands {
		m.slashes[slash.Name] = name.String()
	}

	if ext.instance != nil && m.events != nil {
		for _, hook := range ext.record.Announcement.EventHooks {
			instance := ext.instance
			event := hook
			m.events.Register(event, name, func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
				return instance.DeliverEvent(ctx, event, payload)
			})
		}
	}
	return nil
}

func (m *ExtensionManager) closeDiscarded(ext *managedExtension) {
	if ext.instance == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ShutdownBudget)
	defer cancel()
	if err := ext.instance.Close(ctx); err != nil {
		m.logger.Warn("failed to close rejected instance",
			"extension", ext.record.Manifest.Name,
			"error", err)
	}
}

// CallTool routes a tool call to the extension that registered it. The
// returned CallID correlates the call with its audit records.
func (m *ExtensionManager) CallTool(ctx context.Context, tool string, input json.RawMessage) (json.RawMessage, values.CallID, error) {
	instance, err := m.lookup(m.tools, tool, "tool")
	if err != nil {
		return nil, values.CallID{}, err
	}
	id := values.NewCallID()
	result, err := instance.CallTool(ctx, tool, input, id)
	return result, id, err
}

// RunSlash routes a slash command to the extension that registered it.
func (m *ExtensionManager) RunSlash(ctx context.Context, command string, args []string) (json.RawMessage, values.CallID, error) {
	instance, err := m.lookup(m.slashes, command, "slash command")
	if err != nil {
		return nil, values.CallID{}, err
	}
	id := values.NewCallID()
	result, err := instance.RunSlash(ctx, command, args, id)
	return result, id, err
}

func (m *ExtensionManager) lookup(index map[string]string, name, kind string) (ports.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("manager is shut down")
	}
	owner, ok := index[name]
	if !ok {
		return nil, fmt.Errorf("no extension registered %s %q", kind, name)
	}
	ext := m.byName[owner]
	if ext == nil || ext.instance == nil {
		return nil, fmt.Errorf("extension %s is not running", owner)
	}
	return ext.instance, nil
}

// EmitEvent delivers an event through the dispatch rules to every
// registered hook.
func (m *ExtensionManager) EmitEvent(ctx context.Context, event string, payload json.RawMessage) (eventsResult json.RawMessage, blocked bool, err error) {
	result, err := m.events.Emit(ctx, event, payload)
	if err != nil {
		return nil, false, err
	}
	return result.Result, result.Blocked(), nil
}

// Extensions lists loaded extensions in adoption order, blocked ones
// included.
func (m *ExtensionManager) Extensions() []ExtensionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]ExtensionRecord, 0, len(m.order))
	for _, name := range m.order {
		records = append(records, m.byName[name].record)
	}
	return records
}

// Extension returns one record by name.
func (m *ExtensionManager) Extension(name values.ExtensionName) (ExtensionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ext, ok := m.byName[name.String()]
	if !ok {
		return ExtensionRecord{}, false
	}
	return ext.record, true
}

// Shutdown closes every instance under the shutdown budget. Safe to
// call more than once; later calls return immediately.
func (m *ExtensionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	closing := make([]*managedExtension, 0, len(m.order))
	for _, name := range m.order {
		if ext := m.byName[name]; ext.instance != nil {
			closing = append(closing, ext)
		}
	}
	m.mu.Unlock()

	if m.events != nil {
		for _, ext := range closing {
			m.events.Unregister(ext.record.Manifest.ExtensionName())
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.ShutdownBudget)
	defer cancel()

	g := new(errgroup.Group)
	for _, ext := range closing {
		g.Go(func() error {
			if err := ext.instance.Close(ctx); err != nil {
				return fmt.Errorf("closing %s: %w", ext.record.Manifest.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
