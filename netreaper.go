package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/netreaper/sdk/bridge"
	"github.com/netreaper/sdk/capability"
	"github.com/netreaper/sdk/config"
	"github.com/netreaper/sdk/diag"
	"github.com/netreaper/sdk/exec"
	"github.com/netreaper/sdk/feature"
	"github.com/netreaper/sdk/job"
	"github.com/netreaper/sdk/relay"
)

// Core provides the main SDK interface for embedding NetReaper's
// launcher runtime. It owns the capability snapshot, the feature
// matrix and its resolver, and the job manager, and wires them
// together so that jobs are gated by resolved feature support.
//
// The Core coordinates between:
//   - Capabilities: probed facts about the host (OS, privileges, tools)
//   - Features: matrix entries resolved to enabled or disabled per host
//   - Jobs: gated execution pipelines emitting ordered lifecycle events
//   - Diagnostics: self-test probes and the support-state export
//
// A Core is single-use: create it with NewCore, Start it, run jobs,
// and Shutdown. A shut-down Core cannot be restarted.
type Core struct {
	logger    *slog.Logger
	cfg       *config.Config
	matrix    *feature.Matrix
	resolver  *feature.Resolver
	manager   *job.Manager
	probeOpts []capability.Option

	snapshot atomic.Pointer[capability.Snapshot]

	mu          sync.Mutex
	started     bool
	closed      bool
	relay       *relay.Relay
	ownRelay    bool
	relayDetach func()
}

// NewCore creates a new NetReaper core instance. The core is inert
// until Start probes the host and begins accepting jobs.
//
// Example:
//
//	core, err := sdk.NewCore(
//	    sdk.WithLogger(logger),
//	    sdk.WithConfig("/path/to/reaper.yaml"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := core.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer core.Shutdown(context.Background())
func NewCore(opts ...Option) (*Core, error) {
	cfg := &coreConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var fileCfg *config.Config
	if cfg.configPath != "" {
		loaded, err := config.Load(cfg.configPath)
		if err != nil {
			return nil, NewConfigurationError("NewCore", err)
		}
		fileCfg = loaded
	}
	if fileCfg == nil {
		fileCfg = &config.Config{}
	}

	// Create default logger if not provided
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: fileCfg.GetLogLevel(),
		}))
	}

	matrix := cfg.matrix
	if matrix == nil {
		matrix = feature.DefaultMatrix()
	}
	if path := fileCfg.Features.GetOverlay(); path != "" {
		defs, err := feature.LoadOverlay(path)
		if err != nil {
			return nil, NewConfigurationError("NewCore", err)
		}
		matrix.Merge(defs...)
	}
	if len(cfg.overlayDefs) > 0 {
		matrix.Merge(cfg.overlayDefs...)
	}

	c := &Core{
		logger:   cfg.logger,
		cfg:      fileCfg,
		matrix:   matrix,
		resolver: feature.NewResolver(matrix),
		relay:    cfg.relay,
		probeOpts: []capability.Option{
			capability.WithLogger(cfg.logger.With(slog.String("component", "capability"))),
		},
	}

	historyLimit := fileCfg.Jobs.GetHistoryLimit()
	if cfg.historyLimit != nil {
		historyLimit = *cfg.historyLimit
	}

	managerOpts := []job.ManagerOption{
		job.WithLogger(cfg.logger.With(slog.String("component", "job-manager"))),
		job.WithGate(job.GateFunc(c.featureStatus)),
	}
	if historyLimit > 0 {
		managerOpts = append(managerOpts, job.WithHistoryLimit(historyLimit))
	}
	if cfg.deliverer != nil {
		managerOpts = append(managerOpts, job.WithDeliverer(cfg.deliverer))
	}
	if cfg.tracer != nil {
		managerOpts = append(managerOpts, job.WithTracer(cfg.tracer))
	}
	if cfg.meter != nil {
		managerOpts = append(managerOpts, job.WithMeter(cfg.meter))
	}
	c.manager = job.NewManager(managerOpts...)

	return c, nil
}

// Start probes the host for an initial capability snapshot and, when
// the configuration enables it, connects the event relay. It must be
// called before Run, Resolve, or SelfTest.
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("core cannot be restarted: %w", ErrManagerClosed)
	}
	if c.started {
		return ErrAlreadyStarted
	}

	c.logger.Info("starting core")
	snap := capability.Detect(ctx, c.probeOpts...)
	c.snapshot.Store(snap)

	if c.relay == nil && c.cfg.Relay.IsEnabled() {
		r, err := relay.New(relay.Options{
			URL:           c.cfg.Relay.GetURL(),
			EventList:     c.cfg.Relay.GetEventList(),
			ResultList:    c.cfg.Relay.GetResultList(),
			EventChannel:  c.cfg.Relay.GetEventChannel(),
			ResultChannel: c.cfg.Relay.GetResultChannel(),
			MaxListLength: c.cfg.Relay.GetMaxListLength(),
			Logger:        c.logger,
		})
		if err != nil {
			return NewNetworkError("Core.Start", err)
		}
		c.relay = r
		c.ownRelay = true
	}
	if c.relay != nil {
		c.relayDetach = c.relay.Attach(c.manager)
	}

	c.started = true
	c.logger.Info("core started",
		slog.String("platform", snap.Platform),
		slog.String("os", snap.OSKey()),
		slog.Bool("is_admin", snap.IsAdmin),
		slog.Int("tools", len(snap.Tools)),
	)
	return nil
}

// Shutdown stops all running jobs, waits for workers to drain, and
// releases the event relay. Calling Shutdown on a core that never
// started is a no-op. After Shutdown the core cannot be restarted.
func (c *Core) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}

	c.logger.Info("shutting down core")
	err := c.manager.Close()

	if c.relayDetach != nil {
		c.relayDetach()
		c.relayDetach = nil
	}
	if c.ownRelay && c.relay != nil {
		CloseWithLog(c.relay, c.logger, "event relay")
		c.relay = nil
	}

	c.started = false
	c.closed = true
	c.logger.Info("core stopped")

	if err != nil {
		return NewTimeoutError("Core.Shutdown", err)
	}
	return nil
}

// Capabilities returns the most recent capability snapshot, or nil
// before Start has run.
func (c *Core) Capabilities() *capability.Snapshot {
	return c.snapshot.Load()
}

// RefreshCapabilities probes the host again and atomically replaces
// the snapshot consulted by feature resolution and the job gate. Jobs
// already past their gate check are unaffected.
func (c *Core) RefreshCapabilities(ctx context.Context) *capability.Snapshot {
	snap := capability.Detect(ctx, c.probeOpts...)
	c.snapshot.Store(snap)
	c.logger.Info("capability snapshot refreshed",
		slog.String("os", snap.OSKey()),
		slog.Bool("is_admin", snap.IsAdmin),
	)
	return snap
}

// Matrix returns the feature matrix in effect, including any merged
// overlays.
func (c *Core) Matrix() *feature.Matrix {
	return c.matrix
}

// Resolve evaluates one feature key against the current capability
// snapshot. Returns ErrNotStarted before Start and ErrFeatureNotFound
// for keys without a matrix entry.
func (c *Core) Resolve(featureKey string) (feature.Resolution, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return feature.Resolution{}, ErrNotStarted
	}
	return c.resolver.Resolve(featureKey, snap)
}

// ResolveAll evaluates every matrix entry against the current
// capability snapshot. Returns ErrNotStarted before Start.
func (c *Core) ResolveAll() (map[string]feature.Resolution, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, ErrNotStarted
	}
	return c.resolver.ResolveAll(snap), nil
}

// Run submits a job spec to the manager and returns its job ID. Specs
// carrying a FeatureKey are checked against the current capability
// snapshot first and finish blocked when the feature is disabled.
// Returns ErrNotStarted before Start and ErrManagerClosed after
// Shutdown.
func (c *Core) Run(spec job.Spec) (string, error) {
	started, closed := c.runState()
	if closed {
		return "", ErrManagerClosed
	}
	if !started {
		return "", ErrNotStarted
	}
	return c.manager.Run(spec)
}

// Command builds a job execute step from an external command
// configuration. When the command sets no grace period of its own, the
// configured job stop grace is applied, so cancelled commands get the
// same interrupt-then-kill window everywhere.
func (c *Core) Command(execCfg exec.Config) job.ExecuteFunc {
	if execCfg.GracePeriod == 0 {
		execCfg.GracePeriod = c.cfg.Jobs.GetStopGrace()
	}
	return job.Command(execCfg)
}

// History returns completed job results in completion order, oldest
// first.
func (c *Core) History() []job.Result {
	return c.manager.History()
}

// ResultByID returns the completed result for the given job ID.
// Returns ErrJobNotFound when no such result exists.
func (c *Core) ResultByID(jobID string) (job.Result, error) {
	return c.manager.ResultByID(jobID)
}

// ActiveJobs returns the IDs of jobs that have been submitted but not
// yet finished.
func (c *Core) ActiveJobs() []string {
	return c.manager.ActiveJobs()
}

// StopAll cancels every running job. Each cancelled job still finishes
// its lifecycle and lands in the history with a failed result.
func (c *Core) StopAll() {
	c.manager.StopAll()
}

// OnEvent registers a handler for job lifecycle events. The returned
// function unsubscribes it.
func (c *Core) OnEvent(handler func(job.Event)) (unsubscribe func()) {
	return c.manager.OnEvent(handler)
}

// OnResult registers a handler for completed job results. The returned
// function unsubscribes it.
func (c *Core) OnResult(handler func(job.Result)) (unsubscribe func()) {
	return c.manager.OnResult(handler)
}

// SelfTest verifies the negative paths of the capability gate: every
// feature resolved disabled gets a probe job that must be blocked
// before execution, and the given UI states are cross-checked against
// the resolved support. Returns ErrNotStarted before Start.
func (c *Core) SelfTest(ctx context.Context, states []diag.Affordance) (*diag.Report, error) {
	support, err := c.ResolveAll()
	if err != nil {
		return nil, err
	}
	harness := diag.NewHarness(c.manager, support,
		diag.WithTimeout(c.cfg.Diagnostics.GetProbeTimeout()),
		diag.WithLogger(c.logger.With(slog.String("component", "diag"))),
	)
	return harness.SelfTest(ctx, states), nil
}

// Diagnostics assembles a support-state export from the current
// snapshot, the full feature matrix, all resolutions, and the job
// history. Returns ErrNotStarted before Start.
func (c *Core) Diagnostics(ctx context.Context) (*diag.Export, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, ErrNotStarted
	}
	support := c.resolver.ResolveAll(snap)
	return diag.NewExport(ctx, snap, c.matrix, support, c.manager.History()), nil
}

// WriteDiagnostics writes the diagnostics export as indented JSON to
// the given path. An empty path falls back to the configured export
// path.
func (c *Core) WriteDiagnostics(ctx context.Context, path string) error {
	export, err := c.Diagnostics(ctx)
	if err != nil {
		return err
	}
	if path == "" {
		path = c.cfg.Diagnostics.GetExportPath()
	}
	return export.WriteFile(path)
}

// CheckBridge runs WSL backend diagnostics for the given distribution
// name. An empty distro selects the default distribution. Only
// meaningful on Windows hosts; elsewhere the report states that WSL is
// unavailable.
func (c *Core) CheckBridge(ctx context.Context, distro string) *bridge.Report {
	return bridge.Diagnose(ctx, distro,
		bridge.WithLogger(c.logger.With(slog.String("component", "bridge"))))
}

// Config returns the loaded configuration. Never nil; cores built
// without WithConfig get an empty configuration whose getters return
// defaults.
func (c *Core) Config() *config.Config {
	return c.cfg
}

// Relay returns the attached event relay, or nil when none is
// configured or Start has not connected one yet.
func (c *Core) Relay() *relay.Relay {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relay
}

func (c *Core) runState() (started, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started, c.closed
}

// featureStatus is the capability gate wired into the job manager. It
// resolves the feature key against the snapshot current at gate time.
func (c *Core) featureStatus(featureKey string) (bool, string, string) {
	snap := c.snapshot.Load()
	if snap == nil {
		return false, "Capability detection has not run", ""
	}
	res, err := c.resolver.Resolve(featureKey, snap)
	if err != nil {
		return false, fmt.Sprintf("Unknown feature %q", featureKey), ""
	}
	return res.Enabled, res.Reason, res.RecommendedPath
}
