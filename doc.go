// Package sdk provides the embeddable core runtime for NetReaper.
//
// The NetReaper SDK carries the launcher logic of the NetReaper desktop
// application: it probes what the host can actually do, resolves which
// features should be offered, and runs security tooling as gated,
// observable jobs. Frontends embed the Core and stay thin; everything
// that decides, launches, or records lives here.
//
// # Core Concepts
//
// The SDK is organized around several key concepts:
//
//   - Capabilities: facts probed from the host, such as the operating
//     system, privilege level, installed tools, and WSL presence
//   - Features: operations the application can offer, declared in a
//     matrix of per-OS support levels, tool and privilege requirements
//   - Resolution: the verdict for one feature on one host, with a
//     human-readable reason and a recommended path when disabled
//   - Jobs: execution pipelines that gate on feature support, run an
//     external command or a function, parse its output, and emit
//     ordered lifecycle events
//   - Diagnostics: self-test probes proving disabled features cannot
//     run, and a JSON export of the full support state
//
// # Architecture
//
// The SDK follows a layered architecture:
//
//   - capability: host probing into an immutable Snapshot
//   - feature: the support matrix and the Resolver that applies a
//     Snapshot to it
//   - job: the gated job manager with its event and result streams
//   - exec: external command execution with two-phase termination
//   - bridge: WSL backend diagnostics for Windows hosts
//   - relay: optional mirroring of job traffic into Redis
//   - diag: the self-test harness and the diagnostics export
//   - config: reaper.yaml loading
//   - telemetry: OpenTelemetry trace and meter wiring
//
// The root package ties these together behind the Core facade.
//
// # Getting Started
//
// Create a core, start it, and submit jobs:
//
//	import "github.com/netreaper/sdk"
//
//	core, err := sdk.NewCore(
//		sdk.WithConfig("/etc/netreaper/reaper.yaml"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := core.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer core.Shutdown(context.Background())
//
//	jobID, err := core.Run(job.Spec{
//		Name:       "Standard scan",
//		Category:   "discovery",
//		FeatureKey: "discovery.nmap_standard",
//		Execute:    core.Command(exec.Config{Command: "nmap", Args: []string{"-T4", "192.0.2.1"}}),
//		Parse:      parseScan,
//		UIUpdate:   renderScan,
//	})
//
// # Feature Gating
//
// Jobs that name a FeatureKey are checked against the capability
// snapshot before anything executes. A disabled feature produces a
// blocked result carrying the resolved reason and recommendation, and
// the execute step is never invoked:
//
//	res, err := core.Resolve("wireless.monitor_mode")
//	if err == nil && !res.Enabled {
//		fmt.Println(res.Reason)          // why it is off
//		fmt.Println(res.RecommendedPath) // what to do instead
//	}
//
// # Error Handling
//
// The SDK uses sentinel errors and structured error types for robust
// error handling:
//
//	if err != nil {
//		if errors.Is(err, sdk.ErrFeatureNotFound) {
//			// Handle unknown feature key
//		}
//		// Handle other errors
//	}
//
// # Observability
//
// Job executions are spanned and counted through OpenTelemetry when a
// tracer or meter is supplied; the telemetry package builds providers
// for embedders that do not bring their own:
//
//	provider, err := telemetry.New(ctx, telemetry.Options{Exporter: exporter})
//	core, err := sdk.NewCore(
//		sdk.WithTracer(provider.Tracer("netreaper")),
//		sdk.WithMeter(provider.Meter("netreaper")),
//	)
//
// # Thread Safety
//
// All Core methods are safe for concurrent use. Job event and result
// handlers are invoked from worker goroutines; embedders that must
// touch UI state from them should install a deliverer with
// WithDeliverer to route callbacks onto their main thread.
package sdk
