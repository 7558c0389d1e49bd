/*
Package unitd is a service supervisor inspired by the init-and-unit-file
tradition. It resolves a dependency graph between declarative service and
socket units, activates them in parallel as soon as their prerequisites
are satisfied, forks and supervises their processes through the full
lifecycle, and tears them down on demand or on failure.

# Core Responsibilities

The package covers:

  - the unit dependency model and its graph operations: cycle detection,
    implicit-edge derivation, socket/service pairing,
  - the parallel activation scheduler that walks the dependency DAG,
  - the service start/stop state machine, including the pre-fork/fork/exec
    sequence with inherited file descriptors and readiness notifications,
  - the PID table and signal-driven child-exit handling that bridges
    asynchronous kernel events back into supervisor state.

# Quick Start

	table := unitd.NewTable()
	// admit units parsed by unitd/unitfile, then:
	if err := unitd.Resolve(table); err != nil {
		// configuration error: unresolved name, or a *unitd.CirclesFound
	}
	pids := unitd.NewPidTable()
	bridge := unitd.NewExitBridge(pids)
	go bridge.Run()
	sched := unitd.NewScheduler(table, pids, unitd.WithNotifyDir("/run/unitd"))
	sched.WireExitBridge(bridge, context.Background())
	errs := sched.Activate(context.Background())

# Out of Scope

The unit-file text parser, socket creation primitives, the logging sink
and CLI surface, and OS-specific post-fork hardening are treated as
external collaborators the core consumes through narrow interfaces (see
unitd/unitfile, unitd/hardening, and cmd/unitd for this module's own
implementations of those collaborators).
*/
package unitd
