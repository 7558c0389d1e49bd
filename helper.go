// SPDX-License-Identifier: MIT

package unitd

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unitd-project/unitd/internal/log"
	"github.com/unitd-project/unitd/unitconf"
)

// runHelper spawns a single prestart/poststart/stop/poststop command
// (spec §4.5), waits for it through the PID table (not cmd.Wait, so the
// exit bridge remains the single source of truth for child termination),
// enforces timeout, and folds its output into svc's line buffers.
func runHelper(ctx context.Context, pids *PidTable, id UnitId, label string, cl unitconf.Commandline, svc *ServicePayload, timeout time.Duration) error {
	if cl.Path == "" {
		return nil // unconfigured helper stage is a no-op
	}
	cmd := exec.Command(cl.Path, cl.Args...)
	cmd.Stdout = svc.stdout
	cmd.Stderr = svc.stderr

	pids.Lock()
	if err := cmd.Start(); err != nil {
		pids.Unlock()
		return wrapHelperErr(cl, RunCmdError{Kind: SpawnError, Cmd: cl.Path, Cause: err})
	}
	pid := cmd.Process.Pid
	pids.InsertHelper(pid, id, label)
	pids.Unlock()

	term, err := waitForHelperChild(ctx, pids, pid, timeout)
	if err != nil {
		_ = cmd.Process.Kill()
		return err
	}
	if term.ExitCode != 0 && !cl.IgnoreFailure {
		return wrapHelperErr(cl, RunCmdError{Kind: BadExitCode, Cmd: cl.Path, ExitCode: term.ExitCode})
	}
	return nil
}

func wrapHelperErr(cl unitconf.Commandline, e RunCmdError) error {
	err := e
	return &err
}

// errHelperStillRunning is the transient sentinel fed to backoff.Retry
// while a helper's exit hasn't yet surfaced in the PID table.
var errHelperStillRunning = errors.New("helper still running")

// waitForHelperChild polls the PID table with exponential backoff (50µs
// start, doubling, capped at 10ms) for a Helper -> HelperExited
// transition, consuming the termination once seen (spec §4.5). It
// enforces timeout by SIGKILLing and returning a Timeout error if no
// transition occurs in time.
func waitForHelperChild(ctx context.Context, pids *PidTable, pid int, timeout time.Duration) (Termination, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Microsecond
	bo.MaxInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = timeout
	bo.Multiplier = 2

	var term Termination
	err := backoff.Retry(func() error {
		entry, ok := pids.ConsumeHelperExit(pid)
		if !ok {
			return errHelperStillRunning
		}
		term = entry.Termination()
		return nil
	}, backoff.WithContext(bo, ctx))

	if err == nil {
		return term, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Termination{}, ctxErr
	}
	return Termination{}, &RunCmdError{Kind: Timeout}
}

// runHelperSequence runs a sequence of helper commands (e.g. StartPre)
// serially, stopping at the first failure (spec §4.4 step 4).
func runHelperSequence(ctx context.Context, pids *PidTable, id UnitId, label string, cls []unitconf.Commandline, svc *ServicePayload, timeout time.Duration) error {
	for _, cl := range cls {
		if err := runHelper(ctx, pids, id, label, cl, svc, timeout); err != nil {
			log.Warnf("%s %s: %v", id.Name, label, err)
			return err
		}
	}
	return nil
}
