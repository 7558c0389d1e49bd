// SPDX-License-Identifier: MIT

package unitd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/thediveo/procfsroot"
	"golang.org/x/sys/unix"

	"github.com/unitd-project/unitd/internal/log"
	"github.com/unitd-project/unitd/unitconf"
)

// activateService implements spec §4.4: the service start state machine.
func (s *Scheduler) activateService(ctx context.Context, u *Unit, src ActivationSource) error {
	svc := u.Service

	// Step 1: preconditions.
	if svc.hasRunningProcess() {
		return nil // already running; caller's idempotence check should
		// normally have caught this, but guards against a race.
	}
	if svc.Config.Accept {
		return fmt.Errorf("service %s: inetd-style accept sockets are not supported", u.Id.Name)
	}

	// Step 2: socket-activation deferral.
	if len(svc.socketIDs) > 0 && src != SocketTraffic {
		u.Status().Set(StartedWaitingForSocket)
		return nil
	}

	u.Status().Set(Starting)

	// Step 3: prepare_service.
	stdout := newLineBuffer(logWriter{}, servicePrefix(u.Id.Name, u.Status()))
	stderr := newLineBuffer(logWriter{}, serviceStderrPrefix(u.Id.Name, u.Status()))
	svc.stdout = stdout
	svc.stderr = stderr

	prep, err := prepareService(s.notifyDir, u.Id.Name, PipeSink(), PipeSink())
	if err != nil {
		u.Status().SetFailed(err)
		return err
	}
	prep.listenerFD, err = collectListenerFDs(s.table, svc.socketIDs)
	if err != nil {
		prep.notify.Close()
		u.Status().SetFailed(err)
		return err
	}

	timeout := s.timeoutFor(svc.Config.StartTimeout, svc.Config.GeneralTimeout)

	// Step 4: prestart, with poststop-on-failure cleanup.
	if err := runHelperSequence(ctx, s.pids, u.Id, "prestart", svc.Config.StartPre, svc, timeout); err != nil {
		reason := &ServiceErrorReason{Stage: StagePrestart, Primary: err}
		if cleanupErr := runHelperSequence(ctx, s.pids, u.Id, "poststop", svc.Config.StopPost, svc, timeout); cleanupErr != nil {
			reason.Cleanup = cleanupErr
		}
		prep.notify.Close()
		u.Status().SetFailed(reason)
		return reason
	}

	// Step 5: fork under the PID-table lock, covering fork-and-register
	// so a fast-exiting child cannot be reaped before its PID is known
	// (spec §9 "fast-exit race").
	s.pids.Lock()
	cmd, err := forkService(commandlineOf{Path: svc.Config.Exec.Path, Args: svc.Config.Exec.Args}, prep, u.Id, activeHardeningHook())
	if err != nil {
		s.pids.Unlock()
		prep.notify.Close()
		u.Status().SetFailed(err)
		return err
	}
	s.pids.InsertServiceLocked(cmd.Process.Pid, u.Id)
	s.pids.Unlock()
	svc.setRunning(cmd.Process.Pid)
	svc.notify = prep.notify
	logResolvedExecPath(u.Id.Name, cmd.Process.Pid, svc.Config.Exec.Path)

	// Parent side of the pipes is read by the line buffer and notify
	// goroutines; the child-side ends were handed to the child via
	// ExtraFiles/Stdout/Stderr and must be closed here.
	closePrepChildEnds(prep)

	stopNotify := make(chan struct{})
	go prep.notify.readInto(svc, stopNotify)
	go forwardPipe(prep.stdoutR, stdout)
	go forwardPipe(prep.stderrR, stderr)

	// Step 6: wait_for_service.
	if err := s.waitForService(ctx, svc, timeout); err != nil {
		close(stopNotify)
		// A Notify service that never readied but is still running (a
		// Timeout, not an ExitBeforeNotify) would otherwise be orphaned:
		// the unit transitions to Failed while its process keeps running,
		// untracked by anything past this point.
		if pgid := svc.ProcessGroup(); pgid != 0 {
			if killErr := unix.Kill(-pgid, unix.SIGKILL); killErr != nil {
				log.Warnf("%s: SIGKILL to orphaned process group %d: %v", u.Id.Name, pgid, killErr)
			}
			svc.clearRunning()
		}
		u.Status().SetFailed(err)
		return err
	}

	u.Status().Set(StartedRunning)

	// Step 7: poststart, failure triggers poststop + composite error.
	if err := runHelperSequence(ctx, s.pids, u.Id, "poststart", svc.Config.StartPost, svc, timeout); err != nil {
		reason := &ServiceErrorReason{Stage: StagePoststart, Primary: err}
		if cleanupErr := runHelperSequence(ctx, s.pids, u.Id, "poststop", svc.Config.StopPost, svc, timeout); cleanupErr != nil {
			reason.Cleanup = cleanupErr
		}
		u.Status().SetFailed(reason)
		return reason
	}
	return nil
}

// timeoutFor resolves a configured timeout, falling back to general, then
// to the scheduler's final default (spec §4.5: "fall back to
// general_timeout; final default 1s"). An explicit Infinite timeout at
// either level wins outright (a literal "no deadline" is never overridden
// by a fallback).
func (s *Scheduler) timeoutFor(specific, general unitconf.Timeout) time.Duration {
	const practicallyForever = 365 * 24 * time.Hour
	if specific.Infinite {
		return practicallyForever
	}
	if specific.Duration != 0 {
		return specific.Duration
	}
	if general.Infinite {
		return practicallyForever
	}
	if general.Duration != 0 {
		return general.Duration
	}
	return s.defaultTimeout
}

// waitForService implements spec §4.4 step 6: Simple services are
// considered started once they haven't exited within a brief grace
// window; Notify services block for READY=1 up to start_timeout.
func (s *Scheduler) waitForService(ctx context.Context, svc *ServicePayload, timeout time.Duration) error {
	switch svc.Config.Type {
	case unitconf.Notify:
		deadline := time.After(timeout)
		poll := time.NewTicker(time.Millisecond)
		defer poll.Stop()
		for {
			if svc.isReady() {
				return nil
			}
			if !svc.hasRunningProcess() {
				return &RunCmdError{Kind: ExitBeforeNotify, Cmd: svc.Config.Exec.Path}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-deadline:
				return &RunCmdError{Kind: Timeout, Cmd: svc.Config.Exec.Path}
			case <-poll.C:
			}
		}
	case unitconf.OneShot:
		// A OneShot's "start" is its completion; the exit bridge (not
		// this wait) observes its termination (spec §4.4 stop sequence
		// note: "the exit has already happened in the exit handler").
		return nil
	default: // Simple
		const grace = 50 * time.Millisecond
		select {
		case <-time.After(grace):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// logResolvedExecPath resolves the service's configured binary path through
// the freshly forked child's own "/proc/<pid>/root" wormhole and logs the
// result. A hardening hook (unitd/hardening) may have put the child into a
// different mount namespace via SysProcAttr before exec; walking the
// wormhole is the only way for the supervisor, which stays in its own
// mount namespace, to see the path the child itself actually resolved and
// executed, catching a symlink swapped out from under the configured path.
func logResolvedExecPath(name string, pid int, execPath string) {
	wormhole := "/proc/" + strconv.Itoa(pid) + "/root"
	resolved, err := procfsroot.EvalSymlinks(execPath, wormhole, procfsroot.EvalFullPath)
	if err != nil {
		log.Debugf("%s: could not resolve exec path %s via %s: %v", name, execPath, wormhole, err)
		return
	}
	log.Debugf("%s: exec path resolves to %s%s", name, wormhole, resolved)
}

// collectListenerFDs gathers the bound listener file descriptors for the
// given socket units, in the order they'll be remapped to 3+i.
func collectListenerFDs(table *Table, socketIDs []UnitId) ([]*os.File, error) {
	var files []*os.File
	for _, sid := range socketIDs {
		sockUnit := table.Get(sid)
		if sockUnit == nil || sockUnit.Socket == nil {
			continue
		}
		f, err := sockUnit.Socket.FD()
		if err != nil {
			return nil, fmt.Errorf("collecting listener fd for %s: %w", sid.Name, err)
		}
		files = append(files, f)
	}
	return files, nil
}

// logWriter adapts the supervisor's own logging sink as the final
// destination for line-buffered output (spec §6.4: "Lines written to
// supervisor stdout/stderr").
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Infof("%s", string(p))
	return len(p), nil
}

func forwardPipe(r *os.File, dst *lineBuffer) {
	if r == nil {
		return
	}
	defer r.Close()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			dst.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func closePrepChildEnds(prep *preparedService) {
	// The write ends (stdoutW/stderrW) were duped into the child by
	// os/exec; the parent's copy must be closed so the parent's read end
	// observes EOF once the child exits.
	prep.stdoutW.Close()
	prep.stderrW.Close()
}
