// SPDX-License-Identifier: MIT

package unitd

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/unitd-project/unitd/internal/log"
	"github.com/unitd-project/unitd/internal/slicesx"
	"github.com/unitd-project/unitd/unitconf"
)

// StopService implements spec §4.4's stop sequence (kill(S)). It is
// idempotent: stopping a service that is already stopped is a no-op that
// returns success (spec §8 property 9).
func (s *Scheduler) StopService(ctx context.Context, u *Unit) error {
	svc := u.Service
	if !svc.hasRunningProcess() {
		return nil
	}
	timeout := s.timeoutFor(svc.Config.StopTimeout, svc.Config.GeneralTimeout)

	// Step 1: run the configured stop command set, if any.
	stopErr := runHelperSequence(ctx, s.pids, u.Id, "stop", cmdlineSlice(svc.Config.Stop), svc, timeout)

	// Step 2: always run poststop, combine errors if both fail.
	poststopErr := runHelperSequence(ctx, s.pids, u.Id, "poststop", svc.Config.StopPost, svc, timeout)

	if stopErr != nil || poststopErr != nil {
		reason := &ServiceErrorReason{Stage: StageStop, Primary: stopErr}
		if poststopErr != nil {
			reason.Cleanup = poststopErr
		}
		if stopErr == nil {
			reason.Primary = poststopErr
			reason.Cleanup = nil
		}
		log.Warnf("%s: stop sequence error: %v", u.Id.Name, reason)
	}

	// Step 3: for non-OneShot services, SIGKILL the process group and
	// run the OS-specific kill hook equivalent (hardening hooks in this
	// module only contribute to fork-time SysProcAttr, so there is no
	// separate post-hoc kill hook to invoke here beyond the signal).
	if svc.Config.Type != unitconf.OneShot {
		if pgid := svc.ProcessGroup(); pgid != 0 {
			if err := unix.Kill(-pgid, unix.SIGKILL); err != nil {
				log.Warnf("%s: SIGKILL to process group %d: %v", u.Id.Name, pgid, err)
			}
		}
	}

	// Step 4: clear pid/process_group.
	svc.clearRunning()
	if svc.notify != nil {
		svc.notify.Close()
		svc.notify = nil
	}
	u.Status().Set(Stopped)
	return nil
}

func cmdlineSlice(cl unitconf.Commandline) []unitconf.Commandline {
	if cl.Path == "" {
		return nil
	}
	return []unitconf.Commandline{cl}
}

// handleServiceExit implements spec §4.7 step 2's policy half and the
// keep-alive design of spec §4.4: on a main-process exit, either restart
// in place (keep_alive) or tear down the unit's required_by set. It is
// invoked by the supervisor worker reacting to an ExitBridge wakeup, never
// from the signal-handling goroutine itself (spec §9 "PID <-> unit
// bridge").
func (s *Scheduler) handleServiceExit(ctx context.Context, id UnitId) {
	u := s.table.Get(id)
	if u == nil || u.Service == nil {
		return
	}
	svc := u.Service
	svc.clearRunning()

	if svc.Config.KeepAlive {
		u.Status().Set(Starting)
		var wg sync.WaitGroup
		s.submit(ctx, &wg, id, FanOut)
		wg.Wait()
		return
	}

	u.Status().SetFailed(errServiceExitedUnexpectedly(id))
	for _, dependent := range u.Deps().RequiredBy() {
		s.tearDown(ctx, dependent)
	}
}

func (s *Scheduler) tearDown(ctx context.Context, id UnitId) {
	u := s.table.Get(id)
	if u == nil {
		return
	}
	switch u.Kind {
	case KindService:
		_ = s.StopService(ctx, u)
	case KindSocket:
		// A socket going away mid-run shouldn't leave dangling fd
		// references in any service still paired with it.
		s.unpairSocket(u.Id)
	}
	u.Status().Set(Stopped)
	for _, dependent := range u.Deps().RequiredBy() {
		s.tearDown(ctx, dependent)
	}
}

// unpairSocket removes sockID from every service's paired-socket list,
// used when a socket unit is torn down independently of the services it
// activates.
func (s *Scheduler) unpairSocket(sockID UnitId) {
	for _, u := range s.table.All() {
		if u.Kind != KindService || u.Service == nil {
			continue
		}
		u.Service.mu.Lock()
		u.Service.socketIDs = slicesx.DeleteAndZeroFunc(u.Service.socketIDs, func(id UnitId) bool {
			return id.Equal(sockID)
		})
		u.Service.mu.Unlock()
	}
}

func errServiceExitedUnexpectedly(id UnitId) error {
	return &UnitOperationError{Unit: id, Cause: errExitedUnexpectedly}
}

var errExitedUnexpectedly = unexpectedExitError{}

type unexpectedExitError struct{}

func (unexpectedExitError) Error() string { return "service exited unexpectedly" }
