// SPDX-License-Identifier: MIT

package unitd

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/unitd-project/unitd/internal/log"
)

// Scheduler is the parallel activation engine of spec §4.3: it walks the
// resolved DAG starting from the root units and fans out to successors as
// each activation completes, bounded by a worker pool (default
// GOMAXPROCS, mirroring the teacher's TurtleFinder.workersem).
type Scheduler struct {
	table *Table
	pids  *PidTable

	numworkers     int
	workersem      *semaphore.Weighted
	notifyDir      string
	defaultTimeout time.Duration

	errMu sync.Mutex
	errs  []error
}

// NewScheduler returns a Scheduler ready to activate units from table.
func NewScheduler(table *Table, pids *PidTable, opts ...NewOption) *Scheduler {
	s := &Scheduler{
		table:          table,
		pids:           pids,
		defaultTimeout: time.Second, // spec §9 Open Question: kept as specified
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numworkers <= 0 {
		s.numworkers = runtime.GOMAXPROCS(0)
	}
	s.workersem = semaphore.NewWeighted(int64(s.numworkers))
	return s
}

// Activate selects every root unit (empty `after`, spec §4.3 step 1) and
// drives activation to quiescence, returning every error collected along
// the way (spec §4.3 step 6, §7 "scheduler errors ... never halt the
// pool").
func (s *Scheduler) Activate(ctx context.Context) []error {
	var wg sync.WaitGroup
	for _, u := range s.table.All() {
		if len(u.Deps().After()) == 0 {
			s.submit(ctx, &wg, u.Id, FanOut)
		}
	}
	wg.Wait()
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return append([]error(nil), s.errs...)
}

// WireExitBridge connects bridge's ServiceExited deltas to this
// scheduler's keep-alive/tear-down policy (spec §9 "PID <-> unit bridge":
// "the signal path mutates only the PID table; all policy ... is
// performed by supervisor workers reacting to those deltas"). bgCtx is
// used for any restart fork this triggers after Activate's own ctx has
// already returned.
func (s *Scheduler) WireExitBridge(bridge *ExitBridge, bgCtx context.Context) {
	bridge.OnServiceExit = func(id UnitId) {
		go s.handleServiceExit(bgCtx, id)
	}
}

// submit dispatches a single activate_unit task to the worker pool,
// acquiring a semaphore slot (a suspension point per spec §5) before
// running. Each submit call adds to wg before acquiring so Activate's
// Wait() can't return while work is still queued.
func (s *Scheduler) submit(ctx context.Context, wg *sync.WaitGroup, id UnitId, src ActivationSource) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.workersem.Acquire(ctx, 1); err != nil {
			s.recordErr(&UnitOperationError{Unit: id, Cause: err})
			return
		}
		defer s.workersem.Release(1)

		result := s.activateUnit(ctx, id, src)
		switch result.kind {
		case resultError:
			s.recordErr(&UnitOperationError{Unit: id, Cause: result.err})
		case resultStarted:
			// Step 4: fan out to every successor. This is the only
			// mechanism that advances the frontier (spec §4.3).
			for _, next := range result.next {
				s.submit(ctx, wg, next, FanOut)
			}
		}
	}()
}

func (s *Scheduler) recordErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.errs = append(s.errs, err)
	log.Warnf("activation error: %v", err)
}

// activateUnit implements spec §4.3 step 3: gate check, idempotence
// check, dispatch to the unit's own activate, and on success the set of
// successors to fan out to.
func (s *Scheduler) activateUnit(ctx context.Context, id UnitId, src ActivationSource) activateResult {
	u := s.table.Get(id)
	if u == nil {
		return activateResult{kind: resultError, err: &GenericStartError{Unit: id}}
	}

	// Gate: every `after` predecessor must satisfy its edge strength.
	for _, pred := range u.Deps().After() {
		predUnit := s.table.Get(pred)
		if predUnit == nil {
			continue
		}
		snap := predUnit.Status().Get()
		if u.Deps().isRequires(pred) {
			if !snap.RequiresSatisfied() {
				return activateResult{kind: resultWaitForDependencies}
			}
		} else if !snap.Runnable() {
			return activateResult{kind: resultWaitForDependencies}
		}
	}

	// Idempotence: already fully started is a no-op; already waiting for
	// socket proceeds only if this call is socket-triggered.
	snap := u.Status().Get()
	if snap.Kind == StartedRunning {
		return activateResult{kind: resultWaitForDependencies}
	}
	if snap.Kind == StartedWaitingForSocket && src != SocketTraffic {
		return activateResult{kind: resultWaitForDependencies}
	}

	var err error
	switch u.Kind {
	case KindService:
		err = s.activateService(ctx, u, src)
	case KindSocket:
		err = s.activateSocket(ctx, u)
	}
	if err != nil {
		u.Status().SetFailed(err)
		return activateResult{kind: resultError, err: err}
	}
	return activateResult{kind: resultStarted, next: u.Deps().Before()}
}

// activateSocket marks a socket unit started. Binding the listener itself
// is performed by the external socket-creation collaborator before the
// table is handed to the scheduler (spec §1); by the time the scheduler
// reaches a socket unit its listener is expected to already be bound, so
// activation here is just the status transition that opens the gate for
// dependent services.
func (s *Scheduler) activateSocket(_ context.Context, u *Unit) error {
	u.Status().Set(StartedRunning)
	return nil
}
