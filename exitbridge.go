// SPDX-License-Identifier: MIT

package unitd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/unitd-project/unitd/internal/log"
)

// ExitBridge translates SIGCHLD delivery into PID-table deltas, bridging
// asynchronous kernel events back into supervisor state (spec §2, §4.7).
// It never performs non-trivial work while holding the PID-table lock
// (spec §4.7: "the bridge never blocks on non-trivial work while holding
// the lock") — it only records the termination and hands back a wakeup.
type ExitBridge struct {
	pids *PidTable

	sigC chan os.Signal
	stop chan struct{}
	wg   sync.WaitGroup

	// OnServiceExit is invoked (off the signal-handling goroutine is not
	// guaranteed; callers needing async dispatch should do so themselves)
	// whenever a Service entry transitions to ServiceExited.
	OnServiceExit func(id UnitId)
}

// NewExitBridge returns a bridge wired to pids. Run must be called to
// begin processing SIGCHLD.
func NewExitBridge(pids *PidTable) *ExitBridge {
	return &ExitBridge{
		pids: pids,
		sigC: make(chan os.Signal, 64),
		stop: make(chan struct{}),
	}
}

// Run installs the SIGCHLD handler and processes reaped children until
// Close is called. It is meant to be run in its own goroutine.
func (b *ExitBridge) Run() {
	signal.Notify(b.sigC, syscall.SIGCHLD)
	defer signal.Stop(b.sigC)

	b.wg.Add(1)
	defer b.wg.Done()

	for {
		select {
		case <-b.stop:
			return
		case <-b.sigC:
			b.reapAll()
		}
	}
}

// reapAll drains every currently-reapable child via a non-blocking
// wait4(WNOHANG) loop, since a single SIGCHLD can coalesce multiple
// terminations.
func (b *ExitBridge) reapAll() {
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		term := Termination{}
		if ws.Exited() {
			term.ExitCode = ws.ExitStatus()
		} else if ws.Signaled() {
			term.Signaled = true
			term.Signal = int(ws.Signal())
		}
		b.handleExit(pid, term)
	}
}

// handleExit implements spec §4.7 steps 1-4.
func (b *ExitBridge) handleExit(pid int, term Termination) {
	entry, ok := b.pids.MarkExited(pid, term)
	if !ok {
		// Either an unknown descendant (step 1) or an already-exited
		// entry the table just dropped (step 4).
		log.Debugf("exit bridge: pid %d not tracked, ignoring", pid)
		return
	}
	switch {
	case entry.IsServiceExited():
		if b.OnServiceExit != nil {
			b.OnServiceExit(entry.Unit())
		}
	case entry.IsHelperExited():
		// Consumed by the helper runner's poll loop; nothing to do here.
	}
}

// Close stops signal delivery and waits for Run to return.
func (b *ExitBridge) Close() {
	close(b.stop)
	b.wg.Wait()
}
