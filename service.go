// SPDX-License-Identifier: MIT

package unitd

import (
	"sync"

	"github.com/unitd-project/unitd/unitconf"
)

// ServicePayload is the Service-kind variant data (spec §3.3).
type ServicePayload struct {
	Config unitconf.ServiceConfig

	mu            sync.Mutex
	pid           int // 0 when absent
	processGroup  int // 0 when absent
	signaledReady bool
	statusMsgs    []string

	notify *notifySocket // nil until prepareService creates it

	stdout *lineBuffer
	stderr *lineBuffer

	// socketIDs are the listener-owning Socket units paired with this
	// service, populated by the resolver's implicit/explicit pairing
	// step (spec §4.2 step 6).
	socketIDs []UnitId
}

func newServicePayload(cfg unitconf.ServiceConfig) *ServicePayload {
	return &ServicePayload{Config: cfg}
}

func (s *ServicePayload) hasRunningProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid != 0 || s.processGroup != 0
}

func (s *ServicePayload) setRunning(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid = pid
	s.processGroup = pid // new process-group leader == own pid (spec §6.5)
	s.signaledReady = false
	s.statusMsgs = nil
}

func (s *ServicePayload) clearRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid = 0
	s.processGroup = 0
}

func (s *ServicePayload) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

func (s *ServicePayload) ProcessGroup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processGroup
}

func (s *ServicePayload) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signaledReady = true
}

func (s *ServicePayload) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signaledReady
}

func (s *ServicePayload) appendStatus(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusMsgs = append(s.statusMsgs, msg)
}

// StatusMessages returns a copy of the readiness messages received so far.
func (s *ServicePayload) StatusMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.statusMsgs))
	copy(out, s.statusMsgs)
	return out
}
