// SPDX-License-Identifier: MIT

package unitd

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/unitd-project/unitd/unitconf"
)

// SocketPayload is the Socket-kind variant data (spec §3.4). The listener
// itself is created by an external collaborator (spec §1: "socket creation
// primitives" are out of scope); this payload only bookkeeps the resulting
// descriptor and the names of services it activates.
type SocketPayload struct {
	Config unitconf.SocketConfig

	mu       sync.RWMutex
	listener fdOwner // nil until Bind is called
	services []UnitId
}

// fdOwner is the minimal surface this package needs from whatever concrete
// listener type the socket-creation collaborator hands back.
type fdOwner interface {
	File() (*os.File, error)
}

func newSocketPayload(cfg unitconf.SocketConfig) *SocketPayload {
	return &SocketPayload{Config: cfg}
}

// Bind installs the already-opened listener this socket unit owns. It is
// called once by the external socket-creation collaborator before the
// scheduler admits the unit for activation.
func (s *SocketPayload) Bind(l fdOwner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Listener returns the bound listener, or nil if Bind was never called.
func (s *SocketPayload) Listener() fdOwner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener
}

// FD returns the listener's file descriptor, for passing to a forked
// service child.
func (s *SocketPayload) FD() (*os.File, error) {
	s.mu.RLock()
	l := s.listener
	s.mu.RUnlock()
	if l == nil {
		return nil, fmt.Errorf("socket has no bound listener")
	}
	return l.File()
}

func (s *SocketPayload) addService(id UnitId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.services {
		if existing.Equal(id) {
			return
		}
	}
	s.services = append(s.services, id)
}

// Services returns the services this socket activates.
func (s *SocketPayload) Services() []UnitId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UnitId, len(s.services))
	copy(out, s.services)
	return out
}

var _ fdOwner = (*net.UnixListener)(nil)
var _ fdOwner = (*net.TCPListener)(nil)
