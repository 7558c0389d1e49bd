// SPDX-License-Identifier: MIT

package unitd

import (
	"net"
	"os"
	"strings"
	"sync"

	"github.com/unitd-project/unitd/internal/log"
)

// notifySocket is the Unix datagram endpoint a Notify-type service's
// children use to announce readiness and status (spec §3.3, §6.3).
type notifySocket struct {
	path string
	conn *net.UnixConn

	mu     sync.Mutex
	closed bool
}

// newNotifySocket creates (or recreates, if a stale file is left over from
// a prior keep-alive restart) the datagram endpoint at path.
func newNotifySocket(path string) (*notifySocket, error) {
	_ = os.Remove(path) // best-effort: clear a stale socket from a prior run
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, err
	}
	return &notifySocket{path: path, conn: conn}, nil
}

func (n *notifySocket) Path() string { return n.path }

// readInto parses datagrams as they arrive and applies them to svc,
// forwarding to applyNotifyMessage. It stops when either the connection is
// closed or stop is signaled.
func (n *notifySocket) readInto(svc *ServicePayload, stop <-chan struct{}) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-stop:
			return
		default:
		}
		nread, _, err := n.conn.ReadFromUnix(buf)
		if err != nil {
			if n.isClosed() {
				return
			}
			log.Debugf("notify socket %s: read error: %v", n.path, err)
			continue
		}
		applyNotifyMessage(svc, buf[:nread])
	}
}

func (n *notifySocket) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *notifySocket) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	err := n.conn.Close()
	_ = os.Remove(n.path)
	return err
}

// applyNotifyMessage parses a newline-or-null-separated key=value message
// (spec §6.3) and applies recognized keys to svc. READY=1 transitions
// readiness; STATUS=<text> is appended to the status message log; unknown
// keys are retained as raw strings in the same log for visibility.
func applyNotifyMessage(svc *ServicePayload, data []byte) {
	for _, line := range splitDatagram(data) {
		if line == "" {
			continue
		}
		key, val, found := strings.Cut(line, "=")
		if !found {
			svc.appendStatus(line)
			continue
		}
		switch key {
		case "READY":
			if val == "1" {
				svc.markReady()
			}
		case "STATUS":
			svc.appendStatus(val)
		default:
			svc.appendStatus(line)
		}
	}
}

func splitDatagram(data []byte) []string {
	s := string(data)
	s = strings.ReplaceAll(s, "\x00", "\n")
	return strings.Split(s, "\n")
}
