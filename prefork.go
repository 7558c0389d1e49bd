// SPDX-License-Identifier: MIT

package unitd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// preparedService holds everything computed before fork for a single start
// attempt: the notification socket, the stdio pipe ends, and the listener
// fds to pass through (spec §4.4 step 3).
type preparedService struct {
	notify     *notifySocket
	stdoutW    *os.File
	stdoutR    *os.File // nil unless PipeSink
	stderrW    *os.File
	stderrR    *os.File
	listenerFD []*os.File
}

// prepareService implements spec §4.4 step 3: create the notification
// socket at a stable, collision-free path under notifyDir, and open the
// stdout/stderr sinks the service is configured with.
func prepareService(notifyDir string, unitName string, stdout, stderr StdioSink) (*preparedService, error) {
	runID := uuid.NewString()
	notifyPath := filepath.Join(notifyDir, fmt.Sprintf("%s-%s.notify", unitName, runID))
	ns, err := newNotifySocket(notifyPath)
	if err != nil {
		return nil, fmt.Errorf("creating notification socket for %s: %w", unitName, err)
	}

	stdoutW, stdoutR, err := stdout.openWriter()
	if err != nil {
		ns.Close()
		return nil, fmt.Errorf("opening stdout sink for %s: %w", unitName, err)
	}
	stderrW, stderrR, err := stderr.openWriter()
	if err != nil {
		ns.Close()
		stdoutW.Close()
		if stdoutR != nil {
			stdoutR.Close()
		}
		return nil, fmt.Errorf("opening stderr sink for %s: %w", unitName, err)
	}

	return &preparedService{
		notify:  ns,
		stdoutW: stdoutW,
		stdoutR: stdoutR,
		stderrW: stderrW,
		stderrR: stderrR,
	}, nil
}
