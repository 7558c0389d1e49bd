// SPDX-License-Identifier: MIT

package unitd

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// forkService constructs and starts the child process for a service start
// attempt, implementing the post-fork child sequence of spec §4.4 through
// Go's `os/exec` + `syscall.SysProcAttr` rather than a literal
// fork()/setpgid()/dup2()/execvp() sequence: the Go runtime cannot safely
// run arbitrary Go code between fork and exec (DESIGN.md Open Question
// resolution). Each step below is annotated with the spec step it
// replaces.
//
// Must be called with pids locked; the caller inserts the PID-table entry
// immediately after Start() returns, still holding the lock (spec §4.4
// step 5, §9 "fast-exit race").
//
// hardenAttr implements step 1 (the OS-specific post-fork hook). Since Go
// cannot run arbitrary code in the child between fork and exec, the hook
// instead contributes to SysProcAttr before Start() is called — the
// closest idiomatic equivalent available (e.g. a Pdeathsig, a Cloneflags
// namespace request); see unitd/hardening.
func forkService(cmdline commandlineOf, prep *preparedService, id UnitId, hardenAttr func(*syscall.SysProcAttr) error) (*exec.Cmd, error) {
	// Step 7 (execvp) + step 6 (LISTEN_PID): Go can't know the child's
	// PID before Start() returns, but LISTEN_PID must equal it. A small
	// shell shim captures the shell's own PID (which becomes the child's
	// PID once it execs into the real binary, since exec never changes
	// PID) and exports it before handing off.
	shimArgs := append([]string{cmdline.Path}, cmdline.Args...)
	cmd := exec.Command("/bin/sh", append([]string{"-c",
		`LISTEN_PID=$$; export LISTEN_PID; exec "$@"`, "--"}, shimArgs...)...)

	// Step 2 (setpgid(0,0)): new process-group leader, PGID == child PID.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
	if hardenAttr != nil {
		if err := hardenAttr(cmd.SysProcAttr); err != nil {
			return nil, fmt.Errorf("hardening %s: exit(1) equivalent: %w", id.Name, err)
		}
	}

	// Step 3 (dup2 onto fd 1/2).
	cmd.Stdout = prep.stdoutW
	cmd.Stderr = prep.stderrW

	// Step 4 (remap listener fds to 3+i, clear CLOEXEC): os/exec's
	// ExtraFiles places each file at fd 3+i in the child and, because
	// Start() itself performs the fork+exec, the descriptors are valid
	// exactly across that boundary without any separate CLOEXEC-clearing
	// step on our part.
	cmd.ExtraFiles = prep.listenerFD

	// Step 6 (LISTEN_FDS, NOTIFY_SOCKET — LISTEN_PID is set by the shim
	// above): env is inherited by the shell, not the raw syscall, but
	// since these are set before fork (via Cmd.Env, consumed by the
	// parent's ForkExec) rather than mutated in the child after fork,
	// there is no dead-thread env-lock hazard (spec §5 "fork safety"
	// concerns the child mutating process-wide state post-fork; setting
	// Cmd.Env is a parent-side, pre-fork operation).
	cmd.Env = append(os.Environ(),
		"LISTEN_FDS="+strconv.Itoa(len(prep.listenerFD)),
		"NOTIFY_SOCKET="+prep.notify.Path(),
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", id.Name, err)
	}
	return cmd, nil
}

// commandlineOf is the minimal shape forkService needs from
// unitconf.Commandline, named locally to keep this file's signature
// readable without importing unitconf just for one field pair.
type commandlineOf struct {
	Path string
	Args []string
}
