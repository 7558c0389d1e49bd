// SPDX-License-Identifier: MIT

// Package linux registers the Linux post-fork hardening hook.
package linux

import (
	"syscall"

	"github.com/thediveo/go-plugger/v3"
	"golang.org/x/sys/unix"

	"github.com/unitd-project/unitd/hardening"
)

func init() {
	plugger.Group[hardening.Hook]().Register(
		&Hook{}, plugger.WithPlugin("linux"))
}

// Hook requests that the kernel send SIGKILL to the service child if its
// parent (the supervisor) dies first, a best-effort substitute for the
// cgroup/capability/namespace isolation the original post-fork hook
// performs — those require either privileges or setup this module's scope
// deliberately excludes (spec §1: "OS-specific post-fork hardening ...
// the core invokes an opaque hook").
type Hook struct{}

func (h *Hook) Name() string { return "linux" }

func (h *Hook) Apply(attr *syscall.SysProcAttr) error {
	attr.Pdeathsig = unix.SIGKILL
	return nil
}
