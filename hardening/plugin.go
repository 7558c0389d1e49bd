// SPDX-License-Identifier: MIT

// Package hardening defines the plugin interface for the OS-specific
// post-fork hardening hook spec §1 treats as an opaque external
// collaborator (cgroups, capabilities, namespaces). Concrete hooks are
// registered by platform-specific sub-packages (see hardening/linux) and
// aggregated for blank-import via hardening/all, mirroring the teacher's
// activator/detector plugin pattern.
package hardening

import "syscall"

// Hook contributes OS-specific isolation to a service child's process
// attributes. Since Go cannot run arbitrary code between fork and exec,
// a Hook mutates the SysProcAttr the Go runtime applies atomically during
// its own fork+exec, rather than running as literal child-side code (spec
// §4.4 step 1's "invoke the OS-specific post-fork hook").
type Hook interface {
	// Name identifies the hook for logging and plugin selection.
	Name() string
	// Apply mutates attr to request the hook's isolation. An error here
	// is equivalent to spec §4.4 step 1's "failure -> exit(1)": the start
	// attempt is aborted before fork.
	Apply(attr *syscall.SysProcAttr) error
}
