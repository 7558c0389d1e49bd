// SPDX-License-Identifier: MIT

package linux

import (
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

func TestHookApplySetsPdeathsig(t *testing.T) {
	var attr syscall.SysProcAttr
	h := &Hook{}

	if got := h.Name(); got != "linux" {
		t.Errorf("Name() = %q, want %q", got, "linux")
	}
	if err := h.Apply(&attr); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if attr.Pdeathsig != unix.SIGKILL {
		t.Errorf("Pdeathsig = %v, want SIGKILL", attr.Pdeathsig)
	}
}
