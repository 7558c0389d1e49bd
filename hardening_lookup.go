// SPDX-License-Identifier: MIT

package unitd

import (
	"syscall"

	"github.com/thediveo/go-plugger/v3"

	"github.com/unitd-project/unitd/hardening"
)

// activeHardeningHook returns the first registered hardening.Hook, or nil
// if none is registered (e.g. the caller didn't blank-import
// unitd/hardening/all). Mirrors the teacher's query-plugins-once-at-
// construction pattern (turtlefinder.New's namegivers/activators lookup).
func activeHardeningHook() func(*syscall.SysProcAttr) error {
	hooks := plugger.Group[hardening.Hook]().PluginsSymbols()
	if len(hooks) == 0 {
		return nil
	}
	hook := hooks[0].S
	return hook.Apply
}
