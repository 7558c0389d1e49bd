// SPDX-License-Identifier: MIT

package unitd

import "time"

// NewOption represents options to NewScheduler when creating a new
// activation scheduler.
type NewOption func(*Scheduler)

// WithWorkers sets the maximum number of units activated in parallel. A
// maximum of zero or less is taken as GOMAXPROCS instead (spec §5 default
// of 6 is the package-level default; callers wanting that exact historical
// default should pass WithWorkers(6) explicitly).
func WithWorkers(num int) NewOption {
	return func(s *Scheduler) {
		s.numworkers = num
	}
}

// WithNotifyDir sets the directory notification sockets are created under.
func WithNotifyDir(dir string) NewOption {
	return func(s *Scheduler) {
		s.notifyDir = dir
	}
}

// WithHelperTimeout sets the fallback timeout applied to helper commands
// when neither a specific nor a general timeout is configured on the unit.
func WithHelperTimeout(d time.Duration) NewOption {
	return func(s *Scheduler) {
		s.defaultTimeout = d
	}
}
