// SPDX-License-Identifier: MIT

package unitd

// ActivationSource distinguishes whether an activation call originated
// from the scheduler's normal fan-out or from socket traffic arriving on
// a deferred service's socket (spec §4.3's "this call originates from
// socket traffic" gate, made an explicit type rather than an implicit
// bool per SPEC_FULL.md §12, grounded on rustysd's activate.rs/services.rs
// distinction between a plain activation and one triggered by accept()).
type ActivationSource int

const (
	FanOut ActivationSource = iota
	SocketTraffic
)

// activateResultKind tags the outcome of a single activate_unit call
// (spec §4.3 step 3).
type activateResultKind int

const (
	resultWaitForDependencies activateResultKind = iota
	resultStarted
	resultError
)

type activateResult struct {
	kind activateResultKind
	next []UnitId // successors to fan out to, only set when kind == resultStarted
	err  error
}
