// SPDX-License-Identifier: MIT

package unitd

import "fmt"

// RunCmdErrorKind tags the RunCmdError variants of spec §7.
type RunCmdErrorKind int

const (
	SpawnError RunCmdErrorKind = iota
	WaitError
	BadExitCode
	Timeout
	ExitBeforeNotify
	GenericCmdError
)

func (k RunCmdErrorKind) String() string {
	switch k {
	case SpawnError:
		return "spawn-error"
	case WaitError:
		return "wait-error"
	case BadExitCode:
		return "bad-exit-code"
	case Timeout:
		return "timeout"
	case ExitBeforeNotify:
		return "exit-before-notify"
	case GenericCmdError:
		return "generic"
	default:
		return "unknown"
	}
}

// RunCmdError reports a failure running a helper or main-exec command
// (spec §7: "Command-run errors").
type RunCmdError struct {
	Kind     RunCmdErrorKind
	Cmd      string
	ExitCode int
	Cause    error
}

func (e *RunCmdError) Error() string {
	switch e.Kind {
	case BadExitCode:
		return fmt.Sprintf("command %q exited with code %d", e.Cmd, e.ExitCode)
	case Timeout:
		return fmt.Sprintf("command %q timed out", e.Cmd)
	case ExitBeforeNotify:
		return fmt.Sprintf("command %q exited before signaling readiness", e.Cmd)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("command %q failed (%s): %v", e.Cmd, e.Kind, e.Cause)
		}
		return fmt.Sprintf("command %q failed (%s)", e.Cmd, e.Kind)
	}
}

func (e *RunCmdError) Unwrap() error { return e.Cause }

// ServiceErrorStage tags which phase of the start/stop machine failed
// (spec §7: "Unit operation errors").
type ServiceErrorStage int

const (
	StagePrestart ServiceErrorStage = iota
	StageStart
	StagePoststart
	StageStop
	StagePoststop
)

func (s ServiceErrorStage) String() string {
	switch s {
	case StagePrestart:
		return "prestart"
	case StageStart:
		return "start"
	case StagePoststart:
		return "poststart"
	case StageStop:
		return "stop"
	case StagePoststop:
		return "poststop"
	default:
		return "unknown"
	}
}

// ServiceErrorReason is the composite error a start/stop transition
// returns. When a cleanup step (poststop) also fails, Cleanup is set
// alongside Primary so both causes are preserved rather than one replacing
// the other (spec §7 policy, e.g. PrestartAndPoststopFailed).
type ServiceErrorReason struct {
	Stage   ServiceErrorStage
	Primary error
	Cleanup error // set only when cleanup (poststop) also failed
}

func (e *ServiceErrorReason) Error() string {
	if e.Cleanup != nil {
		return fmt.Sprintf("%s failed (%v), and cleanup also failed (%v)", e.Stage, e.Primary, e.Cleanup)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Primary)
}

func (e *ServiceErrorReason) Unwrap() []error {
	if e.Cleanup != nil {
		return []error{e.Primary, e.Cleanup}
	}
	return []error{e.Primary}
}

// UnitOperationError wraps a failure acting on a specific unit, e.g. from
// the scheduler's shared error sink.
type UnitOperationError struct {
	Unit  UnitId
	Cause error
}

func (e *UnitOperationError) Error() string {
	return fmt.Sprintf("unit %q: %v", e.Unit.Name, e.Cause)
}

func (e *UnitOperationError) Unwrap() error { return e.Cause }

// GenericStartError reports that activate_unit was asked to activate a
// UnitId no longer present in the table (spec §4.3 step 3).
type GenericStartError struct {
	Unit UnitId
}

func (e *GenericStartError) Error() string {
	return fmt.Sprintf("unit %q not found in table", e.Unit.Name)
}
