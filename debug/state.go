package debug

import "fmt"

// State is the lifecycle phase of a debug session.
type State int32

const (
	// StateUninitialized is the phase before launch is issued.
	StateUninitialized State = iota
	// StateLaunching means the launch request was accepted and the
	// adapter has not reported ready yet.
	StateLaunching
	// StateRunning means the target is executing.
	StateRunning
	// StatePaused means the target is stopped and inspectable.
	StatePaused
	// StateTerminated means the session ended, by request or by the
	// target exiting.
	StateTerminated
	// StateLost means the editor connection dropped while the session
	// was active.
	StateLost
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateTerminated:
		return "terminated"
	case StateLost:
		return "lost"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateTerminated || s == StateLost
}

// Action is a caller-issued execution control operation.
type Action string

const (
	ActionContinue Action = "continue"
	ActionStepOver Action = "step_over"
	ActionStepInto Action = "step_into"
	ActionStepOut  Action = "step_out"
	ActionPause    Action = "pause"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionContinue, ActionStepOver, ActionStepInto, ActionStepOut, ActionPause:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// StopReason says why a session is paused.
type StopReason string

const (
	StopNone       StopReason = ""
	StopEntry      StopReason = "entry"
	StopBreakpoint StopReason = "breakpoint"
	StopStep       StopReason = "step"
	StopException  StopReason = "exception"
	StopPause      StopReason = "pause"
)

func mapStopReason(reason string) StopReason {
	switch reason {
	case "entry", "breakpoint", "step", "exception", "pause":
		return StopReason(reason)
	case "function breakpoint", "data breakpoint", "instruction breakpoint":
		return StopBreakpoint
	default:
		return StopReason(reason)
	}
}
