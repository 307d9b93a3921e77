package debug

import (
	"context"
	"time"

	"github.com/google/go-dap"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
)

// Adapter is the debug surface of the editor the orchestrator drives.
// *editor.Editor implements it; tests substitute a scripted fake.
type Adapter interface {
	DapLaunch(ctx context.Context, spec editor.LaunchSpec) (string, error)
	DapSetBreakpoints(ctx context.Context, adapterID, path string, bps []editor.SourceBreakpoint) ([]dap.Breakpoint, error)
	DapContinue(ctx context.Context, adapterID string) error
	DapNext(ctx context.Context, adapterID string) error
	DapStepIn(ctx context.Context, adapterID string) error
	DapStepOut(ctx context.Context, adapterID string) error
	DapPause(ctx context.Context, adapterID string) error
	DapStackTrace(ctx context.Context, adapterID string) ([]dap.StackFrame, error)
	DapScopes(ctx context.Context, adapterID string, frameID int) ([]dap.Scope, error)
	DapVariables(ctx context.Context, adapterID string, reference int) ([]dap.Variable, error)
	DapEvaluate(ctx context.Context, adapterID string, frameID int, expression string) (*dap.EvaluateResponseBody, error)
	DapTerminate(ctx context.Context, adapterID string) error
	DapStatus(ctx context.Context, adapterID string) (editor.AdapterStatus, error)
	DebugEvents() <-chan editor.DebugEvent
}

// LaunchConfig describes what to debug. Exactly one of Program or
// Module must be set.
type LaunchConfig struct {
	Program     string
	Module      string
	Args        []string
	StopOnEntry bool
	// Language picks the debug adapter. Inferred from Program's
	// extension when empty; module targets default to python.
	Language string
}

// Breakpoint is one confirmed breakpoint.
type Breakpoint struct {
	Path      string
	Line      int
	Condition string
	RemoteID  int
}

// RequestedBreakpoint is one line a caller asked to break on.
type RequestedBreakpoint struct {
	Line      int
	Condition string
}

// BreakpointResult is the per-line verdict for one requested
// breakpoint.
type BreakpointResult struct {
	Line      int
	Condition string
	Verified  bool
	// Message carries the adapter's reason when Verified is false.
	Message string
}

// BreakpointUpdate is the outcome of a set-breakpoints call.
type BreakpointUpdate struct {
	Path        string
	Breakpoints []BreakpointResult
	// Unchanged is true when the requested set matched the confirmed
	// set and nothing was sent to the adapter.
	Unchanged bool
}

// StackFrame is one frame of a paused target.
type StackFrame struct {
	ID     int
	Name   string
	Path   string
	Line   int
	Column int
}

// Variable is one variable in a scope.
type Variable struct {
	Name      string
	Value     string
	Type      string
	Reference int
}

// ScopeVars is one scope with its variables.
type ScopeVars struct {
	Name      string
	Variables []Variable
}

// EvalResult is the outcome of evaluating an expression in the top
// frame.
type EvalResult struct {
	Expression string
	Value      string
	Type       string
}

// Snapshot is the inspectable state of a paused session. It stays
// valid until the next resume.
type Snapshot struct {
	Reason     StopReason
	ThreadID   int
	Frames     []StackFrame
	Scopes     []ScopeVars
	Evaluation *EvalResult
	CapturedAt time.Time
}

// OutputLine is one captured line of target output.
type OutputLine struct {
	Category string
	Text     string
}

// SessionInfo is a point-in-time copy of a session's observable state.
type SessionInfo struct {
	ID            string
	State         State
	Program       string
	Module        string
	Language      string
	StopReason    StopReason
	StoppedThread int
	// ExitCode is set once the target exited.
	ExitCode        *int
	Breakpoints     []Breakpoint
	Output          []OutputLine
	OutputTruncated bool
	CreatedAt       time.Time
}

func frameFromDAP(f dap.StackFrame) StackFrame {
	out := StackFrame{
		ID:     f.Id,
		Name:   f.Name,
		Line:   f.Line,
		Column: f.Column,
	}
	if f.Source != nil {
		out.Path = f.Source.Path
	}
	return out
}

func variableFromDAP(v dap.Variable) Variable {
	return Variable{
		Name:      v.Name,
		Value:     v.Value,
		Type:      v.Type,
		Reference: v.VariablesReference,
	}
}
