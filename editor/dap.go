package editor

import (
	"context"
	"encoding/json"

	"github.com/google/go-dap"

	"github.com/nvimbridge/nvim-ide-mcp/bridge"
)

// LaunchSpec describes a debug target. Exactly one of Program or
// Module must be set.
type LaunchSpec struct {
	Program     string   `json:"program,omitempty"`
	Module      string   `json:"module,omitempty"`
	Args        []string `json:"args,omitempty"`
	StopOnEntry bool     `json:"stop_on_entry"`
	Language    string   `json:"language"`
}

// SourceBreakpoint is one requested breakpoint in a file.
type SourceBreakpoint struct {
	Line      int    `json:"line"`
	Condition string `json:"condition,omitempty"`
}

// AdapterStatus is the polled state of a debug adapter.
type AdapterStatus struct {
	Running       bool `json:"running"`
	StoppedThread int  `json:"stopped_thread"`
	Exited        bool `json:"exited"`
	ExitCode      int  `json:"exit_code"`
}

// DebugEvent is one adapter event forwarded by the editor. Terminal
// marks the end of the stream after connection loss.
type DebugEvent struct {
	Adapter  string
	Event    string
	Body     json.RawMessage
	Terminal bool
}

// DapLaunch starts a debug adapter for the target and returns the
// editor's adapter identifier.
func (e *Editor) DapLaunch(ctx context.Context, spec LaunchSpec) (string, error) {
	var out struct {
		AdapterID string `json:"adapter_id"`
	}
	if err := e.call(ctx, &out, MethodDapLaunch, spec); err != nil {
		return "", err
	}
	return out.AdapterID, nil
}

// DapSetBreakpoints replaces the breakpoints for one source file and
// returns the adapter's per-line verdicts.
func (e *Editor) DapSetBreakpoints(ctx context.Context, adapterID, path string, bps []SourceBreakpoint) ([]dap.Breakpoint, error) {
	if bps == nil {
		bps = []SourceBreakpoint{}
	}
	var out struct {
		Breakpoints []dap.Breakpoint `json:"breakpoints"`
	}
	if err := e.call(ctx, &out, MethodDapSetBreakpoints, adapterID, pathArg(path), bps); err != nil {
		return nil, err
	}
	return out.Breakpoints, nil
}

// DapContinue resumes execution.
func (e *Editor) DapContinue(ctx context.Context, adapterID string) error {
	return e.call(ctx, nil, MethodDapContinue, adapterID)
}

// DapNext steps over the current line.
func (e *Editor) DapNext(ctx context.Context, adapterID string) error {
	return e.call(ctx, nil, MethodDapNext, adapterID)
}

// DapStepIn steps into the call at the current line.
func (e *Editor) DapStepIn(ctx context.Context, adapterID string) error {
	return e.call(ctx, nil, MethodDapStepIn, adapterID)
}

// DapStepOut runs until the current frame returns.
func (e *Editor) DapStepOut(ctx context.Context, adapterID string) error {
	return e.call(ctx, nil, MethodDapStepOut, adapterID)
}

// DapPause interrupts a running target.
func (e *Editor) DapPause(ctx context.Context, adapterID string) error {
	return e.call(ctx, nil, MethodDapPause, adapterID)
}

// DapStackTrace returns the stopped thread's frames.
func (e *Editor) DapStackTrace(ctx context.Context, adapterID string) ([]dap.StackFrame, error) {
	var out dap.StackTraceResponseBody
	if err := e.call(ctx, &out, MethodDapStackTrace, adapterID); err != nil {
		return nil, err
	}
	return out.StackFrames, nil
}

// DapScopes returns the variable scopes of a frame.
func (e *Editor) DapScopes(ctx context.Context, adapterID string, frameID int) ([]dap.Scope, error) {
	var out dap.ScopesResponseBody
	if err := e.call(ctx, &out, MethodDapScopes, adapterID, frameID); err != nil {
		return nil, err
	}
	return out.Scopes, nil
}

// DapVariables expands a variables reference.
func (e *Editor) DapVariables(ctx context.Context, adapterID string, reference int) ([]dap.Variable, error) {
	var out dap.VariablesResponseBody
	if err := e.call(ctx, &out, MethodDapVariables, adapterID, reference); err != nil {
		return nil, err
	}
	return out.Variables, nil
}

// DapEvaluate evaluates an expression in a frame.
func (e *Editor) DapEvaluate(ctx context.Context, adapterID string, frameID int, expression string) (*dap.EvaluateResponseBody, error) {
	var out dap.EvaluateResponseBody
	if err := e.call(ctx, &out, MethodDapEvaluate, adapterID, frameID, expression); err != nil {
		return nil, err
	}
	return &out, nil
}

// DapTerminate tears the adapter down.
func (e *Editor) DapTerminate(ctx context.Context, adapterID string) error {
	return e.call(ctx, nil, MethodDapTerminate, adapterID)
}

// DapStatus queries the adapter state directly, for waits that have no
// event to hang on.
func (e *Editor) DapStatus(ctx context.Context, adapterID string) (AdapterStatus, error) {
	var out AdapterStatus
	if err := e.call(ctx, &out, MethodDapStatus, adapterID); err != nil {
		return AdapterStatus{}, err
	}
	return out, nil
}

// DebugEvents subscribes to the adapter event stream. Events arrive in
// the order the editor sent them; after connection loss one Terminal
// event is delivered and the channel is closed.
func (e *Editor) DebugEvents() <-chan DebugEvent {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()

	ch := make(chan DebugEvent, 64)
	if client == nil {
		ch <- DebugEvent{Terminal: true}
		close(ch)
		return ch
	}
	sub := client.Subscribe(bridge.MatchMethod(EventDebug))
	go func() {
		defer close(ch)
		for ev := range sub.Events() {
			if ev.Method == bridge.EventConnectionLost {
				ch <- DebugEvent{Terminal: true}
				return
			}
			var payload struct {
				Adapter string          `json:"adapter"`
				Event   string          `json:"event"`
				Body    json.RawMessage `json:"body"`
			}
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				e.log.Warnf("editor: dropping malformed debug event: %v", err)
				continue
			}
			ch <- DebugEvent{Adapter: payload.Adapter, Event: payload.Event, Body: payload.Body}
		}
	}()
	return ch
}
