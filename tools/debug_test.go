package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvimbridge/nvim-ide-mcp/debug"
	"github.com/nvimbridge/nvim-ide-mcp/editor"
)

const debugScript = "import sys\n\nprint(sys.argv)\n"

// fakeAdapter is a scripted debug.Adapter. Its default status reports
// the target running, so start_debug_session completes without any
// scripted event.
type fakeAdapter struct {
	mu     sync.Mutex
	events chan editor.DebugEvent

	counts          map[string]int
	launches        []editor.LaunchSpec
	lastBreakpoints []editor.SourceBreakpoint

	status     editor.AdapterStatus
	frames     []dap.StackFrame
	scopes     []dap.Scope
	variables  map[int][]dap.Variable
	evalResult dap.EvaluateResponseBody
}

var _ debug.Adapter = (*fakeAdapter)(nil)

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		events:    make(chan editor.DebugEvent, 256),
		counts:    make(map[string]int),
		status:    editor.AdapterStatus{Running: true},
		variables: make(map[int][]dap.Variable),
	}
}

func (a *fakeAdapter) inc(name string) {
	a.mu.Lock()
	a.counts[name]++
	a.mu.Unlock()
}

func (a *fakeAdapter) count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[name]
}

func (a *fakeAdapter) launched(i int) editor.LaunchSpec {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launches[i]
}

func (a *fakeAdapter) sentBreakpoints() []editor.SourceBreakpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]editor.SourceBreakpoint(nil), a.lastBreakpoints...)
}

func (a *fakeAdapter) emit(t *testing.T, adapterID, event string, body interface{}) {
	t.Helper()
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		raw = b
	}
	a.events <- editor.DebugEvent{Adapter: adapterID, Event: event, Body: raw}
}

func (a *fakeAdapter) DapLaunch(ctx context.Context, spec editor.LaunchSpec) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts["launch"]++
	a.launches = append(a.launches, spec)
	return fmt.Sprintf("adapter-%d", len(a.launches)), nil
}

func (a *fakeAdapter) DapSetBreakpoints(ctx context.Context, adapterID, path string, bps []editor.SourceBreakpoint) ([]dap.Breakpoint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts["setBreakpoints"]++
	a.lastBreakpoints = append([]editor.SourceBreakpoint(nil), bps...)
	out := make([]dap.Breakpoint, len(bps))
	for i, b := range bps {
		out[i] = dap.Breakpoint{Id: i + 1, Verified: true, Line: b.Line}
	}
	return out, nil
}

func (a *fakeAdapter) DapContinue(ctx context.Context, adapterID string) error {
	a.inc("continue")
	return nil
}

func (a *fakeAdapter) DapNext(ctx context.Context, adapterID string) error {
	a.inc("next")
	return nil
}

func (a *fakeAdapter) DapStepIn(ctx context.Context, adapterID string) error {
	a.inc("stepIn")
	return nil
}

func (a *fakeAdapter) DapStepOut(ctx context.Context, adapterID string) error {
	a.inc("stepOut")
	return nil
}

func (a *fakeAdapter) DapPause(ctx context.Context, adapterID string) error {
	a.inc("pause")
	return nil
}

func (a *fakeAdapter) DapStackTrace(ctx context.Context, adapterID string) ([]dap.StackFrame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts["stackTrace"]++
	return append([]dap.StackFrame(nil), a.frames...), nil
}

func (a *fakeAdapter) DapScopes(ctx context.Context, adapterID string, frameID int) ([]dap.Scope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts["scopes"]++
	return append([]dap.Scope(nil), a.scopes...), nil
}

func (a *fakeAdapter) DapVariables(ctx context.Context, adapterID string, reference int) ([]dap.Variable, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts["variables"]++
	return append([]dap.Variable(nil), a.variables[reference]...), nil
}

func (a *fakeAdapter) DapEvaluate(ctx context.Context, adapterID string, frameID int, expression string) (*dap.EvaluateResponseBody, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts["evaluate"]++
	res := a.evalResult
	return &res, nil
}

func (a *fakeAdapter) DapTerminate(ctx context.Context, adapterID string) error {
	a.inc("terminate")
	return nil
}

func (a *fakeAdapter) DapStatus(ctx context.Context, adapterID string) (editor.AdapterStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts["status"]++
	return a.status, nil
}

func (a *fakeAdapter) DebugEvents() <-chan editor.DebugEvent {
	return a.events
}

type sessionJSON struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	File      string `json:"file"`
	Module    string `json:"module"`
	Language  string `json:"language"`
	ThreadID  int    `json:"thread_id"`
	Breakpoints []struct {
		ID        int    `json:"id"`
		File      string `json:"file"`
		Line      int    `json:"line"`
		Condition string `json:"condition"`
	} `json:"breakpoints"`
	Output []struct {
		Category string `json:"category"`
		Text     string `json:"text"`
	} `json:"output"`
}

func startSession(t *testing.T, s *server.MCPServer, args map[string]interface{}) sessionJSON {
	t.Helper()
	text, isErr := callTool(t, s, "start_debug_session", args)
	require.False(t, isErr, "start_debug_session failed: %s", text)
	var sess sessionJSON
	decodeResult(t, text, &sess)
	return sess
}

// awaitToolStatus polls get_debug_session_info until the active
// session reports the wanted status.
func awaitToolStatus(t *testing.T, s *server.MCPServer, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		text, isErr, err := rawCallTool(s, "get_debug_session_info", map[string]interface{}{})
		if err != nil || isErr {
			return false
		}
		var got struct {
			Status string `json:"status"`
		}
		if json.Unmarshal([]byte(text), &got) != nil {
			return false
		}
		return got.Status == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartDebugSessionTool(t *testing.T) {
	s, _, fa, root := newTestServer(t)
	writeWorkspaceFile(t, root, "app.py", debugScript)

	sess := startSession(t, s, map[string]interface{}{
		"file":          "app.py",
		"breakpoints":   []interface{}{3},
		"stop_on_entry": true,
	})

	assert.True(t, strings.HasPrefix(sess.SessionID, "session-"), "unexpected session id %q", sess.SessionID)
	assert.Equal(t, "running", sess.Status)
	assert.Equal(t, "app.py", sess.File)
	assert.Equal(t, "python", sess.Language)
	require.Len(t, sess.Breakpoints, 1)
	assert.Equal(t, 1, sess.Breakpoints[0].ID)
	assert.Equal(t, "app.py", sess.Breakpoints[0].File)
	assert.Equal(t, 3, sess.Breakpoints[0].Line)
	assert.NotNil(t, sess.Output)

	assert.True(t, fa.launched(0).StopOnEntry)
	assert.Equal(t, 1, fa.count("setBreakpoints"))
}

func TestStartDebugSessionToolRequiresTarget(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	text, isErr := callTool(t, s, "start_debug_session", map[string]interface{}{})
	assert.True(t, isErr)
	assert.Contains(t, text, "exactly one of program or module")
}

func TestControlExecutionStopResolvesActiveSession(t *testing.T) {
	s, _, fa, root := newTestServer(t)
	writeWorkspaceFile(t, root, "app.py", debugScript)
	startSession(t, s, map[string]interface{}{"file": "app.py"})

	text, isErr := callTool(t, s, "control_execution", map[string]interface{}{"action": "stop"})
	require.False(t, isErr, "control_execution failed: %s", text)

	var sess sessionJSON
	decodeResult(t, text, &sess)
	assert.Equal(t, "terminated", sess.Status)
	assert.Equal(t, 1, fa.count("terminate"))
}

func TestControlExecutionNoSession(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	text, isErr := callTool(t, s, "control_execution", map[string]interface{}{"action": "continue"})
	assert.True(t, isErr)
	assert.Contains(t, text, "no debug session is active")
}

func TestControlExecutionRejectsUnknownAction(t *testing.T) {
	s, _, _, root := newTestServer(t)
	writeWorkspaceFile(t, root, "app.py", debugScript)
	startSession(t, s, map[string]interface{}{"file": "app.py"})

	text, isErr := callTool(t, s, "control_execution", map[string]interface{}{"action": "resume"})
	assert.True(t, isErr)
	assert.Contains(t, text, `unknown action "resume"`)
}

func TestSetBreakpointsToolConditions(t *testing.T) {
	s, _, fa, root := newTestServer(t)
	writeWorkspaceFile(t, root, "app.py", debugScript)
	startSession(t, s, map[string]interface{}{"file": "app.py"})

	args := map[string]interface{}{
		"file":  "app.py",
		"lines": []interface{}{3, 5},
		"conditions": []interface{}{
			map[string]interface{}{"line": 5, "condition": "x > 2"},
		},
	}
	text, isErr := callTool(t, s, "set_breakpoints", args)
	require.False(t, isErr, "set_breakpoints failed: %s", text)

	var upd struct {
		File        string `json:"file"`
		Breakpoints []struct {
			Line      int    `json:"line"`
			Verified  bool   `json:"verified"`
			Condition string `json:"condition"`
		} `json:"breakpoints"`
		Unchanged bool `json:"unchanged"`
	}
	decodeResult(t, text, &upd)
	assert.Equal(t, "app.py", upd.File)
	assert.False(t, upd.Unchanged)
	require.Len(t, upd.Breakpoints, 2)
	assert.Equal(t, 3, upd.Breakpoints[0].Line)
	assert.True(t, upd.Breakpoints[0].Verified)
	assert.Empty(t, upd.Breakpoints[0].Condition)
	assert.Equal(t, 5, upd.Breakpoints[1].Line)
	assert.True(t, upd.Breakpoints[1].Verified)
	assert.Equal(t, "x > 2", upd.Breakpoints[1].Condition)

	sent := fa.sentBreakpoints()
	require.Len(t, sent, 2)
	assert.Equal(t, editor.SourceBreakpoint{Line: 3}, sent[0])
	assert.Equal(t, editor.SourceBreakpoint{Line: 5, Condition: "x > 2"}, sent[1])

	// The identical set again is answered without an adapter round trip.
	text, isErr = callTool(t, s, "set_breakpoints", args)
	require.False(t, isErr, "set_breakpoints failed: %s", text)
	decodeResult(t, text, &upd)
	assert.True(t, upd.Unchanged)
	assert.Equal(t, 1, fa.count("setBreakpoints"))
}

func TestSetBreakpointsToolValidation(t *testing.T) {
	s, _, _, root := newTestServer(t)
	writeWorkspaceFile(t, root, "app.py", debugScript)
	startSession(t, s, map[string]interface{}{"file": "app.py"})

	text, isErr := callTool(t, s, "set_breakpoints", map[string]interface{}{"lines": []interface{}{3}})
	assert.True(t, isErr)
	assert.Contains(t, text, "needs a file")

	text, isErr = callTool(t, s, "set_breakpoints", map[string]interface{}{"file": "app.py"})
	assert.True(t, isErr)
	assert.Contains(t, text, "needs a lines array")
}

func TestInspectStateTool(t *testing.T) {
	s, _, fa, root := newTestServer(t)
	prog := writeWorkspaceFile(t, root, "app.py", debugScript)
	startSession(t, s, map[string]interface{}{"file": "app.py"})

	fa.mu.Lock()
	fa.frames = []dap.StackFrame{{
		Id: 1, Name: "main", Line: 3, Column: 1,
		Source: &dap.Source{Path: prog},
	}}
	fa.scopes = []dap.Scope{{Name: "Locals", VariablesReference: 100}}
	fa.variables[100] = []dap.Variable{{Name: "x", Value: "41", Type: "int"}}
	fa.evalResult = dap.EvaluateResponseBody{Result: "42", Type: "int"}
	fa.mu.Unlock()

	fa.emit(t, "adapter-1", "stopped", dap.StoppedEventBody{Reason: "breakpoint", ThreadId: 1})
	awaitToolStatus(t, s, "paused")

	text, isErr := callTool(t, s, "inspect_state", map[string]interface{}{"expression": "x + 1"})
	require.False(t, isErr, "inspect_state failed: %s", text)

	var snap struct {
		Status      string `json:"status"`
		Reason      string `json:"reason"`
		ThreadID    int    `json:"thread_id"`
		StackFrames []struct {
			Name string `json:"name"`
			File string `json:"file"`
			Line int    `json:"line"`
		} `json:"stack_frames"`
		Scopes []struct {
			Name      string `json:"name"`
			Variables []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
				Type  string `json:"type"`
			} `json:"variables"`
		} `json:"scopes"`
		Evaluation *struct {
			Expression string `json:"expression"`
			Value      string `json:"value"`
			Type       string `json:"type"`
		} `json:"evaluation"`
	}
	decodeResult(t, text, &snap)
	assert.Equal(t, "paused", snap.Status)
	assert.Equal(t, "breakpoint", snap.Reason)
	assert.Equal(t, 1, snap.ThreadID)
	require.Len(t, snap.StackFrames, 1)
	assert.Equal(t, "main", snap.StackFrames[0].Name)
	assert.Equal(t, "app.py", snap.StackFrames[0].File)
	assert.Equal(t, 3, snap.StackFrames[0].Line)
	require.Len(t, snap.Scopes, 1)
	assert.Equal(t, "Locals", snap.Scopes[0].Name)
	require.Len(t, snap.Scopes[0].Variables, 1)
	assert.Equal(t, "x", snap.Scopes[0].Variables[0].Name)
	assert.Equal(t, "41", snap.Scopes[0].Variables[0].Value)
	require.NotNil(t, snap.Evaluation)
	assert.Equal(t, "x + 1", snap.Evaluation.Expression)
	assert.Equal(t, "42", snap.Evaluation.Value)
	assert.Equal(t, "int", snap.Evaluation.Type)
}

func TestSessionInfoToolNoSession(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	text, isErr := callTool(t, s, "get_debug_session_info", map[string]interface{}{})
	require.False(t, isErr, "get_debug_session_info failed: %s", text)

	var got map[string]string
	decodeResult(t, text, &got)
	assert.Equal(t, map[string]string{"status": "no_session"}, got)
}

func TestSessionInfoToolAfterTermination(t *testing.T) {
	s, _, _, root := newTestServer(t)
	writeWorkspaceFile(t, root, "app.py", debugScript)
	started := startSession(t, s, map[string]interface{}{"file": "app.py"})

	_, isErr := callTool(t, s, "control_execution", map[string]interface{}{"action": "stop"})
	require.False(t, isErr)

	text, isErr := callTool(t, s, "get_debug_session_info", map[string]interface{}{})
	require.False(t, isErr, "get_debug_session_info failed: %s", text)

	var sess sessionJSON
	decodeResult(t, text, &sess)
	assert.Equal(t, started.SessionID, sess.SessionID)
	assert.Equal(t, "terminated", sess.Status)
}
