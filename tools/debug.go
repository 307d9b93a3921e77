package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nvimbridge/nvim-ide-mcp/debug"
)

// sessionResponse is the JSON shape the debug tools return for a
// session.
type sessionResponse struct {
	SessionID       string           `json:"session_id"`
	Status          string           `json:"status"`
	File            string           `json:"file,omitempty"`
	Module          string           `json:"module,omitempty"`
	Language        string           `json:"language,omitempty"`
	StopReason      string           `json:"stop_reason,omitempty"`
	ThreadID        int              `json:"thread_id,omitempty"`
	ExitCode        *int             `json:"exit_code,omitempty"`
	Breakpoints     []breakpointInfo `json:"breakpoints"`
	Output          []outputLine     `json:"output"`
	OutputTruncated bool             `json:"output_truncated,omitempty"`
	UptimeSeconds   float64          `json:"uptime_seconds"`
}

type breakpointInfo struct {
	ID        int    `json:"id,omitempty"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Condition string `json:"condition,omitempty"`
}

type outputLine struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

type snapshotResponse struct {
	Status      string      `json:"status"`
	Reason      string      `json:"reason,omitempty"`
	ThreadID    int         `json:"thread_id,omitempty"`
	StackFrames []frameInfo `json:"stack_frames"`
	Scopes      []scopeInfo `json:"scopes"`
	Evaluation  *evalInfo   `json:"evaluation,omitempty"`
}

type frameInfo struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type scopeInfo struct {
	Name      string         `json:"name"`
	Variables []variableInfo `json:"variables"`
}

type variableInfo struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Type      string `json:"type,omitempty"`
	Reference int    `json:"variables_reference,omitempty"`
}

type evalInfo struct {
	Expression string `json:"expression"`
	Value      string `json:"value"`
	Type       string `json:"type,omitempty"`
}

type breakpointUpdateResponse struct {
	File        string             `json:"file"`
	Breakpoints []breakpointResult `json:"breakpoints"`
	Unchanged   bool               `json:"unchanged"`
}

type breakpointResult struct {
	Line      int    `json:"line"`
	Verified  bool   `json:"verified"`
	Condition string `json:"condition,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (o Options) displayPath(path string) string {
	if path != "" && o.Resolver != nil {
		return o.Resolver.Rel(path)
	}
	return path
}

func sessionResponseFrom(info *debug.SessionInfo, opts Options) sessionResponse {
	out := sessionResponse{
		SessionID:       info.ID,
		Status:          info.State.String(),
		File:            opts.displayPath(info.Program),
		Module:          info.Module,
		Language:        info.Language,
		StopReason:      string(info.StopReason),
		ThreadID:        info.StoppedThread,
		ExitCode:        info.ExitCode,
		Breakpoints:     make([]breakpointInfo, 0, len(info.Breakpoints)),
		Output:          make([]outputLine, 0, len(info.Output)),
		OutputTruncated: info.OutputTruncated,
		UptimeSeconds:   time.Since(info.CreatedAt).Seconds(),
	}
	for _, bp := range info.Breakpoints {
		out.Breakpoints = append(out.Breakpoints, breakpointInfo{
			ID:        bp.RemoteID,
			File:      opts.displayPath(bp.Path),
			Line:      bp.Line,
			Condition: bp.Condition,
		})
	}
	for _, line := range info.Output {
		out.Output = append(out.Output, outputLine{Category: line.Category, Text: line.Text})
	}
	return out
}

func snapshotResponseFrom(snap *debug.Snapshot, opts Options) snapshotResponse {
	out := snapshotResponse{
		Status:      "paused",
		Reason:      string(snap.Reason),
		ThreadID:    snap.ThreadID,
		StackFrames: make([]frameInfo, 0, len(snap.Frames)),
		Scopes:      make([]scopeInfo, 0, len(snap.Scopes)),
	}
	for _, f := range snap.Frames {
		out.StackFrames = append(out.StackFrames, frameInfo{
			ID:     f.ID,
			Name:   f.Name,
			File:   opts.displayPath(f.Path),
			Line:   f.Line,
			Column: f.Column,
		})
	}
	for _, sc := range snap.Scopes {
		vars := make([]variableInfo, 0, len(sc.Variables))
		for _, v := range sc.Variables {
			vars = append(vars, variableInfo{Name: v.Name, Value: v.Value, Type: v.Type, Reference: v.Reference})
		}
		out.Scopes = append(out.Scopes, scopeInfo{Name: sc.Name, Variables: vars})
	}
	if snap.Evaluation != nil {
		out.Evaluation = &evalInfo{
			Expression: snap.Evaluation.Expression,
			Value:      snap.Evaluation.Value,
			Type:       snap.Evaluation.Type,
		}
	}
	return out
}

// resolveSession turns an omitted session_id into the session the
// caller most plausibly means: the newest one still alive, else the
// newest overall.
func resolveSession(mgr *debug.Manager, args map[string]interface{}) (string, error) {
	if id := stringArg(args, "session_id"); id != "" {
		return id, nil
	}
	sessions := mgr.List()
	for i := len(sessions) - 1; i >= 0; i-- {
		if !sessions[i].State.Terminal() {
			return sessions[i].ID, nil
		}
	}
	if len(sessions) == 0 {
		return "", fmt.Errorf("no debug session is active")
	}
	return sessions[len(sessions)-1].ID, nil
}

// registerStartDebugTool registers the start_debug_session tool
func registerStartDebugTool(s *server.MCPServer, mgr *debug.Manager, opts Options) {
	tool := mcp.NewTool("start_debug_session",
		mcp.WithDescription("Start a debug session for a file or module"),
		mcp.WithString("file",
			mcp.Description("File to debug (relative to the workspace root). Mutually exclusive with module"),
		),
		mcp.WithString("module",
			mcp.Description("Module to debug (e.g. \"pytest\" for python -m pytest). Mutually exclusive with file"),
		),
		mcp.WithArray("args",
			mcp.Description("Command line arguments for the target"),
			mcp.Items(map[string]interface{}{"type": "string"}),
		),
		mcp.WithArray("breakpoints",
			mcp.Description("Line numbers to break on in the debugged file"),
			mcp.Items(map[string]interface{}{"type": "number"}),
		),
		mcp.WithBoolean("stop_on_entry",
			mcp.Description("Stop at the first line of the target"),
		),
		mcp.WithString("language",
			mcp.Description("Debug adapter language (python, javascript, ...); inferred from the file extension when omitted"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("start_debug_session: %s", string(requestJson))

		args := request.Params.Arguments
		launch := debug.LaunchConfig{
			Program:     stringArg(args, "file"),
			Module:      stringArg(args, "module"),
			Args:        stringSliceArg(args, "args"),
			StopOnEntry: boolArg(args, "stop_on_entry", false),
			Language:    stringArg(args, "language"),
		}

		info, err := mgr.Start(ctx, launch)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to start debug session: %v", err)), nil
		}

		if lines := intSliceArg(args, "breakpoints"); len(lines) > 0 && launch.Program != "" {
			requested := make([]debug.RequestedBreakpoint, 0, len(lines))
			for _, l := range lines {
				requested = append(requested, debug.RequestedBreakpoint{Line: l})
			}
			if _, err := mgr.SetBreakpoints(ctx, info.ID, launch.Program, requested); err != nil {
				opts.Logger.Warnf("start_debug_session: initial breakpoints: %v", err)
			} else if fresh, err := mgr.Info(info.ID); err == nil {
				info = fresh
			}
		}
		return jsonResult(sessionResponseFrom(info, opts))
	})
}

// registerControlExecutionTool registers the control_execution tool
func registerControlExecutionTool(s *server.MCPServer, mgr *debug.Manager, opts Options) {
	tool := mcp.NewTool("control_execution",
		mcp.WithDescription("Control debug execution flow"),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("continue, step_over, step_into, step_out, pause or stop"),
			mcp.Enum("continue", "step_over", "step_into", "step_out", "pause", "stop"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to control (default: the active session)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("control_execution: %s", string(requestJson))

		args := request.Params.Arguments
		sessionID, err := resolveSession(mgr, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var info *debug.SessionInfo
		if name := stringArg(args, "action"); name == "stop" {
			info, err = mgr.Terminate(ctx, sessionID)
		} else {
			var action debug.Action
			action, err = debug.ParseAction(name)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			info, err = mgr.ControlExecution(ctx, sessionID, action)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to control execution: %v", err)), nil
		}
		return jsonResult(sessionResponseFrom(info, opts))
	})
}

// registerInspectStateTool registers the inspect_state tool
func registerInspectStateTool(s *server.MCPServer, mgr *debug.Manager, opts Options) {
	tool := mcp.NewTool("inspect_state",
		mcp.WithDescription("Inspect a paused session: call stack, scoped variables and an optional expression evaluation"),
		mcp.WithString("session_id",
			mcp.Description("Session to inspect (default: the active session)"),
		),
		mcp.WithString("expression",
			mcp.Description("Expression to evaluate in the top frame"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("inspect_state: %s", string(requestJson))

		args := request.Params.Arguments
		sessionID, err := resolveSession(mgr, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		snap, err := mgr.InspectState(ctx, sessionID, stringArg(args, "expression"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to inspect state: %v", err)), nil
		}
		return jsonResult(snapshotResponseFrom(snap, opts))
	})
}

// registerSetBreakpointsTool registers the set_breakpoints tool
func registerSetBreakpointsTool(s *server.MCPServer, mgr *debug.Manager, opts Options) {
	tool := mcp.NewTool("set_breakpoints",
		mcp.WithDescription("Set the breakpoints for a file in a debug session; the given lines replace the file's previous set"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path (relative to the workspace root)"),
		),
		mcp.WithArray("lines",
			mcp.Required(),
			mcp.Description("Line numbers to break on (1-indexed); an empty list clears the file's breakpoints"),
			mcp.Items(map[string]interface{}{"type": "number"}),
		),
		mcp.WithArray("conditions",
			mcp.Description("Conditional breakpoints, each {line, condition}; the breakpoint only triggers when the condition is true"),
			mcp.Items(map[string]interface{}{"type": "object"}),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to update (default: the active session)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("set_breakpoints: %s", string(requestJson))

		args := request.Params.Arguments
		file := stringArg(args, "file")
		if file == "" {
			return mcp.NewToolResultError("set_breakpoints needs a file"), nil
		}
		if _, ok := args["lines"]; !ok {
			return mcp.NewToolResultError("set_breakpoints needs a lines array"), nil
		}
		sessionID, err := resolveSession(mgr, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		conditions := make(map[int]string)
		if rawConds, ok := args["conditions"].([]interface{}); ok {
			for _, rc := range rawConds {
				m, ok := rc.(map[string]interface{})
				if !ok {
					continue
				}
				if line := intArg(m, "line", 0); line > 0 {
					conditions[line], _ = m["condition"].(string)
				}
			}
		}
		lines := intSliceArg(args, "lines")
		requested := make([]debug.RequestedBreakpoint, 0, len(lines))
		for _, l := range lines {
			requested = append(requested, debug.RequestedBreakpoint{Line: l, Condition: conditions[l]})
		}

		update, err := mgr.SetBreakpoints(ctx, sessionID, file, requested)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to set breakpoints: %v", err)), nil
		}

		out := breakpointUpdateResponse{
			File:        opts.displayPath(update.Path),
			Breakpoints: make([]breakpointResult, 0, len(update.Breakpoints)),
			Unchanged:   update.Unchanged,
		}
		for _, bp := range update.Breakpoints {
			out.Breakpoints = append(out.Breakpoints, breakpointResult{
				Line:      bp.Line,
				Verified:  bp.Verified,
				Condition: bp.Condition,
				Message:   bp.Message,
			})
		}
		return jsonResult(out)
	})
}

// registerSessionInfoTool registers the get_debug_session_info tool
func registerSessionInfoTool(s *server.MCPServer, mgr *debug.Manager, opts Options) {
	tool := mcp.NewTool("get_debug_session_info",
		mcp.WithDescription("Get a debug session's state, breakpoints and captured output"),
		mcp.WithString("session_id",
			mcp.Description("Session to query (default: the active session). Terminated sessions stay queryable"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("get_debug_session_info: %s", string(requestJson))

		sessionID, err := resolveSession(mgr, request.Params.Arguments)
		if err != nil {
			return jsonResult(map[string]string{"status": "no_session"})
		}
		info, err := mgr.Info(sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get session info: %v", err)), nil
		}
		return jsonResult(sessionResponseFrom(info, opts))
	})
}
