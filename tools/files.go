package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nvimbridge/nvim-ide-mcp/intel"
)

// registerReadFileTool registers the read_file tool
func registerReadFileTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("read_file",
		mcp.WithDescription("Read a file from disk with line numbers; unsaved buffer edits are not included"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path (relative to the workspace root or absolute)"),
		),
		mcp.WithNumber("start_line",
			mcp.Description("First line of the range (1-indexed, inclusive)"),
		),
		mcp.WithNumber("end_line",
			mcp.Description("Last line of the range (1-indexed, inclusive; capped at the end of the file)"),
		),
		mcp.WithNumber("context_lines",
			mcp.Description("Extra lines around the requested range"),
		),
		mcp.WithBoolean("include_diagnostics",
			mcp.Description("Include language server diagnostics for the requested range"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("read_file: %s", string(requestJson))

		args := request.Params.Arguments
		path := stringArg(args, "path")
		if path == "" {
			return mcp.NewToolResultError("read_file needs a path"), nil
		}

		fc, err := svc.ReadFile(ctx, path,
			intArg(args, "start_line", 0), intArg(args, "end_line", 0),
			intArg(args, "context_lines", 0), boolArg(args, "include_diagnostics", false))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read file: %v", err)), nil
		}
		return jsonResult(fc)
	})
}

// registerSymbolsTool registers the get_symbols tool
func registerSymbolsTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("get_symbols",
		mcp.WithDescription("List the symbols in a file with their hierarchy (classes, functions, methods, ...)"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path to analyze"),
		),
		mcp.WithArray("symbol_types",
			mcp.Description("Keep only these symbol types (e.g. [\"class\", \"function\", \"method\"]); nested matches inside filtered symbols still surface"),
			mcp.Items(map[string]interface{}{"type": "string"}),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("get_symbols: %s", string(requestJson))

		args := request.Params.Arguments
		file := stringArg(args, "file")
		if file == "" {
			return mcp.NewToolResultError("get_symbols needs a file"), nil
		}

		res, err := svc.Symbols(ctx, file, stringSliceArg(args, "symbol_types"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get symbols: %v", err)), nil
		}
		return jsonResult(res)
	})
}

// registerDiagnosticsTool registers the get_diagnostics tool
func registerDiagnosticsTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("get_diagnostics",
		mcp.WithDescription("Get language server diagnostics (errors, warnings, hints) for one file or all open buffers"),
		mcp.WithString("file",
			mcp.Description("File path; omit for diagnostics across all open buffers"),
		),
		mcp.WithArray("severity",
			mcp.Description("Keep only these severities (error, warning, info, hint)"),
			mcp.Items(map[string]interface{}{"type": "string"}),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("get_diagnostics: %s", string(requestJson))

		args := request.Params.Arguments
		res, err := svc.Diagnostics(ctx, stringArg(args, "file"), stringSliceArg(args, "severity"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get diagnostics: %v", err)), nil
		}
		return jsonResult(res)
	})
}

// registerDependenciesTool registers the analyze_dependencies tool
func registerDependenciesTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("analyze_dependencies",
		mcp.WithDescription("Show what a file imports and which workspace files import it"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path to analyze"),
		),
		mcp.WithString("direction",
			mcp.Description("Analysis direction (default both)"),
			mcp.Enum("imports", "imported_by", "both"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("analyze_dependencies: %s", string(requestJson))

		args := request.Params.Arguments
		file := stringArg(args, "file")
		if file == "" {
			return mcp.NewToolResultError("analyze_dependencies needs a file"), nil
		}
		direction := stringArg(args, "direction")
		if direction == "" {
			direction = "both"
		}

		graph, err := svc.Dependencies(ctx, file, direction)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze dependencies: %v", err)), nil
		}
		return jsonResult(graph)
	})
}
