package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nvimbridge/nvim-ide-mcp/intel"
)

// registerFindDefinitionTool registers the find_definition tool
func registerFindDefinitionTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("find_definition",
		mcp.WithDescription("Find where a symbol is defined, with signature, docstring and surrounding code lines"),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Symbol name to find the definition for"),
		),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File where the symbol appears (relative to the workspace root or absolute)"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Line number (1-indexed) where the symbol appears"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("find_definition: %s", string(requestJson))

		args := request.Params.Arguments
		symbol := stringArg(args, "symbol")
		file := stringArg(args, "file")
		line := intArg(args, "line", 0)
		if symbol == "" || file == "" || line < 1 {
			return mcp.NewToolResultError("find_definition needs symbol, file and line"), nil
		}

		def, err := svc.FindDefinition(ctx, symbol, file, line)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to find definition: %v", err)), nil
		}
		return jsonResult(def)
	})
}

// registerFindReferencesTool registers the find_references tool
func registerFindReferencesTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("find_references",
		mcp.WithDescription("Find all references to a symbol, with context lines and per-file grouping"),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Symbol name to find references for"),
		),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File where the symbol appears"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Line number (1-indexed) where the symbol appears"),
		),
		mcp.WithString("scope",
			mcp.Description("Search scope: 'file' keeps only references in the queried file, 'project' searches the whole workspace"),
			mcp.Enum("file", "package", "project"),
		),
		mcp.WithBoolean("exclude_definition",
			mcp.Description("Exclude the definition itself from the results"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("find_references: %s", string(requestJson))

		args := request.Params.Arguments
		symbol := stringArg(args, "symbol")
		file := stringArg(args, "file")
		line := intArg(args, "line", 0)
		if symbol == "" || file == "" || line < 1 {
			return mcp.NewToolResultError("find_references needs symbol, file and line"), nil
		}
		scope := stringArg(args, "scope")
		if scope == "" {
			scope = "project"
		}

		refs, err := svc.FindReferences(ctx, symbol, file, line, scope, boolArg(args, "exclude_definition", false))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to find references: %v", err)), nil
		}
		return jsonResult(refs)
	})
}

// registerHoverTool registers the get_hover_info tool
func registerHoverTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("get_hover_info",
		mcp.WithDescription("Get type information and documentation for a symbol, by name or by position"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path"),
		),
		mcp.WithString("symbol",
			mcp.Description("Symbol name to look up; the nearest document symbol with this name is used"),
		),
		mcp.WithNumber("line",
			mcp.Description("Line number (1-indexed); required without symbol, an optional hint with it"),
		),
		mcp.WithNumber("column",
			mcp.Description("Column number (0-indexed); required without symbol"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("get_hover_info: %s", string(requestJson))

		args := request.Params.Arguments
		file := stringArg(args, "file")
		if file == "" {
			return mcp.NewToolResultError("get_hover_info needs a file"), nil
		}

		info, err := svc.Hover(ctx, file, stringArg(args, "symbol"), intArg(args, "line", 0), intArg(args, "column", -1))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get hover info: %v", err)), nil
		}
		return jsonResult(info)
	})
}

// registerCompletionsTool registers the get_completions tool
func registerCompletionsTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("get_completions",
		mcp.WithDescription("Get code completion suggestions at a position, ranked by relevance"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Line number (1-indexed)"),
		),
		mcp.WithNumber("column",
			mcp.Required(),
			mcp.Description("Column number (0-indexed cursor position)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum completions to return (default 50, 0 for unlimited)"),
		),
		mcp.WithString("prefix",
			mcp.Description("Keep only completions starting with this text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("get_completions: %s", string(requestJson))

		args := request.Params.Arguments
		file := stringArg(args, "file")
		line := intArg(args, "line", 0)
		column := intArg(args, "column", -1)
		if file == "" || line < 1 || column < 0 {
			return mcp.NewToolResultError("get_completions needs file, line and column"), nil
		}

		res, err := svc.Completions(ctx, file, line, column, intArg(args, "max_results", 50), stringArg(args, "prefix"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get completions: %v", err)), nil
		}
		return jsonResult(res)
	})
}
