// Package tools registers the MCP tool surface: request decoding,
// dispatch into the intel service and the debug manager, and JSON
// result encoding. Handlers hold no state of their own.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nvimbridge/nvim-ide-mcp/debug"
	"github.com/nvimbridge/nvim-ide-mcp/intel"
	"github.com/nvimbridge/nvim-ide-mcp/log"
	"github.com/nvimbridge/nvim-ide-mcp/workspace"
)

type Options struct {
	Logger log.Logger
	// Resolver relativizes paths in debug responses. Intel responses
	// come back relative already.
	Resolver *workspace.Resolver
}

// RegisterTools registers every tool with the MCP server.
func RegisterTools(s *server.MCPServer, svc *intel.Service, mgr *debug.Manager, opts Options) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	registerFindDefinitionTool(s, svc, opts)
	registerFindReferencesTool(s, svc, opts)
	registerHoverTool(s, svc, opts)
	registerCompletionsTool(s, svc, opts)
	registerReadFileTool(s, svc, opts)
	registerSymbolsTool(s, svc, opts)
	registerDiagnosticsTool(s, svc, opts)
	registerDependenciesTool(s, svc, opts)
	registerRenameTool(s, svc, opts)
	registerBufferInfoTool(s, svc, opts)
	registerEditBufferTool(s, svc, opts)
	registerSaveBufferTool(s, svc, opts)
	registerDiscardBufferTool(s, svc, opts)
	registerStartDebugTool(s, mgr, opts)
	registerControlExecutionTool(s, mgr, opts)
	registerInspectStateTool(s, mgr, opts)
	registerSetBreakpointsTool(s, mgr, opts)
	registerSessionInfoTool(s, mgr, opts)
}

// jsonResult encodes v as an indented JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intSliceArg(args map[string]interface{}, key string) []int {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
