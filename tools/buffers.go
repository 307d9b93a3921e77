package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
	"github.com/nvimbridge/nvim-ide-mcp/intel"
)

// registerRenameTool registers the rename_symbol tool
func registerRenameTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("rename_symbol",
		mcp.WithDescription("Rename a symbol across all references via the language server, with preview"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File where the symbol is located"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Line number (1-indexed) where the symbol appears"),
		),
		mcp.WithNumber("column",
			mcp.Required(),
			mcp.Description("Column number (0-indexed) of the symbol start"),
		),
		mcp.WithString("new_name",
			mcp.Required(),
			mcp.Description("New name for the symbol"),
		),
		mcp.WithBoolean("preview",
			mcp.Description("Return the changes without applying them (default true)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("rename_symbol: %s", string(requestJson))

		args := request.Params.Arguments
		file := stringArg(args, "file")
		line := intArg(args, "line", 0)
		column := intArg(args, "column", -1)
		newName := stringArg(args, "new_name")
		if file == "" || line < 1 || column < 0 || newName == "" {
			return mcp.NewToolResultError("rename_symbol needs file, line, column and new_name"), nil
		}

		res, err := svc.Rename(ctx, file, line, column, newName, boolArg(args, "preview", true))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to rename symbol: %v", err)), nil
		}
		return jsonResult(res)
	})
}

// registerBufferInfoTool registers the get_buffer_info tool
func registerBufferInfoTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("get_buffer_info",
		mcp.WithDescription("Check a buffer's state before editing: open, modified, line count, language"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("get_buffer_info: %s", string(requestJson))

		file := stringArg(request.Params.Arguments, "file")
		if file == "" {
			return mcp.NewToolResultError("get_buffer_info needs a file"), nil
		}

		info, err := svc.BufferInfo(ctx, file)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get buffer info: %v", err)), nil
		}
		return jsonResult(info)
	})
}

// registerEditBufferTool registers the edit_buffer tool
func registerEditBufferTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("edit_buffer",
		mcp.WithDescription("Replace line ranges in a buffer. Changes stay in the buffer until save_buffer; discard_buffer reverts them"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path"),
		),
		mcp.WithArray("edits",
			mcp.Required(),
			mcp.Description("Edit operations, each {start_line, end_line, new_text}: the 1-indexed inclusive line range is replaced with new_text (may contain \\n)"),
			mcp.Items(map[string]interface{}{"type": "object"}),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("edit_buffer: %s", string(requestJson))

		args := request.Params.Arguments
		file := stringArg(args, "file")
		if file == "" {
			return mcp.NewToolResultError("edit_buffer needs a file"), nil
		}
		edits, err := decodeEdits(args["edits"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := svc.EditBuffer(ctx, file, edits)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to edit buffer: %v", err)), nil
		}
		return jsonResult(res)
	})
}

func decodeEdits(raw interface{}) ([]editor.LineEdit, error) {
	items, ok := raw.([]interface{})
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("edit_buffer needs a non-empty edits array")
	}
	edits := make([]editor.LineEdit, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("edit %d is not an object", i)
		}
		text, _ := m["new_text"].(string)
		edits = append(edits, editor.LineEdit{
			StartLine: intArg(m, "start_line", 0),
			EndLine:   intArg(m, "end_line", 0),
			Lines:     strings.Split(strings.TrimSuffix(text, "\n"), "\n"),
		})
	}
	return edits, nil
}

// registerSaveBufferTool registers the save_buffer tool
func registerSaveBufferTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("save_buffer",
		mcp.WithDescription("Write a buffer's changes to disk"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("save_buffer: %s", string(requestJson))

		file := stringArg(request.Params.Arguments, "file")
		if file == "" {
			return mcp.NewToolResultError("save_buffer needs a file"), nil
		}

		res, err := svc.SaveBuffer(ctx, file)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to save buffer: %v", err)), nil
		}
		return jsonResult(res)
	})
}

// registerDiscardBufferTool registers the discard_buffer tool
func registerDiscardBufferTool(s *server.MCPServer, svc *intel.Service, opts Options) {
	tool := mcp.NewTool("discard_buffer",
		mcp.WithDescription("Reload a buffer from disk, discarding unsaved changes"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("discard_buffer: %s", string(requestJson))

		file := stringArg(request.Params.Arguments, "file")
		if file == "" {
			return mcp.NewToolResultError("discard_buffer needs a file"), nil
		}

		res, err := svc.DiscardBuffer(ctx, file)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to discard buffer: %v", err)), nil
		}
		return jsonResult(res)
	})
}
