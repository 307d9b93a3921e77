// Package intel answers code-intelligence queries: definitions,
// references, hover cards, completions, symbols, diagnostics, file
// reads, dependency graphs and renames. It combines editor language
// server results with workspace file contents and shapes them for
// tool responses.
package intel

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
	"github.com/nvimbridge/nvim-ide-mcp/log"
	"github.com/nvimbridge/nvim-ide-mcp/workspace"
)

// Editor is the editor surface the service drives. *editor.Editor
// satisfies it; tests substitute a scripted fake.
type Editor interface {
	EnsureOpen(ctx context.Context, path string) (int, error)
	Lines(ctx context.Context, path string, start, end int) ([]string, error)
	Info(ctx context.Context, path string) (editor.BufferInfo, error)
	Edit(ctx context.Context, path string, edits []editor.LineEdit) (editor.EditOutcome, error)
	Save(ctx context.Context, path string) error
	Discard(ctx context.Context, path string) error

	Definition(ctx context.Context, path string, line, column int) ([]editor.Location, error)
	References(ctx context.Context, path string, line, column int, includeDeclaration bool) ([]editor.Location, error)
	Hover(ctx context.Context, path string, line, column int) (string, error)
	Completions(ctx context.Context, path string, line, column int) ([]editor.CompletionItem, error)
	DocumentSymbols(ctx context.Context, path string) ([]editor.DocumentSymbol, error)
	Rename(ctx context.Context, path string, line, column int, newName string, apply bool) (editor.RenameOutcome, error)
	WaitLSPReady(ctx context.Context, path string) error
	Diagnostics(ctx context.Context, path string) ([]editor.Diagnostic, error)
	AllDiagnostics(ctx context.Context) ([]editor.FileDiagnostic, error)

	Imports(ctx context.Context, path string) ([]string, error)
	Referrers(ctx context.Context, path string) ([]string, error)
}

// Service implements the operations behind the navigation, file,
// analysis and refactoring tools.
type Service struct {
	ed  Editor
	ws  *workspace.Resolver
	log log.Logger
}

// NewService returns a Service backed by ed, resolving paths
// against ws.
func NewService(ed Editor, ws *workspace.Resolver, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{ed: ed, ws: ws, log: logger}
}

// displayPath converts an absolute path to its workspace-relative
// form for responses. Paths outside the workspace stay absolute.
func (s *Service) displayPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return s.ws.Rel(path)
}

// symbolColumn finds the 0-indexed column of symbol on the given
// 1-indexed line, reading through the editor so unsaved buffer
// content is honored. Returns 0 when the symbol is not on the line.
func (s *Service) symbolColumn(ctx context.Context, path string, line int, symbol string) (int, error) {
	lines, err := s.ed.Lines(ctx, path, line, line)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}
	col := strings.Index(lines[0], symbol)
	if col < 0 {
		return 0, nil
	}
	return col, nil
}
