package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
	"github.com/nvimbridge/nvim-ide-mcp/log"
	"github.com/nvimbridge/nvim-ide-mcp/workspace"
)

// fakeEditor scripts editor responses keyed by the path the service
// passes in. Lines falls back to the file on disk so tests only
// script buffers that should differ from disk.
type fakeEditor struct {
	mu     sync.Mutex
	counts map[string]int

	lines     map[string][]string
	infos     map[string]editor.BufferInfo
	editOut   editor.EditOutcome
	editErr   error
	lastEdits []editor.LineEdit
	saveErr   error

	definitions map[string][]editor.Location
	defErr      error
	references  map[string][]editor.Location
	hovers      map[string]string
	hoverErr    error
	completions map[string][]editor.CompletionItem
	symbols     map[string][]editor.DocumentSymbol
	symbolsErr  error
	renameOut   editor.RenameOutcome
	renameErr   error
	lastRename  renameCall
	diagnostics map[string][]editor.Diagnostic
	allDiags    []editor.FileDiagnostic
	lspReadyErr error

	imports   map[string][]string
	referrers map[string][]string
}

type renameCall struct {
	path    string
	line    int
	column  int
	newName string
	apply   bool
}

var _ Editor = (*fakeEditor)(nil)

func newFakeEditor() *fakeEditor {
	return &fakeEditor{
		counts:      make(map[string]int),
		lines:       make(map[string][]string),
		infos:       make(map[string]editor.BufferInfo),
		definitions: make(map[string][]editor.Location),
		references:  make(map[string][]editor.Location),
		hovers:      make(map[string]string),
		completions: make(map[string][]editor.CompletionItem),
		symbols:     make(map[string][]editor.DocumentSymbol),
		diagnostics: make(map[string][]editor.Diagnostic),
		imports:     make(map[string][]string),
		referrers:   make(map[string][]string),
	}
}

func (f *fakeEditor) inc(name string) {
	f.mu.Lock()
	f.counts[name]++
	f.mu.Unlock()
}

func (f *fakeEditor) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

func (f *fakeEditor) EnsureOpen(context.Context, string) (int, error) {
	f.inc("ensureOpen")
	return 1, nil
}

func (f *fakeEditor) Lines(_ context.Context, path string, start, end int) ([]string, error) {
	f.inc("lines")
	content, ok := f.lines[path]
	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		content = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}
	if end == -1 || end > len(content) {
		end = len(content)
	}
	if start < 1 || start > end {
		return nil, nil
	}
	return content[start-1 : end], nil
}

func (f *fakeEditor) Info(_ context.Context, path string) (editor.BufferInfo, error) {
	f.inc("info")
	return f.infos[path], nil
}

func (f *fakeEditor) Edit(_ context.Context, path string, edits []editor.LineEdit) (editor.EditOutcome, error) {
	f.inc("edit")
	f.lastEdits = edits
	if f.editErr != nil {
		return editor.EditOutcome{}, f.editErr
	}
	return f.editOut, nil
}

func (f *fakeEditor) Save(context.Context, string) error {
	f.inc("save")
	return f.saveErr
}

func (f *fakeEditor) Discard(context.Context, string) error {
	f.inc("discard")
	return nil
}

func (f *fakeEditor) Definition(_ context.Context, path string, line, column int) ([]editor.Location, error) {
	f.inc("definition")
	if f.defErr != nil {
		return nil, f.defErr
	}
	return f.definitions[path], nil
}

func (f *fakeEditor) References(_ context.Context, path string, line, column int, includeDeclaration bool) ([]editor.Location, error) {
	f.inc("references")
	return f.references[path], nil
}

func (f *fakeEditor) Hover(_ context.Context, path string, line, column int) (string, error) {
	f.inc("hover")
	if f.hoverErr != nil {
		return "", f.hoverErr
	}
	return f.hovers[posKey(path, line, column)], nil
}

func (f *fakeEditor) Completions(_ context.Context, path string, line, column int) ([]editor.CompletionItem, error) {
	f.inc("completions")
	return f.completions[path], nil
}

func (f *fakeEditor) DocumentSymbols(_ context.Context, path string) ([]editor.DocumentSymbol, error) {
	f.inc("documentSymbols")
	if f.symbolsErr != nil {
		return nil, f.symbolsErr
	}
	return f.symbols[path], nil
}

func (f *fakeEditor) Rename(_ context.Context, path string, line, column int, newName string, apply bool) (editor.RenameOutcome, error) {
	f.inc("rename")
	f.lastRename = renameCall{path: path, line: line, column: column, newName: newName, apply: apply}
	if f.renameErr != nil {
		return editor.RenameOutcome{}, f.renameErr
	}
	return f.renameOut, nil
}

func (f *fakeEditor) WaitLSPReady(context.Context, string) error {
	f.inc("waitLSPReady")
	return f.lspReadyErr
}

func (f *fakeEditor) Diagnostics(_ context.Context, path string) ([]editor.Diagnostic, error) {
	f.inc("diagnostics")
	return f.diagnostics[path], nil
}

func (f *fakeEditor) AllDiagnostics(context.Context) ([]editor.FileDiagnostic, error) {
	f.inc("allDiagnostics")
	return f.allDiags, nil
}

func (f *fakeEditor) Imports(_ context.Context, path string) ([]string, error) {
	f.inc("imports")
	return f.imports[path], nil
}

func (f *fakeEditor) Referrers(_ context.Context, path string) ([]string, error) {
	f.inc("referrers")
	return f.referrers[path], nil
}

func posKey(path string, line, column int) string {
	return fmt.Sprintf("%s:%d:%d", path, line, column)
}

func newTestService(t *testing.T) (*fakeEditor, *Service, string) {
	t.Helper()
	ws, err := workspace.NewResolver(t.TempDir())
	require.NoError(t, err)
	fe := newFakeEditor()
	return fe, NewService(fe, ws, log.Nop()), ws.Root()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// mkSym builds one document symbol as the wire would carry it; lines
// and characters are 0-indexed.
func mkSym(name string, kind, startLine, startChar, endLine, endChar int, children ...map[string]any) map[string]any {
	m := map[string]any{
		"name": name,
		"kind": kind,
		"range": map[string]any{
			"start": map[string]any{"line": startLine, "character": startChar},
			"end":   map[string]any{"line": endLine, "character": endChar},
		},
	}
	if len(children) > 0 {
		m["children"] = children
	}
	return m
}

func toSymbols(t *testing.T, nodes ...map[string]any) []editor.DocumentSymbol {
	t.Helper()
	data, err := json.Marshal(nodes)
	require.NoError(t, err)
	var syms []editor.DocumentSymbol
	require.NoError(t, json.Unmarshal(data, &syms))
	return syms
}
