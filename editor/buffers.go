package editor

import (
	"context"
	"sort"
)

// BufferInfo describes a buffer's state without forcing it open.
type BufferInfo struct {
	Open      bool   `json:"open"`
	Modified  bool   `json:"modified"`
	LineCount int    `json:"line_count"`
	Language  string `json:"language"`
}

// LineEdit replaces the inclusive 1-indexed line range with Lines.
type LineEdit struct {
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Lines     []string `json:"lines"`
}

// EditOutcome summarizes an applied buffer edit.
type EditOutcome struct {
	Applied  int      `json:"applied"`
	Modified bool     `json:"modified"`
	Preview  []string `json:"preview"`
}

// EnsureOpen loads path into a buffer, reusing the cached buffer
// number when the file is already open.
func (e *Editor) EnsureOpen(ctx context.Context, path string) (int, error) {
	canonical, err := e.ws.Canonicalize(path)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	if n, ok := e.buffers[canonical]; ok {
		e.mu.Unlock()
		return n, nil
	}
	e.mu.Unlock()

	var out struct {
		Bufnr int `json:"bufnr"`
	}
	if err := e.call(ctx, &out, MethodBufferOpen, canonical); err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.buffers[canonical] = out.Bufnr
	e.mu.Unlock()
	return out.Bufnr, nil
}

// Lines returns the buffer content for the inclusive 1-indexed range.
// end == -1 means end of file.
func (e *Editor) Lines(ctx context.Context, path string, start, end int) ([]string, error) {
	if _, err := e.EnsureOpen(ctx, path); err != nil {
		return nil, err
	}
	var out struct {
		Lines []string `json:"lines"`
	}
	if err := e.call(ctx, &out, MethodBufferLines, pathArg(path), start, end); err != nil {
		return nil, err
	}
	return out.Lines, nil
}

// Info reports buffer state for path. The file is not opened if it is
// not already.
func (e *Editor) Info(ctx context.Context, path string) (BufferInfo, error) {
	var out BufferInfo
	if err := e.call(ctx, &out, MethodBufferInfo, pathArg(path)); err != nil {
		return BufferInfo{}, err
	}
	return out, nil
}

// Edit applies line replacements to the buffer without writing to
// disk. Edits are applied bottom-up so earlier line numbers stay
// valid.
func (e *Editor) Edit(ctx context.Context, path string, edits []LineEdit) (EditOutcome, error) {
	if _, err := e.EnsureOpen(ctx, path); err != nil {
		return EditOutcome{}, err
	}
	ordered := make([]LineEdit, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartLine > ordered[j].StartLine
	})
	var out EditOutcome
	if err := e.call(ctx, &out, MethodBufferEdit, pathArg(path), ordered); err != nil {
		return EditOutcome{}, err
	}
	return out, nil
}

// Save writes the buffer to disk.
func (e *Editor) Save(ctx context.Context, path string) error {
	return e.call(ctx, nil, MethodBufferSave, pathArg(path))
}

// Discard reloads the buffer from disk, dropping unsaved changes.
func (e *Editor) Discard(ctx context.Context, path string) error {
	return e.call(ctx, nil, MethodBufferDiscard, pathArg(path))
}
