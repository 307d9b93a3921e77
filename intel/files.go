package intel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
)

// ReadFile returns path's content with "N|text" line numbering.
// startLine and endLine bound an optional 1-indexed inclusive range
// (0, 0 means the whole file); contextLines widens the range on both
// sides. endLine past the end of the file is capped silently. With
// diagnostics requested the buffer is opened and the language server
// consulted; a diagnostics failure degrades to content-only.
func (s *Service) ReadFile(ctx context.Context, path string, startLine, endLine, contextLines int, includeDiagnostics bool) (*FileContent, error) {
	canonical, err := s.ws.Canonicalize(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(canonical)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	lines := splitLines(string(content))
	total := len(lines)

	hasRange := startLine != 0 || endLine != 0
	if hasRange {
		if startLine < 1 {
			return nil, fmt.Errorf("start_line must be >= 1, got %d", startLine)
		}
		if endLine < startLine {
			return nil, fmt.Errorf("end_line (%d) must be >= start_line (%d)", endLine, startLine)
		}
		if startLine > total {
			return nil, fmt.Errorf("start_line (%d) exceeds file length (%d lines)", startLine, total)
		}
	}

	start, end := 1, total
	if hasRange {
		start, end = startLine, endLine
		if contextLines > 0 {
			start -= contextLines
			if start < 1 {
				start = 1
			}
			end += contextLines
		}
		if end > total {
			end = total
		}
	}

	numbered := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		numbered = append(numbered, fmt.Sprintf("%d|%s", i, lines[i-1]))
	}

	fc := &FileContent{
		Content:    strings.Join(numbered, "\n"),
		TotalLines: total,
		Language:   languageForPath(canonical),
	}
	if includeDiagnostics {
		diags, err := s.rangeDiagnostics(ctx, canonical, startLine, endLine, hasRange)
		if err != nil {
			s.log.Warnf("diagnostics for %s unavailable: %v", path, err)
		} else {
			fc.Diagnostics = diags
		}
	}
	return fc, nil
}

// rangeDiagnostics opens the buffer, waits for the language server
// and returns diagnostics, filtered to the requested line range when
// one was given.
func (s *Service) rangeDiagnostics(ctx context.Context, canonical string, startLine, endLine int, hasRange bool) ([]Diagnostic, error) {
	if _, err := s.ed.EnsureOpen(ctx, canonical); err != nil {
		return nil, err
	}
	if err := s.ed.WaitLSPReady(ctx, canonical); err != nil {
		return nil, err
	}
	diags, err := s.ed.Diagnostics(ctx, canonical)
	if err != nil {
		return nil, err
	}
	display := s.displayPath(canonical)
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if hasRange && (d.Line < startLine || d.Line > endLine) {
			continue
		}
		out = append(out, convertDiagnostic(display, d))
	}
	return out, nil
}

// Symbols lists the symbols in file with hierarchy preserved.
// typeFilter keeps only the named types while still descending into
// filtered symbols, so nested matches surface at the top level.
// TotalCount counts everything before filtering.
func (s *Service) Symbols(ctx context.Context, file string, typeFilter []string) (*SymbolsResult, error) {
	canonical, err := s.ws.Canonicalize(file)
	if err != nil {
		return nil, err
	}
	syms, err := s.ed.DocumentSymbols(ctx, canonical)
	if err != nil {
		return nil, err
	}
	result := &SymbolsResult{
		Symbols:    []Symbol{},
		File:       s.displayPath(canonical),
		TotalCount: countSymbols(syms),
		Language:   languageForPath(canonical),
	}
	var filter map[string]bool
	if len(typeFilter) > 0 {
		filter = make(map[string]bool, len(typeFilter))
		for _, t := range typeFilter {
			filter[t] = true
		}
	}
	for _, sym := range syms {
		if conv, ok := convertSymbol(sym, "", filter, &result.Symbols); ok {
			result.Symbols = append(result.Symbols, conv)
		}
	}
	return result, nil
}

func countSymbols(symbols []editor.DocumentSymbol) int {
	n := 0
	for _, sym := range symbols {
		n += 1 + countSymbols(sym.Children)
	}
	return n
}

// convertSymbol maps one document symbol. A filtered-out symbol is
// skipped but its matching descendants are hoisted into top, keeping
// the skipped symbol's own parent attribution.
func convertSymbol(sym editor.DocumentSymbol, parent string, filter map[string]bool, top *[]Symbol) (Symbol, bool) {
	symType := symbolTypeName(sym.Kind)
	if filter != nil && !filter[symType] {
		for _, child := range sym.Children {
			if conv, ok := convertSymbol(child, parent, filter, top); ok {
				*top = append(*top, conv)
			}
		}
		return Symbol{}, false
	}
	out := Symbol{
		Name:      sym.Name,
		Type:      symType,
		Line:      sym.Line(),
		Column:    sym.Range.Start.Character,
		Parent:    parent,
		Signature: sym.Detail,
		Detail:    sym.Detail,
	}
	for _, child := range sym.Children {
		if conv, ok := convertSymbol(child, sym.Name, filter, top); ok {
			out.Children = append(out.Children, conv)
		}
	}
	return out, true
}

// Diagnostics reports language server findings, for one file when
// given or across all open buffers otherwise. severities filters by
// level name when non-empty.
func (s *Service) Diagnostics(ctx context.Context, file string, severities []string) (*DiagnosticsResult, error) {
	var diags []Diagnostic
	if file != "" {
		canonical, err := s.ws.Canonicalize(file)
		if err != nil {
			return nil, err
		}
		if _, err := s.ed.EnsureOpen(ctx, canonical); err != nil {
			return nil, err
		}
		if err := s.ed.WaitLSPReady(ctx, canonical); err != nil {
			return nil, err
		}
		fileDiags, err := s.ed.Diagnostics(ctx, canonical)
		if err != nil {
			return nil, err
		}
		display := s.displayPath(canonical)
		for _, d := range fileDiags {
			diags = append(diags, convertDiagnostic(display, d))
		}
	} else {
		all, err := s.ed.AllDiagnostics(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range all {
			diags = append(diags, convertDiagnostic(s.displayPath(d.File), d.Diagnostic))
		}
	}

	if len(severities) > 0 {
		want := make(map[string]bool, len(severities))
		for _, sev := range severities {
			want[sev] = true
		}
		filtered := diags[:0]
		for _, d := range diags {
			if want[d.Severity] {
				filtered = append(filtered, d)
			}
		}
		diags = filtered
	}
	if diags == nil {
		diags = []Diagnostic{}
	}
	return &DiagnosticsResult{Diagnostics: diags, TotalCount: len(diags), File: file}, nil
}

func convertDiagnostic(file string, d editor.Diagnostic) Diagnostic {
	source := d.Source
	if source == "" {
		source = "lsp"
	}
	return Diagnostic{
		Severity: severityName(d.Severity),
		Message:  d.Message,
		File:     file,
		Line:     d.Line,
		Column:   d.Column,
		Source:   source,
	}
}

// languageByExt drives language detection for tool responses.
var languageByExt = map[string]string{
	".py": "python", ".js": "javascript", ".jsx": "javascript",
	".ts": "typescript", ".tsx": "typescript", ".rs": "rust",
	".go": "go", ".java": "java", ".c": "c", ".h": "c",
	".cpp": "cpp", ".hpp": "cpp", ".rb": "ruby", ".php": "php",
	".swift": "swift", ".kt": "kotlin", ".scala": "scala",
	".sh": "shell", ".bash": "shell", ".zsh": "shell",
}

func languageForPath(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// splitLines splits file content into lines with trailing whitespace
// removed, the way the numbered listings present them.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}
