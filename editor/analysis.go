package editor

import "context"

// Imports returns the modules path imports, extracted by the editor's
// syntax tree query for the file's language.
func (e *Editor) Imports(ctx context.Context, path string) ([]string, error) {
	if _, err := e.EnsureOpen(ctx, path); err != nil {
		return nil, err
	}
	var out struct {
		Imports []string `json:"imports"`
	}
	if err := e.call(ctx, &out, MethodAnalysisImports, pathArg(path)); err != nil {
		return nil, err
	}
	return out.Imports, nil
}

// Referrers returns the workspace files that mention path's module,
// found by the editor's workspace text search.
func (e *Editor) Referrers(ctx context.Context, path string) ([]string, error) {
	var out struct {
		Files []string `json:"files"`
	}
	if err := e.call(ctx, &out, MethodAnalysisReferrers, pathArg(path)); err != nil {
		return nil, err
	}
	return out.Files, nil
}
