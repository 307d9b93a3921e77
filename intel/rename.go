package intel

import "context"

// Rename renames the symbol at file:line:column (1-indexed line,
// 0-indexed column) to newName across the workspace. With preview
// true the edit is computed and described without being applied.
func (s *Service) Rename(ctx context.Context, file string, line, column int, newName string, preview bool) (*RenameResult, error) {
	canonical, err := s.ws.Canonicalize(file)
	if err != nil {
		return nil, err
	}
	out, err := s.ed.Rename(ctx, canonical, line, column+1, newName, !preview)
	if err != nil {
		return nil, err
	}
	changes := make([]RenameChange, 0, len(out.Changes))
	for _, c := range out.Changes {
		changes = append(changes, RenameChange{
			File:    s.displayPath(c.File),
			Line:    c.Line,
			NewText: c.NewText,
		})
	}
	return &RenameResult{
		Applied:       out.Applied,
		Changes:       changes,
		AffectedFiles: len(out.FilesChanged),
		TotalChanges:  out.TotalEdits,
	}, nil
}
