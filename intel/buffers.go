package intel

import (
	"context"
	"fmt"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
)

// BufferInfo reports file's buffer state without forcing it open.
func (s *Service) BufferInfo(ctx context.Context, file string) (*BufferInfo, error) {
	canonical, err := s.ws.Canonicalize(file)
	if err != nil {
		return nil, err
	}
	info, err := s.ed.Info(ctx, canonical)
	if err != nil {
		return nil, err
	}
	return &BufferInfo{
		File:      s.displayPath(canonical),
		Open:      info.Open,
		Modified:  info.Modified,
		LineCount: info.LineCount,
		Language:  info.Language,
	}, nil
}

// EditBuffer applies line-ranged replacements to file's buffer. The
// change stays in the buffer until saved.
func (s *Service) EditBuffer(ctx context.Context, file string, edits []editor.LineEdit) (*EditResult, error) {
	if len(edits) == 0 {
		return nil, fmt.Errorf("no edits given")
	}
	for _, e := range edits {
		if e.StartLine < 1 || e.EndLine < e.StartLine {
			return nil, fmt.Errorf("bad edit range %d-%d", e.StartLine, e.EndLine)
		}
	}
	canonical, err := s.ws.Canonicalize(file)
	if err != nil {
		return nil, err
	}
	out, err := s.ed.Edit(ctx, canonical, edits)
	if err != nil {
		return nil, err
	}
	return &EditResult{
		File:     s.displayPath(canonical),
		Applied:  out.Applied,
		Modified: out.Modified,
		Preview:  out.Preview,
	}, nil
}

// SaveBuffer writes file's buffer to disk.
func (s *Service) SaveBuffer(ctx context.Context, file string) (*SaveResult, error) {
	canonical, err := s.ws.Canonicalize(file)
	if err != nil {
		return nil, err
	}
	if err := s.ed.Save(ctx, canonical); err != nil {
		return nil, err
	}
	info, err := s.ed.Info(ctx, canonical)
	if err != nil {
		return nil, err
	}
	return &SaveResult{File: s.displayPath(canonical), Modified: info.Modified}, nil
}

// DiscardBuffer reloads file's buffer from disk, dropping unsaved
// edits.
func (s *Service) DiscardBuffer(ctx context.Context, file string) (*DiscardResult, error) {
	canonical, err := s.ws.Canonicalize(file)
	if err != nil {
		return nil, err
	}
	if err := s.ed.Discard(ctx, canonical); err != nil {
		return nil, err
	}
	info, err := s.ed.Info(ctx, canonical)
	if err != nil {
		return nil, err
	}
	return &DiscardResult{File: s.displayPath(canonical), Modified: info.Modified}, nil
}
