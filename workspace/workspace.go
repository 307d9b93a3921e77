// Package workspace canonicalizes file paths against a workspace root.
//
// Every path that crosses the editor boundary goes through a Resolver
// first so that symlinked spellings of the same file (including
// OS-level temp directory aliases) collapse to one canonical absolute
// path.
package workspace

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
)

// Resolver canonicalizes paths and enforces the workspace boundary.
type Resolver struct {
	root string
}

// NewResolver canonicalizes root and returns a Resolver anchored at it.
// The root must exist.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ideerr.NotFound("workspace root " + root)
		}
		return nil, err
	}
	return &Resolver{root: resolved}, nil
}

// Root returns the canonical workspace root.
func (r *Resolver) Root() string {
	return r.root
}

// Canonicalize turns path into its canonical absolute form. Relative
// paths are interpreted against the workspace root. Symlinks are fully
// resolved, so two spellings of the same file always canonicalize to
// the same string. Fails with NotFound if the path does not exist and
// with OutsideWorkspace if the resolved path escapes the root.
func (r *Resolver) Canonicalize(path string) (string, error) {
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.root, p)
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return "", ideerr.NotFound("path " + path)
		}
		return "", err
	}
	if !r.contains(resolved) {
		return "", ideerr.OutsideWorkspace(path, r.root)
	}
	return resolved, nil
}

// Rel returns the workspace-relative form of a canonical path for use
// in responses. Paths outside the root are returned unchanged.
func (r *Resolver) Rel(canonical string) string {
	rel, err := filepath.Rel(r.root, canonical)
	if err != nil || strings.HasPrefix(rel, "..") {
		return canonical
	}
	return rel
}

func (r *Resolver) contains(canonical string) bool {
	rel, err := filepath.Rel(r.root, canonical)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
