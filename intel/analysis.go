package intel

import (
	"context"
	"fmt"
	"sort"
)

// Dependencies reports what file imports and which workspace files
// import it. Direction is imports, imported_by or both. Both lists
// come back sorted and deduplicated; the file itself is excluded
// from imported_by.
func (s *Service) Dependencies(ctx context.Context, file, direction string) (*DependencyGraph, error) {
	switch direction {
	case "imports", "imported_by", "both":
	default:
		return nil, fmt.Errorf("unknown direction %q (want imports, imported_by or both)", direction)
	}
	canonical, err := s.ws.Canonicalize(file)
	if err != nil {
		return nil, err
	}
	graph := &DependencyGraph{
		File:       s.displayPath(canonical),
		Imports:    []string{},
		ImportedBy: []string{},
	}
	if direction == "imports" || direction == "both" {
		imports, err := s.ed.Imports(ctx, canonical)
		if err != nil {
			return nil, err
		}
		graph.Imports = dedupeSorted(imports)
	}
	if direction == "imported_by" || direction == "both" {
		referrers, err := s.ed.Referrers(ctx, canonical)
		if err != nil {
			return nil, err
		}
		display := make([]string, 0, len(referrers))
		for _, r := range referrers {
			if d := s.displayPath(r); d != graph.File {
				display = append(display, d)
			}
		}
		graph.ImportedBy = dedupeSorted(display)
	}
	return graph, nil
}

// dedupeSorted returns vals sorted with empties and duplicates
// removed.
func dedupeSorted(vals []string) []string {
	seen := make(map[string]bool, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
