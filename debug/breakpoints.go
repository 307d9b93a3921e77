package debug

import (
	"context"
	"sort"

	"github.com/google/go-dap"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
)

// SetBreakpoints replaces the breakpoint set for one source file. The
// requested set is diffed against the session's confirmed set first:
// when they match, nothing is sent to the adapter. On a partial
// failure the confirmed lines are kept and the failed ones are
// reported with the adapter's reason.
func (m *Manager) SetBreakpoints(ctx context.Context, sessionID, path string, requested []RequestedBreakpoint) (*BreakpointUpdate, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	switch st := s.State(); {
	case st == StateLost:
		return nil, ideerr.ConnectionLost(nil)
	case st.Terminal():
		return nil, ideerr.InvalidState("set breakpoints", st.String())
	}

	canonical, err := m.resolver.Canonicalize(path)
	if err != nil {
		return nil, err
	}
	req := normalizeRequested(requested)
	current := s.fileBreakpoints(canonical)
	if breakpointSetsEqual(current, req) {
		upd := &BreakpointUpdate{Path: canonical, Unchanged: true}
		for _, r := range req {
			upd.Breakpoints = append(upd.Breakpoints, BreakpointResult{
				Line:      r.Line,
				Condition: r.Condition,
				Verified:  true,
			})
		}
		m.log.Debugf("debug: session %s: breakpoints for %s unchanged, skipping adapter call", sessionID, canonical)
		return upd, nil
	}

	source := make([]editor.SourceBreakpoint, len(req))
	for i, r := range req {
		source[i] = editor.SourceBreakpoint{Line: r.Line, Condition: r.Condition}
	}
	verdicts, err := m.adapter.DapSetBreakpoints(ctx, s.AdapterID(), canonical, source)
	if err != nil {
		// The confirmed set stays as it was; nothing was acknowledged.
		return nil, err
	}

	upd := &BreakpointUpdate{Path: canonical}
	confirmed := make([]Breakpoint, 0, len(req))
	for i, r := range req {
		var res dap.Breakpoint
		if i < len(verdicts) {
			res = verdicts[i]
		} else {
			res.Message = "no verdict from adapter"
		}
		upd.Breakpoints = append(upd.Breakpoints, BreakpointResult{
			Line:      r.Line,
			Condition: r.Condition,
			Verified:  res.Verified,
			Message:   res.Message,
		})
		if res.Verified {
			confirmed = append(confirmed, Breakpoint{
				Path:      canonical,
				Line:      r.Line,
				Condition: r.Condition,
				RemoteID:  res.Id,
			})
		}
	}
	s.setFileBreakpoints(canonical, confirmed)
	m.log.Infof("debug: session %s: %d/%d breakpoints confirmed in %s", sessionID, len(confirmed), len(req), canonical)
	return upd, nil
}

// normalizeRequested deduplicates by line (last condition wins) and
// orders by line so set comparison is stable.
func normalizeRequested(requested []RequestedBreakpoint) []RequestedBreakpoint {
	byLine := make(map[int]RequestedBreakpoint, len(requested))
	for _, r := range requested {
		byLine[r.Line] = r
	}
	out := make([]RequestedBreakpoint, 0, len(byLine))
	for _, r := range byLine {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func breakpointSetsEqual(current []Breakpoint, requested []RequestedBreakpoint) bool {
	if len(current) != len(requested) {
		return false
	}
	for i, r := range requested {
		if current[i].Line != r.Line || current[i].Condition != r.Condition {
			return false
		}
	}
	return true
}
