// Package debug orchestrates debug sessions on top of the editor's
// debug adapter surface: it owns the session state machine, correlates
// adapter events back to logical sessions and keeps paused-state
// snapshots coherent with execution.
package debug

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
	"github.com/nvimbridge/nvim-ide-mcp/log"
	"github.com/nvimbridge/nvim-ide-mcp/poll"
	"github.com/nvimbridge/nvim-ide-mcp/workspace"
)

// Options configures a Manager.
type Options struct {
	Logger   log.Logger
	Resolver *workspace.Resolver
	// StartPoll tunes the wait for an adapter to report ready after
	// launch.
	StartPoll poll.Options
}

// Manager owns every debug session. One event pump goroutine fans
// adapter events out to sessions; the remote-to-logical identifier map
// is the only shared routing state.
type Manager struct {
	log      log.Logger
	adapter  Adapter
	resolver *workspace.Resolver
	poll     poll.Options

	mu       sync.RWMutex
	sessions map[string]*Session
	remote   map[string]string

	lost atomic.Bool
}

// NewManager starts the event pump and returns the manager.
func NewManager(adapter Adapter, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	m := &Manager{
		log:      logger,
		adapter:  adapter,
		resolver: opts.Resolver,
		poll:     opts.StartPoll,
		sessions: make(map[string]*Session),
		remote:   make(map[string]string),
	}
	go m.pumpEvents()
	return m
}

func (m *Manager) pumpEvents() {
	for ev := range m.adapter.DebugEvents() {
		if ev.Terminal {
			m.connectionLost()
			continue
		}
		m.dispatch(ev)
	}
}

// dispatch routes one adapter event to its session. Events whose
// adapter identifier has no mapping are dropped.
func (m *Manager) dispatch(ev editor.DebugEvent) {
	m.mu.RLock()
	sid, ok := m.remote[ev.Adapter]
	var s *Session
	if ok {
		s = m.sessions[sid]
	}
	m.mu.RUnlock()
	if s == nil {
		m.log.Debugf("debug: dropping %s event for unknown adapter %s", ev.Event, ev.Adapter)
		return
	}
	s.applyEvent(ev)
	if s.State().Terminal() {
		m.unmapAdapter(ev.Adapter)
	}
}

// connectionLost moves every non-terminal session to Lost, exactly
// once for the lifetime of the connection.
func (m *Manager) connectionLost() {
	if m.lost.Swap(true) {
		return
	}
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.remote = make(map[string]string)
	m.mu.Unlock()

	n := 0
	for _, s := range sessions {
		if s.markLost() {
			n++
		}
	}
	m.log.Warnf("debug: editor connection lost, %d active sessions marked lost", n)
}

// Start launches a new debug session and returns once the adapter is
// running (or already paused on entry). The session identifier in the
// returned info is the handle for all further operations.
func (m *Manager) Start(ctx context.Context, launch LaunchConfig) (*SessionInfo, error) {
	if m.lost.Load() {
		return nil, ideerr.ConnectionLost(nil)
	}
	if (launch.Program == "") == (launch.Module == "") {
		return nil, ideerr.LaunchFailed("exactly one of program or module must be set", nil)
	}
	if launch.Program != "" {
		canonical, err := m.resolver.Canonicalize(launch.Program)
		if err != nil {
			return nil, err
		}
		launch.Program = canonical
		if launch.Language == "" {
			lang, err := languageForPath(canonical)
			if err != nil {
				return nil, err
			}
			launch.Language = lang
		}
	} else if launch.Language == "" {
		// Module targets are interpreted by the python adapter.
		launch.Language = "python"
	}

	s := newSession(fmt.Sprintf("session-%d", uuid.New().ID()), launch, m.log)
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.toLaunching(); err != nil {
		return nil, err
	}

	adapterID, err := m.adapter.DapLaunch(ctx, editor.LaunchSpec{
		Program:     launch.Program,
		Module:      launch.Module,
		Args:        launch.Args,
		StopOnEntry: launch.StopOnEntry,
		Language:    launch.Language,
	})
	if err != nil {
		if ideerr.IsKind(err, ideerr.KindConnectionLost) || ideerr.IsKind(err, ideerr.KindRemoteTimeout) {
			return nil, err
		}
		return nil, ideerr.LaunchFailed("debug adapter rejected launch", err)
	}
	s.setAdapterID(adapterID)
	m.register(s, adapterID)
	m.log.Infof("debug: session %s launching adapter=%s program=%s module=%s language=%s",
		s.ID, adapterID, launch.Program, launch.Module, launch.Language)

	if err := m.awaitStarted(ctx, s, adapterID); err != nil {
		termCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		m.adapter.DapTerminate(termCtx, adapterID)
		cancel()
		s.markTerminated()
		m.unmapAdapter(adapterID)
		if ideerr.IsKind(err, ideerr.KindConnectionLost) {
			return nil, err
		}
		return nil, ideerr.LaunchFailed("debug adapter did not become ready", err)
	}

	info := s.Info()
	return &info, nil
}

// awaitStarted waits for the ready event to land; if the event was
// missed it falls back to polling the adapter's state directly.
func (m *Manager) awaitStarted(ctx context.Context, s *Session, adapterID string) error {
	opts := m.poll
	if opts.What == "" {
		opts.What = "debug adapter startup"
	}
	return poll.Await(ctx, opts, func(ctx context.Context) (bool, error) {
		switch st := s.State(); {
		case st == StateRunning || st == StatePaused:
			return true, nil
		case st.Terminal():
			// The target ran to completion before we looked.
			return true, nil
		}
		status, err := m.adapter.DapStatus(ctx, adapterID)
		if err != nil {
			if ideerr.IsKind(err, ideerr.KindConnectionLost) {
				return false, err
			}
			return false, nil
		}
		if status.Running || status.StoppedThread != 0 || status.Exited {
			s.forceRunning()
			return true, nil
		}
		return false, nil
	})
}

// ControlExecution issues one execution control action. Resume actions
// apply their state change optimistically before the adapter confirms;
// pause stays Running until the stop event arrives.
func (m *Manager) ControlExecution(ctx context.Context, sessionID string, action Action) (*SessionInfo, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.State() == StateLost {
		return nil, ideerr.ConnectionLost(nil)
	}

	adapterID := s.AdapterID()
	if action == ActionPause {
		if err := s.requireRunning(string(action)); err != nil {
			return nil, err
		}
		if err := m.adapter.DapPause(ctx, adapterID); err != nil {
			return nil, err
		}
	} else {
		tk, err := s.beginResume(string(action))
		if err != nil {
			return nil, err
		}
		var callErr error
		switch action {
		case ActionContinue:
			callErr = m.adapter.DapContinue(ctx, adapterID)
		case ActionStepOver:
			callErr = m.adapter.DapNext(ctx, adapterID)
		case ActionStepInto:
			callErr = m.adapter.DapStepIn(ctx, adapterID)
		case ActionStepOut:
			callErr = m.adapter.DapStepOut(ctx, adapterID)
		default:
			callErr = fmt.Errorf("unknown action %q", action)
		}
		if callErr != nil {
			s.rollbackResume(tk)
			return nil, callErr
		}
	}
	m.log.Infof("debug: session %s: %s issued", sessionID, action)
	info := s.Info()
	return &info, nil
}

// InspectState returns the paused session's snapshot, fetching it from
// the adapter on first use and serving it from cache until the next
// resume. A non-empty expression is evaluated in the top frame; the
// evaluation itself is never cached.
func (m *Manager) InspectState(ctx context.Context, sessionID, expression string) (*Snapshot, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.State() == StateLost {
		return nil, ideerr.ConnectionLost(nil)
	}
	fence, err := s.requirePaused("inspect state")
	if err != nil {
		return nil, err
	}

	snap := s.cachedSnapshot()
	if snap == nil {
		snap, err = m.fetchSnapshot(ctx, s)
		if err != nil {
			return nil, err
		}
		if !s.storeSnapshot(snap, fence) {
			// The session moved on while we were fetching.
			return nil, ideerr.InvalidState("inspect state", s.State().String())
		}
	}

	if expression == "" {
		return snap, nil
	}
	frameID := 0
	if len(snap.Frames) > 0 {
		frameID = snap.Frames[0].ID
	}
	res, err := m.adapter.DapEvaluate(ctx, s.AdapterID(), frameID, expression)
	if err != nil {
		return nil, err
	}
	withEval := *snap
	withEval.Evaluation = &EvalResult{Expression: expression, Value: res.Result, Type: res.Type}
	return &withEval, nil
}

func (m *Manager) fetchSnapshot(ctx context.Context, s *Session) (*Snapshot, error) {
	adapterID := s.AdapterID()
	dapFrames, err := m.adapter.DapStackTrace(ctx, adapterID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{CapturedAt: time.Now()}
	s.mu.Lock()
	snap.Reason = s.stopReason
	snap.ThreadID = s.stoppedThread
	s.mu.Unlock()
	for _, f := range dapFrames {
		snap.Frames = append(snap.Frames, frameFromDAP(f))
	}
	if len(snap.Frames) == 0 {
		return snap, nil
	}

	scopes, err := m.adapter.DapScopes(ctx, adapterID, snap.Frames[0].ID)
	if err != nil {
		return nil, err
	}
	for _, sc := range scopes {
		if sc.Expensive {
			continue
		}
		vars, err := m.adapter.DapVariables(ctx, adapterID, sc.VariablesReference)
		if err != nil {
			return nil, err
		}
		sv := ScopeVars{Name: sc.Name}
		for _, v := range vars {
			sv.Variables = append(sv.Variables, variableFromDAP(v))
		}
		snap.Scopes = append(snap.Scopes, sv)
	}
	return snap, nil
}

// Terminate ends a session. Terminating an already-terminal session is
// a no-op that reports the current state without touching the adapter.
func (m *Manager) Terminate(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.State().Terminal() {
		info := s.Info()
		return &info, nil
	}
	adapterID := s.AdapterID()
	if err := m.adapter.DapTerminate(ctx, adapterID); err != nil {
		// Best effort: the session ends locally regardless.
		m.log.Warnf("debug: session %s: terminate request failed: %v", sessionID, err)
	}
	s.markTerminated()
	m.unmapAdapter(adapterID)
	m.log.Infof("debug: session %s terminated", sessionID)
	info := s.Info()
	return &info, nil
}

// Shutdown terminates every active session, best effort.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, info := range m.List() {
		if !info.State.Terminal() {
			m.Terminate(ctx, info.ID)
		}
	}
}

// Info returns a copy of one session's observable state.
func (m *Manager) Info(sessionID string) (*SessionInfo, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	info := s.Info()
	return &info, nil
}

// List returns all sessions, oldest first.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Manager) session(id string) (*Session, error) {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s == nil {
		return nil, ideerr.NotFound("session " + id)
	}
	return s, nil
}

func (m *Manager) register(s *Session, adapterID string) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.remote[adapterID] = s.ID
	m.mu.Unlock()
}

func (m *Manager) unmapAdapter(adapterID string) {
	m.mu.Lock()
	delete(m.remote, adapterID)
	m.mu.Unlock()
}

// forceRunning applies the launching-to-running transition from the
// status poll fallback when the ready event was missed.
func (s *Session) forceRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLaunching {
		s.state = StateRunning
	}
}

var languageByExt = map[string]string{
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
	".go":  "go",
	".rs":  "rust",
}

func languageForPath(path string) (string, error) {
	if lang, ok := languageByExt[filepath.Ext(path)]; ok {
		return lang, nil
	}
	return "", ideerr.LaunchFailed(fmt.Sprintf("cannot determine debug language for %s", path), nil)
}

func sortBreakpoints(bps []Breakpoint) {
	sort.Slice(bps, func(i, j int) bool {
		if bps[i].Path == bps[j].Path {
			return bps[i].Line < bps[j].Line
		}
		return bps[i].Path < bps[j].Path
	})
}
