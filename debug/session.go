package debug

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
	"github.com/nvimbridge/nvim-ide-mcp/log"
)

// outputRingSize bounds the retained target output per session.
const outputRingSize = 100

// Session is one logical debug session. All fields are guarded by mu;
// opMu serializes caller-issued operations so conflicting controls
// queue instead of interleaving.
type Session struct {
	ID        string
	CreatedAt time.Time

	log log.Logger

	// opMu is held for the whole duration of each caller operation.
	opMu sync.Mutex

	mu            sync.Mutex
	state         State
	adapterID     string
	launch        LaunchConfig
	breakpoints   map[string][]Breakpoint
	stopReason    StopReason
	stoppedThread int
	// stops counts applied stop events, fencing snapshot stores and
	// resume rollbacks against pauses that happened in between.
	stops           uint64
	snapshot        *Snapshot
	output          []OutputLine
	outputTruncated bool
	exitCode        *int
}

func newSession(id string, launch LaunchConfig, logger log.Logger) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		log:         logger,
		state:       StateUninitialized,
		launch:      launch,
		breakpoints: make(map[string][]Breakpoint),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AdapterID returns the editor-side adapter identifier.
func (s *Session) AdapterID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapterID
}

func (s *Session) setAdapterID(id string) {
	s.mu.Lock()
	s.adapterID = id
	s.mu.Unlock()
}

// toLaunching validates the start transition.
func (s *Session) toLaunching() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return ideerr.InvalidState("start", s.state.String())
	}
	s.state = StateLaunching
	return nil
}

// resumeToken remembers what a resume overwrote so a failed remote
// call can be rolled back, unless a stop landed in between.
type resumeToken struct {
	stops  uint64
	reason StopReason
	thread int
}

// beginResume validates a resume action and applies it optimistically:
// the snapshot is dropped and the state moves to Running before the
// remote call is issued, so a caller can never observe stale paused
// state after resuming.
func (s *Session) beginResume(op string) (resumeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return resumeToken{}, ideerr.InvalidState(op, s.state.String())
	}
	tk := resumeToken{stops: s.stops, reason: s.stopReason, thread: s.stoppedThread}
	s.snapshot = nil
	s.stopReason = StopNone
	s.stoppedThread = 0
	s.state = StateRunning
	return tk, nil
}

// rollbackResume restores the paused state after a rejected resume.
// If a stop event was applied since beginResume the rollback is
// discarded: the newer stop wins.
func (s *Session) rollbackResume(tk resumeToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.stops != tk.stops {
		return
	}
	s.state = StatePaused
	s.stopReason = tk.reason
	s.stoppedThread = tk.thread
}

// requireRunning validates a pause request. The transition to Paused
// itself happens when the stop event arrives.
func (s *Session) requireRunning(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return ideerr.InvalidState(op, s.state.String())
	}
	return nil
}

// requirePaused validates an inspect request and returns the stop
// fence the caller must pass back to storeSnapshot.
func (s *Session) requirePaused(op string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return 0, ideerr.InvalidState(op, s.state.String())
	}
	return s.stops, nil
}

func (s *Session) cachedSnapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// storeSnapshot caches snap unless the session moved on while it was
// being fetched. Returns false when the snapshot must be discarded.
func (s *Session) storeSnapshot(snap *Snapshot, stops uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused || s.stops != stops {
		return false
	}
	s.snapshot = snap
	return true
}

// markTerminated moves the session to Terminated. Safe on terminal
// sessions.
func (s *Session) markTerminated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		s.state = StateTerminated
		s.snapshot = nil
	}
}

// markLost transitions any non-terminal session to Lost. Reports
// whether a transition happened.
func (s *Session) markLost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = StateLost
	s.snapshot = nil
	return true
}

// applyEvent folds one correlated adapter event into the session.
// Events that are not valid in the current state are dropped with a
// diagnostic log; they never invent transitions.
func (s *Session) applyEvent(ev editor.DebugEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Event {
	case "initialized":
		if s.state != StateLaunching {
			s.log.Debugf("debug: session %s: dropping initialized event in state %s", s.ID, s.state)
			return
		}
		s.state = StateRunning
	case "stopped":
		if s.state != StateRunning {
			s.log.Debugf("debug: session %s: dropping stopped event in state %s", s.ID, s.state)
			return
		}
		var body dap.StoppedEventBody
		if err := json.Unmarshal(ev.Body, &body); err != nil {
			s.log.Warnf("debug: session %s: malformed stopped event: %v", s.ID, err)
			return
		}
		s.state = StatePaused
		s.stopReason = mapStopReason(body.Reason)
		s.stoppedThread = body.ThreadId
		s.stops++
		s.snapshot = nil
	case "continued":
		if s.state != StatePaused {
			s.log.Debugf("debug: session %s: dropping continued event in state %s", s.ID, s.state)
			return
		}
		s.state = StateRunning
		s.stopReason = StopNone
		s.stoppedThread = 0
		s.snapshot = nil
	case "output":
		var body dap.OutputEventBody
		if err := json.Unmarshal(ev.Body, &body); err != nil {
			return
		}
		s.appendOutputLocked(body.Category, body.Output)
	case "exited":
		var body dap.ExitedEventBody
		if err := json.Unmarshal(ev.Body, &body); err == nil {
			code := body.ExitCode
			s.exitCode = &code
		}
		if !s.state.Terminal() {
			s.state = StateTerminated
			s.snapshot = nil
		}
	case "terminated":
		if !s.state.Terminal() {
			s.state = StateTerminated
			s.snapshot = nil
		}
	default:
		s.log.Debugf("debug: session %s: ignoring event %s", s.ID, ev.Event)
	}
}

func (s *Session) appendOutputLocked(category, text string) {
	line := OutputLine{Category: category, Text: text}
	if len(s.output) >= outputRingSize {
		copy(s.output, s.output[1:])
		s.output[len(s.output)-1] = line
		s.outputTruncated = true
		return
	}
	s.output = append(s.output, line)
}

func (s *Session) fileBreakpoints(path string) []Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Breakpoint(nil), s.breakpoints[path]...)
}

func (s *Session) setFileBreakpoints(path string, bps []Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(bps) == 0 {
		delete(s.breakpoints, path)
		return
	}
	s.breakpoints[path] = bps
}

// Info copies the observable session state.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{
		ID:              s.ID,
		State:           s.state,
		Program:         s.launch.Program,
		Module:          s.launch.Module,
		Language:        s.launch.Language,
		StopReason:      s.stopReason,
		StoppedThread:   s.stoppedThread,
		Output:          append([]OutputLine(nil), s.output...),
		OutputTruncated: s.outputTruncated,
		CreatedAt:       s.CreatedAt,
	}
	if s.exitCode != nil {
		code := *s.exitCode
		info.ExitCode = &code
	}
	for _, bps := range s.breakpoints {
		info.Breakpoints = append(info.Breakpoints, bps...)
	}
	sortBreakpoints(info.Breakpoints)
	return info
}
