package escalate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vigil-labs/vigil-core/internal/config"
	"github.com/vigil-labs/vigil-core/internal/score"
)

// State is the per-session escalation level.
type State int

const (
	StateQuiet State = iota
	StateMild
	StateSerious
)

func (s State) String() string {
	switch s {
	case StateMild:
		return "mild"
	case StateSerious:
		return "serious"
	default:
		return "quiet"
	}
}

// Observation reports what one score did to a session.
type Observation struct {
	From       State
	To         State
	AlertFired bool
}

type session struct {
	state       State
	windowStart time.Time // detection that entered Mild
	lastQualify time.Time
}

// Engine is the only component with session-spanning memory. Updates must
// arrive in clip order; callers serialize through a single worker and the
// internal mutex guards concurrent readers.
type Engine struct {
	window   time.Duration
	cooldown time.Duration
	log      *slog.Logger
	clock    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewEngine(cfg config.EscalationConfig, log *slog.Logger) *Engine {
	return &Engine{
		window:   time.Duration(cfg.WindowMS) * time.Millisecond,
		cooldown: time.Duration(cfg.CooldownMS) * time.Millisecond,
		log:      log.With(slog.String("component", "escalation")),
		clock:    time.Now,
	}
}

// Observe applies one severity verdict to a session and returns the
// resulting transition. Alerts fire only on escalating transitions; decay
// back to quiet is logged but never alerted.
func (e *Engine) Observe(sessionID string, tier score.Tier) Observation {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	s := e.session(sessionID)

	e.decay(sessionID, s, now)

	from := s.state
	switch {
	case tier >= score.TierSerious:
		s.lastQualify = now
		if s.state != StateSerious {
			s.state = StateSerious
		}
	case tier >= score.TierMild:
		s.lastQualify = now
		switch s.state {
		case StateQuiet:
			s.state = StateMild
			s.windowStart = now
		case StateMild:
			if now.Sub(s.windowStart) <= e.window {
				s.state = StateSerious
			} else {
				// Outside the window the earlier detection no longer
				// counts; this one opens a fresh window.
				s.windowStart = now
			}
		case StateSerious:
			// Qualifying detection during cooldown resets the timer,
			// which lastQualify above already did.
		}
	}

	obs := Observation{From: from, To: s.state, AlertFired: s.state > from}
	if obs.AlertFired {
		e.log.Info("session escalated",
			slog.String("session", sessionID),
			slog.String("from", from.String()),
			slog.String("to", s.state.String()))
	}
	return obs
}

// State reports the current level, applying any pending cooldown decay.
func (e *Engine) State(sessionID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		return StateQuiet
	}
	e.decay(sessionID, s, e.clock())
	return s.state
}

// Reset returns a session to quiet on an external signal.
func (e *Engine) Reset(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[sessionID]; ok && s.state != StateQuiet {
		e.log.Info("session reset", slog.String("session", sessionID), slog.String("from", s.state.String()))
	}
	delete(e.sessions, sessionID)
}

func (e *Engine) session(id string) *session {
	if e.sessions == nil {
		e.sessions = make(map[string]*session)
	}
	s, ok := e.sessions[id]
	if !ok {
		s = &session{}
		e.sessions[id] = s
	}
	return s
}

// decay drops a session back to quiet once the cooldown elapses without a
// qualifying detection. Caller holds the mutex.
func (e *Engine) decay(sessionID string, s *session, now time.Time) {
	if s.state == StateQuiet {
		return
	}
	if now.Sub(s.lastQualify) >= e.cooldown {
		e.log.Info("session cooled down",
			slog.String("session", sessionID),
			slog.String("from", s.state.String()))
		s.state = StateQuiet
		s.windowStart = time.Time{}
	}
}
