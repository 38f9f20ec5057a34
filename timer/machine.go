package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomodoro/tomo"
)

// transition applies cmd to s at now. It returns the next state and, for
// a reset of a work phase, the Abandoned record to log. Invalid commands
// leave the state untouched and return ErrInvalidTransition.
func transition(s State, cfg tomo.TimerConfig, cmd Command, now time.Time) (State, *tomo.SessionRecord, error) {
	switch cmd {
	case Start:
		if s.Phase != tomo.PhaseIdle && s.Phase != tomo.PhaseFinished {
			return s, nil, invalidTransition(cmd, s.Phase)
		}
		return State{
			Phase:          tomo.PhaseWorking,
			PhaseStartedAt: now,
		}, nil, nil

	case Pause:
		if !s.Phase.IsRunning() {
			return s, nil, invalidTransition(cmd, s.Phase)
		}
		next := s
		next.PausedFrom = s.Phase
		next.Phase = tomo.PhasePaused
		next.PausedElapsed = now.Sub(s.PhaseStartedAt)
		return next, nil, nil

	case Resume:
		if s.Phase != tomo.PhasePaused {
			return s, nil, invalidTransition(cmd, s.Phase)
		}
		next := s
		next.Phase = s.PausedFrom
		next.PausedFrom = 0
		// restamp so elapsed picks up exactly where the pause froze it
		next.PhaseStartedAt = now.Add(-s.PausedElapsed)
		next.PausedElapsed = 0
		return next, nil, nil

	case Reset:
		if s.Phase == tomo.PhaseIdle {
			return Idle(), nil, nil
		}
		active := s.Phase
		if s.Phase == tomo.PhasePaused {
			active = s.PausedFrom
		}
		var rec *tomo.SessionRecord
		if active == tomo.PhaseWorking {
			rec = &tomo.SessionRecord{
				Phase:             tomo.PhaseWorking,
				Status:            tomo.SessionAbandoned,
				StartedAt:         s.PhaseStartedAt,
				EndedAt:           now,
				ScheduledDuration: cfg.Work,
				ActualDuration:    s.Elapsed(now),
			}
		}
		return Idle(), rec, nil

	case RequestFinish:
		if !s.Phase.IsRunning() && s.Phase != tomo.PhasePaused {
			return s, nil, invalidTransition(cmd, s.Phase)
		}
		next := s
		next.EndRequested = true
		return next, nil, nil
	}

	return s, nil, fmt.Errorf("%w: unknown command %d", tomo.ErrInvalidTransition, cmd)
}

// advance walks every phase boundary due at now. Each step moves
// PhaseStartedAt forward by the scheduled duration, so evaluating again
// never double-counts; after a long gap several Completed records come
// back in order.
func advance(s State, cfg tomo.TimerConfig, now time.Time) (State, []tomo.SessionRecord) {
	var recs []tomo.SessionRecord
	for {
		next, rec, ok := advanceOne(s, cfg, now)
		if !ok {
			return s, recs
		}
		if rec != nil {
			recs = append(recs, *rec)
		}
		s = next
	}
}

// advanceOne resolves the earliest due boundary, if any.
func advanceOne(s State, cfg tomo.TimerConfig, now time.Time) (State, *tomo.SessionRecord, bool) {
	if !s.Phase.IsRunning() {
		return s, nil, false
	}
	scheduled := cfg.Duration(s.Phase)
	if scheduled <= 0 || now.Sub(s.PhaseStartedAt) < scheduled {
		return s, nil, false
	}

	boundary := s.PhaseStartedAt.Add(scheduled)
	next := s
	// may need multiple steps to catch up
	next.PhaseStartedAt = boundary

	var rec *tomo.SessionRecord
	switch s.Phase {
	case tomo.PhaseWorking:
		next.CompletedIntervals++
		if next.CompletedIntervals%cfg.Intervals == 0 {
			next.Phase = tomo.PhaseLongBreak
		} else {
			next.Phase = tomo.PhaseShortBreak
		}
		rec = &tomo.SessionRecord{
			Phase:             tomo.PhaseWorking,
			Status:            tomo.SessionCompleted,
			StartedAt:         s.PhaseStartedAt,
			EndedAt:           boundary,
			ScheduledDuration: scheduled,
			ActualDuration:    scheduled,
		}
	default:
		if s.EndRequested {
			next.Phase = tomo.PhaseFinished
			next.EndRequested = false
		} else {
			next.Phase = tomo.PhaseWorking
		}
	}

	return next, rec, true
}

func invalidTransition(cmd Command, p tomo.Phase) error {
	return fmt.Errorf("%w: %s from %s", tomo.ErrInvalidTransition, cmd, p)
}

// Machine owns a State and serializes every mutation behind one mutex.
// There is one logical timer per process; the controller in cmd/tomo is
// its single writer.
type Machine struct {
	mu    sync.Mutex
	cfg   tomo.TimerConfig
	state State
	clock Clock
}

func NewMachine(cfg tomo.TimerConfig, clock Clock) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Machine{
		cfg:   cfg,
		state: Idle(),
		clock: clock,
	}, nil
}

// Restore seeds the machine from a persisted state, e.g. after a detach
// or a crash. Callers should Advance right after to catch up.
func (m *Machine) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *Machine) Config() tomo.TimerConfig {
	return m.cfg
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply resolves every boundary due by now, then runs cmd against the
// caught-up state. A command can only act on the phase the timer is
// actually in: a pause landing just after a work boundary pauses the
// break that began at that boundary, and a reset there never abandons
// the interval that already completed. The returned records are the
// Completed sessions the catch-up emitted plus, for a reset of a work
// phase, the Abandoned one it cut short, oldest first; they come back
// even when the command itself is rejected.
func (m *Machine) Apply(cmd Command) (State, []tomo.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	caught, recs := advance(m.state, m.cfg, now)
	m.state = caught
	next, rec, err := transition(caught, m.cfg, cmd, now)
	if err != nil {
		return caught, recs, err
	}
	if rec != nil {
		recs = append(recs, *rec)
	}
	m.state = next
	return next, recs, nil
}

// Advance resolves every boundary due by now and returns the Completed
// work sessions that fell out, oldest first.
func (m *Machine) Advance() (State, []tomo.SessionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, recs := advance(m.state, m.cfg, m.clock.Now())
	m.state = next
	return next, recs
}

// Snapshot is a point-in-time view for rendering and notifications.
type Snapshot struct {
	Phase              tomo.Phase
	PausedFrom         tomo.Phase
	Elapsed            time.Duration
	Remaining          time.Duration
	Scheduled          time.Duration
	CompletedIntervals int
	EndRequested       bool
	At                 time.Time
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newSnapshot(m.state, m.cfg, m.clock.Now())
}

func newSnapshot(s State, cfg tomo.TimerConfig, now time.Time) Snapshot {
	scheduled := cfg.Duration(s.Phase)
	if s.Phase == tomo.PhasePaused {
		scheduled = cfg.Duration(s.PausedFrom)
	}
	remaining := s.Remaining(cfg, now)
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		Phase:              s.Phase,
		PausedFrom:         s.PausedFrom,
		Elapsed:            s.Elapsed(now),
		Remaining:          remaining,
		Scheduled:          scheduled,
		CompletedIntervals: s.CompletedIntervals,
		EndRequested:       s.EndRequested,
		At:                 now,
	}
}
