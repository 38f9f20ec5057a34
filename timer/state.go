// Package timer implements the pomodoro state machine.
package timer

import (
	"time"

	"github.com/tomodoro/tomo"
)

// State is the complete condition of the timer. It is a plain value;
// only transition and advance produce new ones.
type State struct {
	Phase              tomo.Phase
	PausedFrom         tomo.Phase
	PhaseStartedAt     time.Time
	PausedElapsed      time.Duration
	CompletedIntervals int
	EndRequested       bool
}

func Idle() State {
	return State{Phase: tomo.PhaseIdle}
}

// Elapsed reports how much of the current phase has run at now. While
// paused the value is frozen at PausedElapsed.
func (s State) Elapsed(now time.Time) time.Duration {
	switch {
	case s.Phase.IsRunning():
		return now.Sub(s.PhaseStartedAt)
	case s.Phase == tomo.PhasePaused:
		return s.PausedElapsed
	default:
		return 0
	}
}

// Remaining reports time left in the current phase at now, or 0 when no
// phase is running.
func (s State) Remaining(cfg tomo.TimerConfig, now time.Time) time.Duration {
	switch {
	case s.Phase.IsRunning():
		return cfg.Duration(s.Phase) - s.Elapsed(now)
	case s.Phase == tomo.PhasePaused:
		return cfg.Duration(s.PausedFrom) - s.PausedElapsed
	default:
		return 0
	}
}

// Record flattens the state with the config in effect into its persisted
// mirror.
func (s State) Record(cfg tomo.TimerConfig) tomo.TimerStateRecord {
	return tomo.TimerStateRecord{
		Phase:              s.Phase,
		PausedFrom:         s.PausedFrom,
		PhaseStartedAt:     s.PhaseStartedAt,
		PausedElapsed:      s.PausedElapsed,
		CompletedIntervals: s.CompletedIntervals,
		EndRequested:       s.EndRequested,
		Work:               cfg.Work,
		ShortBreak:         cfg.ShortBreak,
		LongBreak:          cfg.LongBreak,
		Intervals:          cfg.Intervals,
	}
}

// StateFromRecord rebuilds a State from its persisted mirror.
func StateFromRecord(r tomo.TimerStateRecord) State {
	return State{
		Phase:              r.Phase,
		PausedFrom:         r.PausedFrom,
		PhaseStartedAt:     r.PhaseStartedAt,
		PausedElapsed:      r.PausedElapsed,
		CompletedIntervals: r.CompletedIntervals,
		EndRequested:       r.EndRequested,
	}
}
