package tomo

import (
	"context"
	"fmt"
	"time"
)

// Phase identifies what the timer is doing. Session records only ever
// carry Working, ShortBreak, or LongBreak; the remaining values exist
// for the timer itself.
type Phase uint8

const (
	_ Phase = iota
	PhaseIdle
	PhaseWorking
	PhaseShortBreak
	PhaseLongBreak
	PhasePaused
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseWorking:
		return "Working"
	case PhaseShortBreak:
		return "Short Break"
	case PhaseLongBreak:
		return "Long Break"
	case PhasePaused:
		return "Paused"
	case PhaseFinished:
		return "Finished"
	default:
		panic(fmt.Sprintf("no matching enum for Phase: %d", p))
	}
}

// IsBreak reports whether p is one of the two break phases.
func (p Phase) IsBreak() bool {
	return p == PhaseShortBreak || p == PhaseLongBreak
}

// IsRunning reports whether p consumes wall-clock time.
func (p Phase) IsRunning() bool {
	return p == PhaseWorking || p.IsBreak()
}

type SessionStatus uint8

const (
	_ SessionStatus = iota
	SessionCompleted
	SessionAbandoned
)

func (s SessionStatus) String() string {
	switch s {
	case SessionCompleted:
		return "Completed"
	case SessionAbandoned:
		return "Abandoned"
	default:
		panic(fmt.Sprintf("no matching enum for SessionStatus: %d", s))
	}
}

type SessionID string

// SessionRecord is one finished stretch of timer activity. Records are
// immutable once written; corrections are superseding inserts.
type SessionRecord struct {
	Phase  Phase
	Status SessionStatus

	//
	StartedAt         time.Time
	EndedAt           time.Time
	ScheduledDuration time.Duration
	ActualDuration    time.Duration
}

type ExistingRecord[T ~string] struct {
	ID        T
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewExistingRecord[T ~string](id string) ExistingRecord[T] {
	now := time.Now()
	return ExistingRecord[T]{
		ID:        T(id),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type ExistingSessionRecord struct {
	ExistingRecord[SessionID]
	SessionRecord
}

// TimerStateRecord mirrors the in-progress timer so a later invocation
// can restore it. At most one exists. The config fields capture the
// values in effect when the timer started; restore stays faithful even
// if the config file changed in between.
type TimerStateRecord struct {
	Phase              Phase
	PausedFrom         Phase
	PhaseStartedAt     time.Time
	PausedElapsed      time.Duration
	CompletedIntervals int
	EndRequested       bool

	// Config in effect when the timer started.
	Work       time.Duration
	ShortBreak time.Duration
	LongBreak  time.Duration
	Intervals  int
}

func (r TimerStateRecord) Config() TimerConfig {
	return TimerConfig{
		Work:       r.Work,
		ShortBreak: r.ShortBreak,
		LongBreak:  r.LongBreak,
		Intervals:  r.Intervals,
	}
}

// QueryFilter bounds QuerySessions. From/To form a half-open interval
// [From, To) over StartedAt; a zero value leaves that side unbounded.
// Phases and Status narrow further when set.
type QueryFilter struct {
	From, To time.Time
	Phases   []Phase
	Status   SessionStatus
}

// SessionCursor streams query results ordered by StartedAt, then ID. It
// is finite and cannot be restarted; callers must Close it.
type SessionCursor interface {
	Next() bool
	Record() ExistingSessionRecord
	Err() error
	Close() error
}

type SessionQuerier interface {
	QuerySessions(context.Context, QueryFilter) (SessionCursor, error)
	CountSessions(context.Context) (int, error)
}

type SessionRepo interface {
	SessionQuerier
	InsertSession(context.Context, SessionRecord) (ExistingSessionRecord, error)
	// RestoreSession inserts a record that already has an identity,
	// keeping its ID and timestamps; it reports false when that ID is
	// already present.
	RestoreSession(context.Context, ExistingSessionRecord) (bool, error)
	SaveTimerState(context.Context, TimerStateRecord) error
	GetTimerState(context.Context) (TimerStateRecord, error)
	ClearTimerState(context.Context) error
}
