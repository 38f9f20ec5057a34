package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tomodoro/tomo"
)

const (
	SelectAllSessions   = "SELECT id, phase, status, started_at, ended_at, scheduled_duration, actual_duration, created_at, updated_at FROM sessions"
	SelectAllTimerState = "SELECT phase, paused_from, phase_started_at, paused_elapsed, completed_intervals, end_requested, work_duration, short_break_duration, long_break_duration, intervals FROM timer_state"
)

type sessionEntity struct {
	ID                  string
	Phase               uint8
	Status              uint8
	StartedAt           int64
	EndedAt             int64
	ScheduledDurationMS int64
	ActualDurationMS    int64
	CreatedAt           int64
	UpdatedAt           int64
}

type timerStateEntity struct {
	Phase              uint8
	PausedFrom         uint8
	PhaseStartedAt     int64
	PausedElapsedMS    int64
	CompletedIntervals int
	EndRequested       bool
	WorkMS             int64
	ShortBreakMS       int64
	LongBreakMS        int64
	Intervals          int
}

// sessionRepo
type sessionRepo struct {
	dbGetter txStdLib.DBGetter
	l        log.Logger
}

func NewSessionRepo(dbGetter txStdLib.DBGetter, logger log.Logger) *sessionRepo {
	return &sessionRepo{
		dbGetter: dbGetter,
		l:        logger,
	}
}

func (r *sessionRepo) InsertSession(ctx context.Context, session tomo.SessionRecord) (tomo.ExistingSessionRecord, error) {
	db := r.dbGetter(ctx)
	existingRecord := tomo.ExistingSessionRecord{
		SessionRecord:  session,
		ExistingRecord: tomo.NewExistingRecord[tomo.SessionID](uuid.NewString()),
	}
	e := mapToSessionEntity(existingRecord)

	args := []any{
		e.ID,
		e.Phase,
		e.Status,
		e.StartedAt,
		e.EndedAt,
		e.ScheduledDurationMS,
		e.ActualDurationMS,
		e.CreatedAt,
		e.UpdatedAt,
	}
	query := "INSERT INTO sessions (id, phase, status, started_at, ended_at, scheduled_duration, actual_duration, created_at, updated_at) VALUES " + generateParameters(len(args))
	r.l.Debug("inserting session", "query", query, "args", args)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return tomo.ExistingSessionRecord{}, fmt.Errorf("%w: insert session: %v", tomo.ErrStorage, err)
	}

	return existingRecord, nil
}

func (r *sessionRepo) RestoreSession(ctx context.Context, rec tomo.ExistingSessionRecord) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("%w: restore session: missing id", tomo.ErrStorage)
	}

	db := r.dbGetter(ctx)
	e := mapToSessionEntity(rec)
	args := []any{
		e.ID,
		e.Phase,
		e.Status,
		e.StartedAt,
		e.EndedAt,
		e.ScheduledDurationMS,
		e.ActualDurationMS,
		e.CreatedAt,
		e.UpdatedAt,
	}
	query := "INSERT OR IGNORE INTO sessions (id, phase, status, started_at, ended_at, scheduled_duration, actual_duration, created_at, updated_at) VALUES " + generateParameters(len(args))
	r.l.Debug("restoring session", "query", query, "id", e.ID)
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: restore session: %v", tomo.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: restore session: %v", tomo.ErrStorage, err)
	}

	return n > 0, nil
}

func (r *sessionRepo) QuerySessions(ctx context.Context, f tomo.QueryFilter) (tomo.SessionCursor, error) {
	query := SelectAllSessions
	var conds []string
	var args []any
	if !f.From.IsZero() {
		conds = append(conds, "started_at >= ?")
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		conds = append(conds, "started_at < ?")
		args = append(args, f.To.Unix())
	}
	if len(f.Phases) > 0 {
		conds = append(conds, "phase IN "+generateParameters(len(f.Phases)))
		for _, p := range f.Phases {
			args = append(args, uint8(p))
		}
	}
	if f.Status != 0 {
		conds = append(conds, "status = ?")
		args = append(args, uint8(f.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at ASC, id ASC"

	r.l.Debug("querying sessions", "query", query, "args", args)
	rows, err := r.dbGetter(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query sessions: %v", tomo.ErrStorage, err)
	}

	return &sessionCursor{rows: rows}, nil
}

func (r *sessionRepo) CountSessions(ctx context.Context) (int, error) {
	var n int
	err := r.dbGetter(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count sessions: %v", tomo.ErrStorage, err)
	}
	return n, nil
}

func (r *sessionRepo) SaveTimerState(ctx context.Context, state tomo.TimerStateRecord) error {
	db := r.dbGetter(ctx)
	e := mapToTimerStateEntity(state)
	now := time.Now().Unix()

	query := `INSERT INTO timer_state (id, phase, paused_from, phase_started_at, paused_elapsed, completed_intervals, end_requested, work_duration, short_break_duration, long_break_duration, intervals, created_at, updated_at)
VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	phase = excluded.phase,
	paused_from = excluded.paused_from,
	phase_started_at = excluded.phase_started_at,
	paused_elapsed = excluded.paused_elapsed,
	completed_intervals = excluded.completed_intervals,
	end_requested = excluded.end_requested,
	work_duration = excluded.work_duration,
	short_break_duration = excluded.short_break_duration,
	long_break_duration = excluded.long_break_duration,
	intervals = excluded.intervals,
	updated_at = excluded.updated_at`
	args := []any{
		e.Phase,
		e.PausedFrom,
		e.PhaseStartedAt,
		e.PausedElapsedMS,
		e.CompletedIntervals,
		e.EndRequested,
		e.WorkMS,
		e.ShortBreakMS,
		e.LongBreakMS,
		e.Intervals,
		now,
		now,
	}
	r.l.Debug("saving timer state", "phase", state.Phase, "args", args)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: save timer state: %v", tomo.ErrStorage, err)
	}

	return nil
}

func (r *sessionRepo) GetTimerState(ctx context.Context) (tomo.TimerStateRecord, error) {
	db := r.dbGetter(ctx)
	row := db.QueryRowContext(ctx, SelectAllTimerState+" WHERE id = 1")

	var e timerStateEntity
	err := row.Scan(
		&e.Phase,
		&e.PausedFrom,
		&e.PhaseStartedAt,
		&e.PausedElapsedMS,
		&e.CompletedIntervals,
		&e.EndRequested,
		&e.WorkMS,
		&e.ShortBreakMS,
		&e.LongBreakMS,
		&e.Intervals,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tomo.TimerStateRecord{}, ErrNotFound
		}
		return tomo.TimerStateRecord{}, fmt.Errorf("%w: get timer state: %v", tomo.ErrStorage, err)
	}

	return mapToTimerStateRecord(e), nil
}

func (r *sessionRepo) ClearTimerState(ctx context.Context) error {
	db := r.dbGetter(ctx)
	r.l.Debug("clearing timer state")
	if _, err := db.ExecContext(ctx, "DELETE FROM timer_state WHERE id = 1"); err != nil {
		return fmt.Errorf("%w: clear timer state: %v", tomo.ErrStorage, err)
	}
	return nil
}

// sessionCursor lazily maps sql.Rows to records. It is finite and not
// restartable; callers own Close.
type sessionCursor struct {
	rows *sql.Rows
	curr tomo.ExistingSessionRecord
	err  error
}

func (c *sessionCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	rec, err := extractSession(c.rows)
	if err != nil {
		c.err = err
		return false
	}
	c.curr = rec
	return true
}

func (c *sessionCursor) Record() tomo.ExistingSessionRecord {
	return c.curr
}

func (c *sessionCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate sessions: %v", tomo.ErrStorage, err)
	}
	return nil
}

func (c *sessionCursor) Close() error {
	return c.rows.Close()
}

func extractSession(s Scannable) (tomo.ExistingSessionRecord, error) {
	var e sessionEntity
	if err := s.Scan(&e.ID, &e.Phase, &e.Status, &e.StartedAt, &e.EndedAt, &e.ScheduledDurationMS, &e.ActualDurationMS, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tomo.ExistingSessionRecord{}, ErrNotFound
		}
		return tomo.ExistingSessionRecord{}, fmt.Errorf("%w: scan session: %v", tomo.ErrStorage, err)
	}

	return mapToExistingSessionRecord(e), nil
}

func mapToSessionEntity(session tomo.ExistingSessionRecord) sessionEntity {
	return sessionEntity{
		ID:                  string(session.ID),
		Phase:               uint8(session.Phase),
		Status:              uint8(session.Status),
		StartedAt:           session.StartedAt.Unix(),
		EndedAt:             session.EndedAt.Unix(),
		ScheduledDurationMS: session.ScheduledDuration.Milliseconds(),
		ActualDurationMS:    session.ActualDuration.Milliseconds(),
		CreatedAt:           session.CreatedAt.Unix(),
		UpdatedAt:           session.UpdatedAt.Unix(),
	}
}

func mapToExistingSessionRecord(e sessionEntity) tomo.ExistingSessionRecord {
	return tomo.ExistingSessionRecord{
		ExistingRecord: tomo.ExistingRecord[tomo.SessionID]{
			ID:        tomo.SessionID(e.ID),
			CreatedAt: time.Unix(e.CreatedAt, 0),
			UpdatedAt: time.Unix(e.UpdatedAt, 0),
		},
		SessionRecord: tomo.SessionRecord{
			Phase:             tomo.Phase(e.Phase),
			Status:            tomo.SessionStatus(e.Status),
			StartedAt:         time.Unix(e.StartedAt, 0),
			EndedAt:           time.Unix(e.EndedAt, 0),
			ScheduledDuration: time.Duration(e.ScheduledDurationMS) * time.Millisecond,
			ActualDuration:    time.Duration(e.ActualDurationMS) * time.Millisecond,
		},
	}
}

func mapToTimerStateEntity(state tomo.TimerStateRecord) timerStateEntity {
	return timerStateEntity{
		Phase:              uint8(state.Phase),
		PausedFrom:         uint8(state.PausedFrom),
		PhaseStartedAt:     state.PhaseStartedAt.Unix(),
		PausedElapsedMS:    state.PausedElapsed.Milliseconds(),
		CompletedIntervals: state.CompletedIntervals,
		EndRequested:       state.EndRequested,
		WorkMS:             state.Work.Milliseconds(),
		ShortBreakMS:       state.ShortBreak.Milliseconds(),
		LongBreakMS:        state.LongBreak.Milliseconds(),
		Intervals:          state.Intervals,
	}
}

func mapToTimerStateRecord(e timerStateEntity) tomo.TimerStateRecord {
	return tomo.TimerStateRecord{
		Phase:              tomo.Phase(e.Phase),
		PausedFrom:         tomo.Phase(e.PausedFrom),
		PhaseStartedAt:     time.Unix(e.PhaseStartedAt, 0),
		PausedElapsed:      time.Duration(e.PausedElapsedMS) * time.Millisecond,
		CompletedIntervals: e.CompletedIntervals,
		EndRequested:       e.EndRequested,
		Work:               time.Duration(e.WorkMS) * time.Millisecond,
		ShortBreak:         time.Duration(e.ShortBreakMS) * time.Millisecond,
		LongBreak:          time.Duration(e.LongBreakMS) * time.Millisecond,
		Intervals:          e.Intervals,
	}
}
