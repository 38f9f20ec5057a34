// Package analytics derives summary statistics from session history.
// Everything is recomputed from live queries; nothing is cached.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/tomodoro/tomo"
)

type Summary struct {
	CompletedWorkSessions int
	AbandonedWorkSessions int
	FocusedDuration       time.Duration
	CompletionRate        float64
	StreakDays            int
}

// DayTotal aggregates one local calendar day.
type DayTotal struct {
	Day      time.Time
	Focused  time.Duration
	Sessions int
}

type Engine struct {
	src tomo.SessionQuerier
	now func() time.Time
}

func NewEngine(src tomo.SessionQuerier, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{src: src, now: now}
}

// Summarize aggregates work sessions started in [from, to). Only work
// phases count; breaks carry no productivity value. The completion rate
// is 0, not NaN, when the window holds no work sessions.
func (e *Engine) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	cursor, err := e.src.QuerySessions(ctx, tomo.QueryFilter{
		From:   from,
		To:     to,
		Phases: []tomo.Phase{tomo.PhaseWorking},
	})
	if err != nil {
		return Summary{}, err
	}
	defer cursor.Close()

	var s Summary
	for cursor.Next() {
		rec := cursor.Record()
		switch rec.Status {
		case tomo.SessionCompleted:
			s.CompletedWorkSessions++
			s.FocusedDuration += rec.ActualDuration
		case tomo.SessionAbandoned:
			s.AbandonedWorkSessions++
		}
	}
	if err := cursor.Err(); err != nil {
		return Summary{}, err
	}

	if total := s.CompletedWorkSessions + s.AbandonedWorkSessions; total > 0 {
		s.CompletionRate = float64(s.CompletedWorkSessions) / float64(total)
	}

	streak, err := e.StreakDays(ctx)
	if err != nil {
		return Summary{}, err
	}
	s.StreakDays = streak

	return s, nil
}

// StreakDays counts consecutive local calendar days ending today that
// each hold at least one completed work session. A day without one ends
// the walk, so a sessionless today yields 0.
func (e *Engine) StreakDays(ctx context.Context) (int, error) {
	cursor, err := e.src.QuerySessions(ctx, tomo.QueryFilter{
		Phases: []tomo.Phase{tomo.PhaseWorking},
		Status: tomo.SessionCompleted,
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close()

	days := make(map[string]bool)
	for cursor.Next() {
		days[dayKey(cursor.Record().StartedAt)] = true
	}
	if err := cursor.Err(); err != nil {
		return 0, err
	}

	streak := 0
	for day := e.now(); days[dayKey(day)]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak, nil
}

// TopDays returns up to n days in [from, to) ranked by focused duration,
// then by session count, then by date.
func (e *Engine) TopDays(ctx context.Context, from, to time.Time, n int) ([]DayTotal, error) {
	if n <= 0 {
		return nil, nil
	}

	cursor, err := e.src.QuerySessions(ctx, tomo.QueryFilter{
		From:   from,
		To:     to,
		Phases: []tomo.Phase{tomo.PhaseWorking},
		Status: tomo.SessionCompleted,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	totals := make(map[string]*DayTotal)
	for cursor.Next() {
		rec := cursor.Record()
		key := dayKey(rec.StartedAt)
		dt := totals[key]
		if dt == nil {
			day, err := time.ParseInLocation(time.DateOnly, key, time.Local)
			if err != nil {
				return nil, err
			}
			dt = &DayTotal{Day: day}
			totals[key] = dt
		}
		dt.Focused += rec.ActualDuration
		dt.Sessions++
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	list := make([]DayTotal, 0, len(totals))
	for _, dt := range totals {
		list = append(list, *dt)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Focused != list[j].Focused {
			return list[i].Focused > list[j].Focused
		}
		if list[i].Sessions != list[j].Sessions {
			return list[i].Sessions > list[j].Sessions
		}
		return list[i].Day.Before(list[j].Day)
	})
	if len(list) > n {
		list = list[:n]
	}
	return list, nil
}

func dayKey(t time.Time) string {
	return t.Local().Format(time.DateOnly)
}
