package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thiht/transactor"
	"github.com/charmbracelet/log"

	"github.com/tomodoro/tomo"
	"github.com/tomodoro/tomo/sqlite"
	"github.com/tomodoro/tomo/timer"
)

// controller is the single writer of timer state. Every mutation goes
// through it: the machine transition first, then the matching writes
// (session inserts plus the in-progress mirror) in one transaction, so
// a crash can never observe half a transition.
type controller struct {
	machine *timer.Machine
	repo    tomo.SessionRepo
	tx      transactor.Transactor
}

func newController(machine *timer.Machine, repo tomo.SessionRepo, tx transactor.Transactor) *controller {
	return &controller{machine: machine, repo: repo, tx: tx}
}

// loadController rebuilds the controller from the persisted in-progress
// timer, or hands back an idle machine under cfg when none exists. A
// restored timer keeps the config it was started with, even if the
// config file has moved on since.
func loadController(ctx context.Context, repo tomo.SessionRepo, tx transactor.Transactor, cfg tomo.TimerConfig, clock timer.Clock) (*controller, bool, error) {
	rec, err := repo.GetTimerState(ctx)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			m, err := timer.NewMachine(cfg, clock)
			if err != nil {
				return nil, false, err
			}
			return newController(m, repo, tx), false, nil
		}
		return nil, false, err
	}
	m, err := timer.NewMachine(rec.Config(), clock)
	if err != nil {
		return nil, false, fmt.Errorf("%w: stored timer state is unusable: %v", tomo.ErrConfiguration, err)
	}
	m.Restore(timer.StateFromRecord(rec))
	return newController(m, repo, tx), true, nil
}

// Apply catches the machine up to now, runs one command, and persists
// the fallout: boundary completions and any abandoned session land in
// the same transaction as the mirror update. Catch-up effects persist
// even when the command itself is rejected.
func (c *controller) Apply(ctx context.Context, cmd timer.Command) (timer.State, []tomo.SessionRecord, error) {
	before := c.machine.State()
	st, recs, cmdErr := c.machine.Apply(cmd)
	if st == before && len(recs) == 0 {
		return st, recs, cmdErr
	}
	if err := c.persist(ctx, st, recs); err != nil {
		logUnpersisted(recs, err)
		return st, recs, err
	}
	return st, recs, cmdErr
}

// CatchUp resolves every boundary due by now and persists the fallout.
// A storage failure does not stop the timer: the records land in the
// log as a fallback and the countdown keeps going, so the error here
// is advisory for foreground use and fatal for one-shot commands.
func (c *controller) CatchUp(ctx context.Context) (timer.State, []tomo.SessionRecord, error) {
	before := c.machine.State()
	st, recs := c.machine.Advance()
	if st == before {
		return st, nil, nil
	}
	if err := c.persist(ctx, st, recs); err != nil {
		logUnpersisted(recs, err)
		return st, recs, err
	}
	return st, recs, nil
}

func logUnpersisted(recs []tomo.SessionRecord, err error) {
	log.Error("failed to persist timer progress", "records", len(recs), "err", err)
	for _, rec := range recs {
		log.Error("unpersisted session",
			"phase", rec.Phase,
			"status", rec.Status,
			"startedAt", rec.StartedAt,
			"endedAt", rec.EndedAt,
			"actual", rec.ActualDuration)
	}
}

// Checkpoint rewrites the in-progress mirror without advancing, used
// on detach.
func (c *controller) Checkpoint(ctx context.Context) error {
	return c.persist(ctx, c.machine.State(), nil)
}

func (c *controller) persist(ctx context.Context, st timer.State, recs []tomo.SessionRecord) error {
	return c.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, rec := range recs {
			if _, err := c.repo.InsertSession(ctx, rec); err != nil {
				return err
			}
		}
		if st.Phase == tomo.PhaseIdle || st.Phase == tomo.PhaseFinished {
			return c.repo.ClearTimerState(ctx)
		}
		return c.repo.SaveTimerState(ctx, st.Record(c.machine.Config()))
	})
}

func (c *controller) State() timer.State       { return c.machine.State() }
func (c *controller) Snapshot() timer.Snapshot { return c.machine.Snapshot() }
func (c *controller) Config() tomo.TimerConfig { return c.machine.Config() }
