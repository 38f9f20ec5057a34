package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomodoro/tomo"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) tick(d time.Duration) { c.now = c.now.Add(d) }

var testConfig = tomo.TimerConfig{
	Work:       25 * time.Minute,
	ShortBreak: 5 * time.Minute,
	LongBreak:  15 * time.Minute,
	Intervals:  4,
}

func newTestMachine(t *testing.T) (*Machine, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	m, err := NewMachine(testConfig, clock)
	require.NoError(t, err)
	return m, clock
}

func TestNewMachineRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewMachine(tomo.TimerConfig{}, nil)
	assert.ErrorIs(t, err, tomo.ErrConfiguration)
}

func TestInvalidTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		setup func(m *Machine, clock *manualClock)
		cmd   Command
	}{
		{"start while working", func(m *Machine, _ *manualClock) {
			mustApply(m, Start)
		}, Start},
		{"pause while idle", func(_ *Machine, _ *manualClock) {}, Pause},
		{"pause while paused", func(m *Machine, _ *manualClock) {
			mustApply(m, Start)
			mustApply(m, Pause)
		}, Pause},
		{"resume while working", func(m *Machine, _ *manualClock) {
			mustApply(m, Start)
		}, Resume},
		{"resume while idle", func(_ *Machine, _ *manualClock) {}, Resume},
		{"finish while idle", func(_ *Machine, _ *manualClock) {}, RequestFinish},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, clock := newTestMachine(t)
			tc.setup(m, clock)
			before := m.State()

			after, recs, err := m.Apply(tc.cmd)
			assert.ErrorIs(t, err, tomo.ErrInvalidTransition)
			assert.Empty(t, recs)
			assert.Equal(t, before, after, "state must not change on a rejected command")
			assert.Equal(t, before, m.State())
		})
	}
}

func TestStartFromIdleAndFinished(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	st, recs, err := m.Apply(Start)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, tomo.PhaseWorking, st.Phase)
	assert.Equal(t, clock.now, st.PhaseStartedAt)
	assert.Equal(t, 0, st.CompletedIntervals)

	// run to Finished, then Start again resets the interval counter
	mustApply(m, RequestFinish)
	clock.tick(30 * time.Minute)
	st, _ = m.Advance()
	require.Equal(t, tomo.PhaseFinished, st.Phase)

	st, _, err = m.Apply(Start)
	require.NoError(t, err)
	assert.Equal(t, tomo.PhaseWorking, st.Phase)
	assert.Equal(t, 0, st.CompletedIntervals)
	assert.False(t, st.EndRequested)
}

func TestNaturalCompletionEmitsOneRecord(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	started := clock.now
	mustApply(m, Start)

	clock.tick(25 * time.Minute)
	st, recs := m.Advance()

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, tomo.PhaseWorking, rec.Phase)
	assert.Equal(t, tomo.SessionCompleted, rec.Status)
	assert.Equal(t, started, rec.StartedAt)
	assert.Equal(t, started.Add(25*time.Minute), rec.EndedAt)
	assert.Equal(t, 25*time.Minute, rec.ScheduledDuration)
	assert.Equal(t, 25*time.Minute, rec.ActualDuration)

	assert.Equal(t, tomo.PhaseShortBreak, st.Phase)
	assert.Equal(t, 1, st.CompletedIntervals)

	// evaluating again at the same instant must not double-count
	st2, recs2 := m.Advance()
	assert.Empty(t, recs2)
	assert.Equal(t, st, st2)
}

func TestFourIntervalCycle(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	mustApply(m, Start)

	var completed []tomo.SessionRecord
	wantPhases := []tomo.Phase{
		tomo.PhaseShortBreak, tomo.PhaseWorking,
		tomo.PhaseShortBreak, tomo.PhaseWorking,
		tomo.PhaseShortBreak, tomo.PhaseWorking,
		tomo.PhaseLongBreak,
	}
	var gotPhases []tomo.Phase
	for range wantPhases {
		st := m.State()
		clock.tick(testConfig.Duration(st.Phase))
		next, recs := m.Advance()
		completed = append(completed, recs...)
		gotPhases = append(gotPhases, next.Phase)
	}

	assert.Equal(t, wantPhases, gotPhases)
	require.Len(t, completed, 4)
	for i, rec := range completed {
		assert.Equal(t, tomo.SessionCompleted, rec.Status, "record %d", i)
		assert.Equal(t, 25*time.Minute, rec.ActualDuration, "record %d", i)
	}
	assert.Equal(t, 4, m.State().CompletedIntervals)
}

func TestPauseResumePreservesRemaining(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	mustApply(m, Start)

	clock.tick(10 * time.Minute)
	st, recs, err := m.Apply(Pause)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, tomo.PhasePaused, st.Phase)
	assert.Equal(t, tomo.PhaseWorking, st.PausedFrom)
	assert.Equal(t, 10*time.Minute, st.PausedElapsed)
	assert.Equal(t, 15*time.Minute, st.Remaining(testConfig, clock.now))

	// remaining is frozen no matter how long the pause lasts
	clock.tick(3 * time.Hour)
	assert.Equal(t, 15*time.Minute, m.State().Remaining(testConfig, clock.now))

	st, _, err = m.Apply(Resume)
	require.NoError(t, err)
	assert.Equal(t, tomo.PhaseWorking, st.Phase)
	assert.Equal(t, 15*time.Minute, st.Remaining(testConfig, clock.now))

	// one minute short of the boundary: nothing fires
	clock.tick(15*time.Minute - time.Minute)
	_, recs = m.Advance()
	assert.Empty(t, recs)

	clock.tick(time.Minute)
	st, recs = m.Advance()
	require.Len(t, recs, 1)
	assert.Equal(t, 25*time.Minute, recs[0].ActualDuration)
	assert.Equal(t, tomo.PhaseShortBreak, st.Phase)
}

func TestResetLogsAbandonedWork(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	started := clock.now
	mustApply(m, Start)

	clock.tick(8 * time.Minute)
	st, recs, err := m.Apply(Reset)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, tomo.PhaseIdle, st.Phase)
	assert.Equal(t, tomo.SessionAbandoned, rec.Status)
	assert.Equal(t, tomo.PhaseWorking, rec.Phase)
	assert.Equal(t, started, rec.StartedAt)
	assert.Equal(t, started.Add(8*time.Minute), rec.EndedAt)
	assert.Equal(t, 25*time.Minute, rec.ScheduledDuration)
	assert.Equal(t, 8*time.Minute, rec.ActualDuration)
}

func TestResetWhilePausedUsesFrozenElapsed(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	started := clock.now
	mustApply(m, Start)
	clock.tick(12 * time.Minute)
	mustApply(m, Pause)
	clock.tick(time.Hour)

	st, recs, err := m.Apply(Reset)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, tomo.PhaseIdle, st.Phase)
	assert.Equal(t, 12*time.Minute, recs[0].ActualDuration)
	assert.Equal(t, started, recs[0].StartedAt)
	assert.Equal(t, clock.now, recs[0].EndedAt)
}

func TestResetVariants(t *testing.T) {
	t.Parallel()

	t.Run("from idle is a no-op", func(t *testing.T) {
		t.Parallel()
		m, _ := newTestMachine(t)
		st, recs, err := m.Apply(Reset)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.Equal(t, tomo.PhaseIdle, st.Phase)
	})

	t.Run("from break logs nothing", func(t *testing.T) {
		t.Parallel()
		m, clock := newTestMachine(t)
		mustApply(m, Start)
		clock.tick(25 * time.Minute)
		st, _ := m.Advance()
		require.Equal(t, tomo.PhaseShortBreak, st.Phase)

		st, recs, err := m.Apply(Reset)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.Equal(t, tomo.PhaseIdle, st.Phase)
	})

	t.Run("from finished logs nothing", func(t *testing.T) {
		t.Parallel()
		m, clock := newTestMachine(t)
		mustApply(m, Start)
		mustApply(m, RequestFinish)
		clock.tick(30 * time.Minute)
		st, _ := m.Advance()
		require.Equal(t, tomo.PhaseFinished, st.Phase)

		st, recs, err := m.Apply(Reset)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.Equal(t, tomo.PhaseIdle, st.Phase)
	})
}

func TestPausePastBoundaryResolvesCompletionFirst(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	mustApply(m, Start)

	// last evaluation lands just before the boundary
	clock.tick(25*time.Minute - time.Second)
	_, recs := m.Advance()
	require.Empty(t, recs)

	// the keystroke arrives 1.4s later, past the work boundary: the
	// completed interval resolves first, then the pause freezes the
	// break that began at that boundary
	clock.tick(1400 * time.Millisecond)
	st, recs, err := m.Apply(Pause)
	require.NoError(t, err)

	require.Len(t, recs, 1)
	assert.Equal(t, tomo.SessionCompleted, recs[0].Status)
	assert.Equal(t, 25*time.Minute, recs[0].ActualDuration)

	assert.Equal(t, tomo.PhasePaused, st.Phase)
	assert.Equal(t, tomo.PhaseShortBreak, st.PausedFrom)
	assert.Equal(t, 400*time.Millisecond, st.PausedElapsed)
	assert.LessOrEqual(t, st.PausedElapsed, testConfig.Duration(st.PausedFrom))
}

func TestResetPastBoundaryKeepsCompletedWork(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	started := clock.now
	mustApply(m, Start)

	// reset lands 400ms after the interval completed on time: the
	// Completed record stands and the barely-started break logs nothing
	clock.tick(25*time.Minute + 400*time.Millisecond)
	st, recs, err := m.Apply(Reset)
	require.NoError(t, err)
	assert.Equal(t, tomo.PhaseIdle, st.Phase)

	require.Len(t, recs, 1)
	assert.Equal(t, tomo.SessionCompleted, recs[0].Status)
	assert.Equal(t, 25*time.Minute, recs[0].ActualDuration)
	assert.Equal(t, started.Add(25*time.Minute), recs[0].EndedAt)
}

func TestResetAfterGapSplitsCompletedAndAbandoned(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	started := clock.now
	mustApply(m, Start)

	// work(25) and break(5) passed unobserved; the reset cuts short the
	// next work interval 10 minutes in
	clock.tick(40 * time.Minute)
	st, recs, err := m.Apply(Reset)
	require.NoError(t, err)
	assert.Equal(t, tomo.PhaseIdle, st.Phase)

	require.Len(t, recs, 2)
	assert.Equal(t, tomo.SessionCompleted, recs[0].Status)
	assert.Equal(t, started.Add(25*time.Minute), recs[0].EndedAt)

	abandoned := recs[1]
	assert.Equal(t, tomo.SessionAbandoned, abandoned.Status)
	assert.Equal(t, started.Add(30*time.Minute), abandoned.StartedAt)
	assert.Equal(t, 10*time.Minute, abandoned.ActualDuration)
	assert.Less(t, abandoned.ActualDuration, abandoned.ScheduledDuration)
}

func TestApplyKeepsCatchUpRecordsOnRejectedCommand(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	mustApply(m, Start)
	mustApply(m, RequestFinish)

	// the timer finished before the keystroke landed
	clock.tick(30*time.Minute + time.Second)
	st, recs, err := m.Apply(Pause)
	assert.ErrorIs(t, err, tomo.ErrInvalidTransition)
	assert.Equal(t, tomo.PhaseFinished, st.Phase)
	require.Len(t, recs, 1)
	assert.Equal(t, tomo.SessionCompleted, recs[0].Status)
}

func TestRequestFinishEndsAfterBreak(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	mustApply(m, Start)

	st, recs, err := m.Apply(RequestFinish)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.True(t, st.EndRequested)
	assert.Equal(t, tomo.PhaseWorking, st.Phase, "finish is a latch, not a transition")

	// the work interval still completes, then the break, then Finished
	clock.tick(30 * time.Minute)
	st, recs = m.Advance()
	require.Len(t, recs, 1)
	assert.Equal(t, tomo.SessionCompleted, recs[0].Status)
	assert.Equal(t, tomo.PhaseFinished, st.Phase)
	assert.False(t, st.EndRequested)
}

func TestAdvanceCatchesUpAcrossManyBoundaries(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	started := clock.now
	mustApply(m, Start)

	// 65 minutes silent: work(25) + break(5) + work(25) + 10 into break
	clock.tick(65 * time.Minute)
	st, recs := m.Advance()

	require.Len(t, recs, 2)
	assert.Equal(t, started, recs[0].StartedAt)
	assert.Equal(t, started.Add(25*time.Minute), recs[0].EndedAt)
	assert.Equal(t, started.Add(30*time.Minute), recs[1].StartedAt)
	assert.Equal(t, started.Add(55*time.Minute), recs[1].EndedAt)

	assert.Equal(t, tomo.PhaseWorking, st.Phase)
	assert.Equal(t, started.Add(60*time.Minute), st.PhaseStartedAt)
	assert.Equal(t, 2, st.CompletedIntervals)
	assert.Equal(t, 20*time.Minute, st.Remaining(testConfig, clock.now))
}

func TestAdvanceIgnoresPausedAndIdle(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	clock.tick(2 * time.Hour)
	st, recs := m.Advance()
	assert.Empty(t, recs)
	assert.Equal(t, tomo.PhaseIdle, st.Phase)

	mustApply(m, Start)
	clock.tick(10 * time.Minute)
	mustApply(m, Pause)
	clock.tick(2 * time.Hour)
	st, recs = m.Advance()
	assert.Empty(t, recs)
	assert.Equal(t, tomo.PhasePaused, st.Phase)
}

func TestStateRecordRoundTrip(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	mustApply(m, Start)
	clock.tick(10 * time.Minute)
	mustApply(m, Pause)
	mustApply(m, RequestFinish)

	st := m.State()
	rec := st.Record(testConfig)
	assert.Equal(t, testConfig, rec.Config())
	assert.Equal(t, st, StateFromRecord(rec))
}

func TestSnapshotWhilePaused(t *testing.T) {
	t.Parallel()

	m, clock := newTestMachine(t)
	mustApply(m, Start)
	clock.tick(10 * time.Minute)
	mustApply(m, Pause)

	snap := m.Snapshot()
	assert.Equal(t, tomo.PhasePaused, snap.Phase)
	assert.Equal(t, tomo.PhaseWorking, snap.PausedFrom)
	assert.Equal(t, 25*time.Minute, snap.Scheduled)
	assert.Equal(t, 10*time.Minute, snap.Elapsed)
	assert.Equal(t, 15*time.Minute, snap.Remaining)
	assert.Equal(t, clock.now, snap.At)
}

func mustApply(m *Machine, cmd Command) {
	if _, _, err := m.Apply(cmd); err != nil {
		panic(err)
	}
}
