package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Thiht/transactor"
	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/tomodoro/tomo"
	"github.com/tomodoro/tomo/timer"
)

func (a *app) cmdStart(args []string) error {
	fs := pflag.NewFlagSet("start", pflag.ContinueOnError)
	fs.SetNormalizeFunc(normalizeStartFlag)
	var (
		workFlag      = fs.String("work", "", "work duration")
		breakFlag     = fs.String("short-break", "", "short break duration")
		longBreakFlag = fs.String("long-break", "", "long break duration")
		intervalsFlag = fs.Int("intervals", 0, "work intervals per long break")
		detach        = fs.Bool("detach", false, "start the timer and return immediately")
		noNotify      = fs.Bool("no-notify", false, "disable desktop notifications")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := tomo.LoadTimerConfig(a.cfg.TimerConfigPath)
	if err != nil {
		return err
	}
	overridden, err := applyStartFlags(&cfg, *workFlag, *breakFlag, *longBreakFlag, *intervalsFlag)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return a.withStore(func(repo tomo.SessionRepo, tx transactor.Transactor) error {
		ctx, cancel := storeCtx()
		ctrl, restored, err := loadController(ctx, repo, tx, cfg, nil)
		cancel()
		if err != nil {
			return err
		}
		if restored && overridden {
			return fmt.Errorf("%w: a session is in progress (%s); reset it before changing durations",
				tomo.ErrInvalidTransition, ctrl.State().Phase)
		}

		// Resolve anything that elapsed while no process was running.
		ctx, cancel = storeCtx()
		st, _, err := ctrl.CatchUp(ctx)
		cancel()
		if err != nil {
			return err
		}

		if st.Phase == tomo.PhaseIdle || st.Phase == tomo.PhaseFinished {
			ctx, cancel = storeCtx()
			_, _, err = ctrl.Apply(ctx, timer.Start)
			cancel()
			if err != nil {
				return err
			}
			fmt.Printf("Session started: %s work / %s break, long break every %d.\n",
				formatDuration(ctrl.Config().Work), formatDuration(ctrl.Config().ShortBreak), ctrl.Config().Intervals)
		} else {
			fmt.Printf("Picking up the in-progress session (%s).\n", st.Phase)
		}

		if *detach {
			fmt.Println(renderSnapshot(ctrl.Snapshot()))
			return nil
		}
		notif := newNotifier(a.cfg.NoNotify || *noNotify)
		return runLoop(ctrl, notif, newBlocker(), os.Stdout)
	})
}

// normalizeStartFlag lets --break stand for --short-break.
func normalizeStartFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "break" {
		name = "short-break"
	}
	return pflag.NormalizedName(name)
}

// applyStartFlags folds non-empty flag values into cfg and reports
// whether any were set.
func applyStartFlags(cfg *tomo.TimerConfig, work, shortBreak, longBreak string, intervals int) (bool, error) {
	overridden := false
	for _, f := range []struct {
		value string
		dst   *time.Duration
	}{
		{work, &cfg.Work},
		{shortBreak, &cfg.ShortBreak},
		{longBreak, &cfg.LongBreak},
	} {
		if f.value == "" {
			continue
		}
		d, err := tomo.ParseDuration(f.value)
		if err != nil {
			return false, err
		}
		*f.dst = d
		overridden = true
	}
	if intervals != 0 {
		cfg.Intervals = intervals
		overridden = true
	}
	return overridden, nil
}

// runLoop drives the foreground countdown: one-second ticks advance the
// machine, stdin lines steer it, SIGINT detaches. State is persisted on
// every transition, so quitting at any moment loses nothing.
func runLoop(ctrl *controller, notif notifier, blk blocker, out io.Writer) error {
	keys := make(chan byte, 8)
	go readKeys(os.Stdin, keys)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Fprintln(out, "Keys: [p]ause/resume  [r]eset  [f]inish after this break  [q]uit, timer keeps running")

	prev := ctrl.State().Phase
	if prev == tomo.PhaseWorking {
		blk.WorkStarted()
	}
	render(out, ctrl.Snapshot())

	for {
		select {
		case <-ticker.C:
			// a persist failure is already logged inside; keep ticking
			ctx, cancel := storeCtx()
			ctrl.CatchUp(ctx)
			cancel()

		case key := <-keys:
			switch key {
			case 'p':
				cmd := timer.Pause
				if ctrl.State().Phase == tomo.PhasePaused {
					cmd = timer.Resume
				}
				applyLoopCommand(ctrl, cmd, out)
			case 'r':
				applyLoopCommand(ctrl, timer.Reset, out)
			case 'f':
				if applyLoopCommand(ctrl, timer.RequestFinish, out) == nil {
					fmt.Fprintf(out, "\nFinishing after the current break.\n")
				}
			case 'q':
				fmt.Fprintln(out)
				return detachLoop(ctrl, out)
			}

		case <-sig:
			fmt.Fprintln(out)
			return detachLoop(ctrl, out)
		}

		snap := ctrl.Snapshot()
		if snap.Phase != prev {
			fmt.Fprintln(out)
			notif.PhaseChanged(prev, snap)
			workEdge(blk, prev, snap.Phase)
			prev = snap.Phase
		}
		if snap.Phase == tomo.PhaseIdle || snap.Phase == tomo.PhaseFinished {
			fmt.Fprintf(out, "\x1b[2K\r%s\n", renderSnapshot(snap))
			return nil
		}
		render(out, snap)
	}
}

// applyLoopCommand applies a keyed command without breaking the loop:
// invalid transitions are ignored, storage failures logged.
func applyLoopCommand(ctrl *controller, cmd timer.Command, out io.Writer) error {
	ctx, cancel := storeCtx()
	defer cancel()
	_, recs, err := ctrl.Apply(ctx, cmd)
	if err != nil {
		if errors.Is(err, tomo.ErrInvalidTransition) {
			log.Debug("key ignored", "cmd", cmd, "err", err)
		} else {
			log.Error("command failed", "cmd", cmd, "err", err)
		}
		return err
	}
	if rec := abandonedRecord(recs); rec != nil {
		fmt.Fprintf(out, "\nLogged abandoned work session (%s elapsed).\n", formatDuration(rec.ActualDuration))
	}
	return nil
}

// abandonedRecord picks out the Abandoned session a reset cut short, if
// any; the rest of the slice is catch-up completions.
func abandonedRecord(recs []tomo.SessionRecord) *tomo.SessionRecord {
	for i := range recs {
		if recs[i].Status == tomo.SessionAbandoned {
			return &recs[i]
		}
	}
	return nil
}

func detachLoop(ctrl *controller, out io.Writer) error {
	ctx, cancel := storeCtx()
	defer cancel()
	if err := ctrl.Checkpoint(ctx); err != nil {
		return err
	}
	st := ctrl.State()
	if st.Phase.IsRunning() || st.Phase == tomo.PhasePaused {
		fmt.Fprintln(out, "Detached; the timer keeps running. Pick it up with `tomo start`.")
	}
	return nil
}

// readKeys forwards the first byte of every stdin line. The goroutine
// dies with the process; the channel is never closed.
func readKeys(r io.Reader, keys chan<- byte) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.ToLower(strings.TrimSpace(sc.Text()))
		if line == "" {
			continue
		}
		keys <- line[0]
	}
}

func render(out io.Writer, snap timer.Snapshot) {
	fmt.Fprintf(out, "\x1b[2K\r%s", renderSnapshot(snap))
}
