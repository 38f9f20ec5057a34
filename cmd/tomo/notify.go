package main

import (
	"github.com/charmbracelet/log"
	"github.com/gen2brain/beeep"

	"github.com/tomodoro/tomo"
	"github.com/tomodoro/tomo/timer"
)

// notifier receives fire-and-forget phase-change events. Delivery
// failures are logged, never surfaced; a notification must not stall
// the countdown.
type notifier interface {
	PhaseChanged(from tomo.Phase, snap timer.Snapshot)
}

func newNotifier(disabled bool) notifier {
	if disabled {
		return nopNotifier{}
	}
	return desktopNotifier{}
}

type nopNotifier struct{}

func (nopNotifier) PhaseChanged(tomo.Phase, timer.Snapshot) {}

type desktopNotifier struct{}

func (desktopNotifier) PhaseChanged(from tomo.Phase, snap timer.Snapshot) {
	title, body := notificationText(from, snap.Phase)
	if title == "" {
		return
	}
	if err := beeep.Notify(title, body, ""); err != nil {
		log.Debug("notification failed", "err", err)
	}
}

// notificationText maps a transition to its desktop message. Manual
// transitions (pause, resume, reset) return empty strings: the user
// just typed those.
func notificationText(from, to tomo.Phase) (title, body string) {
	switch to {
	case tomo.PhaseShortBreak, tomo.PhaseLongBreak:
		return "Work session complete!", "Time for a break."
	case tomo.PhaseWorking:
		if from.IsBreak() {
			return "Break over!", "Time to get back to work."
		}
	case tomo.PhaseFinished:
		return "Pomodoro session finished", "Good stuff!"
	}
	return "", ""
}

// blocker receives start/stop signals keyed to work phases, the seam
// for a distraction-blocking integration.
type blocker interface {
	WorkStarted()
	WorkStopped()
}

func newBlocker() blocker { return logBlocker{} }

// logBlocker only records the signals; a real integration hooks in here.
type logBlocker struct{}

func (logBlocker) WorkStarted() { log.Debug("work phase started") }
func (logBlocker) WorkStopped() { log.Debug("work phase stopped") }

// workEdge forwards work-phase boundaries to the blocker.
func workEdge(blk blocker, from, to tomo.Phase) {
	switch {
	case to == tomo.PhaseWorking && from != tomo.PhaseWorking:
		blk.WorkStarted()
	case from == tomo.PhaseWorking && to != tomo.PhaseWorking:
		blk.WorkStopped()
	}
}
