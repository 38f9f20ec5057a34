package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tomodoro/tomo"
	"github.com/tomodoro/tomo/analytics"
	"github.com/tomodoro/tomo/timer"
)

const (
	timerBarLength     = 20
	timerBarFilledChar = "⣶"
	timerBarEmptyChar  = "⡀"
)

var (
	styleWork   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleBreak  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	stylePaused = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleFaint  = lipgloss.NewStyle().Faint(true)
	styleTitle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// timerBar renders remaining time as a fixed-width bar that drains from
// full to empty over the phase.
func timerBar(remaining, total time.Duration) string {
	if remaining <= 0 || total <= 0 {
		return strings.Repeat(timerBarEmptyChar, timerBarLength)
	}
	percentage := float64(remaining) / float64(total)
	filled := min(int(math.Round(percentage*timerBarLength*10)/10), timerBarLength)
	return strings.Repeat(timerBarFilledChar, filled) + strings.Repeat(timerBarEmptyChar, timerBarLength-filled)
}

// formatClock renders a countdown as MM:SS, growing to H:MM:SS past an
// hour. Remainders round up so the display hits 00:00 exactly when the
// phase flips.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// formatDuration renders a span the way a person reads session lengths.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0 && s > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// renderSnapshot is the one-line view of the timer shared by the
// foreground loop and the steering commands.
func renderSnapshot(snap timer.Snapshot) string {
	switch snap.Phase {
	case tomo.PhaseIdle:
		return styleFaint.Render("Timer idle. `tomo start` begins a session.")
	case tomo.PhaseFinished:
		return styleBreak.Render(fmt.Sprintf("Finished: %d pomodoros this session. Good stuff!", snap.CompletedIntervals))
	}
	label, style := phaseLabel(snap)
	return fmt.Sprintf("%s  %s  %s", style.Render(label), timerBar(snap.Remaining, snap.Scheduled), formatClock(snap.Remaining))
}

func phaseLabel(snap timer.Snapshot) (string, lipgloss.Style) {
	switch snap.Phase {
	case tomo.PhaseWorking:
		return fmt.Sprintf("🍅 Working (pomodoro %d)", snap.CompletedIntervals+1), styleWork
	case tomo.PhaseShortBreak, tomo.PhaseLongBreak:
		return "☕ " + snap.Phase.String(), styleBreak
	case tomo.PhasePaused:
		return fmt.Sprintf("⏸ Paused (%s)", snap.PausedFrom), stylePaused
	}
	return snap.Phase.String(), styleFaint
}

const topDaysCount = 5

func renderStats(window string, sum analytics.Summary, top []analytics.DayTotal, total int) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render(fmt.Sprintf("Productivity (%s)", window)) + "\n")
	fmt.Fprintf(&b, "  Completed work sessions  %d\n", sum.CompletedWorkSessions)
	fmt.Fprintf(&b, "  Abandoned work sessions  %d\n", sum.AbandonedWorkSessions)
	fmt.Fprintf(&b, "  Completion rate          %.0f%%\n", sum.CompletionRate*100)
	fmt.Fprintf(&b, "  Focused time             %s\n", formatDuration(sum.FocusedDuration))
	fmt.Fprintf(&b, "  Daily streak             %s\n", formatDays(sum.StreakDays))
	fmt.Fprintf(&b, "  Sessions on record       %s\n", humanize.Comma(int64(total)))
	if len(top) > 0 {
		b.WriteString("\n" + styleTitle.Render("Most productive days") + "\n")
		for _, day := range top {
			fmt.Fprintf(&b, "  %s  %2d pomodoros  %s\n",
				day.Day.Format("Mon 2006-01-02"), day.Sessions, formatDuration(day.Focused))
		}
	}
	return b.String()
}

func formatDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
