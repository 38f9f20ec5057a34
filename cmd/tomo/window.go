package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomodoro/tomo"
)

// parseWindow resolves a --range value into a half-open [from, to)
// interval over session start times; a zero bound leaves that side
// open. Named windows snap to local midnight, lookbacks like "7d" or
// "36h" count back from now.
func parseWindow(s string, now time.Time) (from, to time.Time, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch s {
	case "today":
		return midnight, time.Time{}, nil
	case "week":
		return midnight.AddDate(0, 0, -6), time.Time{}, nil
	case "month":
		return monthBack(midnight), time.Time{}, nil
	case "all", "":
		return time.Time{}, time.Time{}, nil
	}
	if d, ok := parseLookback(s); ok {
		return now.Add(-d), time.Time{}, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf(
		"%w: unknown range %q (want today, week, month, all, or a lookback like 7d)", tomo.ErrConfiguration, s)
}

// monthBack returns midnight on the same day one month earlier, with
// the day clamped to the previous month's length. Plain AddDate would
// normalize Mar 31 through "Feb 31" into Mar 3 and skip February.
func monthBack(day time.Time) time.Time {
	y, m, d := day.Date()
	lastOfPrev := time.Date(y, m, 1, 0, 0, 0, 0, day.Location()).AddDate(0, 0, -1)
	if d > lastOfPrev.Day() {
		d = lastOfPrev.Day()
	}
	return time.Date(lastOfPrev.Year(), lastOfPrev.Month(), d, 0, 0, 0, 0, day.Location())
}

// parseLookback accepts "7d" style day counts plus plain Go durations.
func parseLookback(s string) (time.Duration, bool) {
	if days, found := strings.CutSuffix(s, "d"); found {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour, true
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
