package timer

import (
	"fmt"
	"math"
	"time"
)

// ElapsedSeconds returns the whole seconds between start and now. Clock skew
// (now before start) yields 0.
func ElapsedSeconds(now, start time.Time) int64 {
	d := now.Sub(start)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// AccumulatedPause folds an open pause interval into the paused total.
func AccumulatedPause(pausedTime int64, lastPauseTime *time.Time, now time.Time) int64 {
	if lastPauseTime == nil {
		return pausedTime
	}
	return pausedTime + ElapsedSeconds(now, *lastPauseTime)
}

// NetDuration is elapsed minus paused, never negative.
func NetDuration(elapsed, paused int64) int64 {
	if elapsed <= paused {
		return 0
	}
	return elapsed - paused
}

// FormatDuration renders seconds as zero-padded HH:MM:SS.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatSeconds is FormatDuration for values that may be missing or not a
// number, which render as 00:00:00.
func FormatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return FormatDuration(0)
	}
	return FormatDuration(int64(seconds))
}
