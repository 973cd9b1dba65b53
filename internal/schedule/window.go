package schedule

import (
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

// InWindow reports whether the clock time hhmm (minutes after midnight) falls in w.
// A window whose end is before its start spans midnight. Malformed windows never match.
func InWindow(w domain.TimeWindow, hhmm int) bool {
	start, ok := domain.ParseClock(w.Start)
	if !ok {
		return false
	}
	end, ok := domain.ParseClock(w.End)
	if !ok {
		return false
	}
	if end < start {
		return hhmm >= start || hhmm <= end
	}
	return hhmm >= start && hhmm <= end
}

// AnyWindow reports whether local falls in at least one of ws. An empty list is always satisfied.
func AnyWindow(ws []domain.TimeWindow, local time.Time) bool {
	if len(ws) == 0 {
		return true
	}
	hhmm := ClockMinutes(local)
	for _, w := range ws {
		if InWindow(w, hhmm) {
			return true
		}
	}
	return false
}

// ClockMinutes returns minutes after midnight of t in its own location.
func ClockMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
