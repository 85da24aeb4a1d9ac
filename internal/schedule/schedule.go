// Package schedule holds the wall-clock math that drives the run loop: the
// Monday-noon weekly boundary and the even 2-hour tick grid. All calculations
// are in UTC.
package schedule

import "time"

// Clock abstracts wall-clock access so scheduler tests can simulate time
// without real sleeps.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now().UTC() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Real returns a Clock backed by the system clock.
func Real() Clock {
	return realClock{}
}

// MondayNoon returns Monday 12:00:00 UTC of the week containing t.
func MondayNoon(t time.Time) time.Time {
	t = t.UTC()
	// time.Weekday counts Sunday as 0; the weekly cycle starts on Monday.
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 12, 0, 0, 0, time.UTC)
}

// IsReseedDue reports whether the baseline must be recomputed: no baseline
// exists yet, or the latest one predates this week's Monday-noon boundary. A
// baseline stamped exactly at the boundary is current.
func IsReseedDue(baselineAt *time.Time, now time.Time) bool {
	if baselineAt == nil {
		return true
	}
	return baselineAt.Before(MondayNoon(now))
}

// NextTick returns the next even 2-hour wall-clock boundary after now
// (00:00, 02:00, ... UTC). The result is always strictly in the future.
func NextTick(now time.Time) time.Time {
	now = now.UTC()
	nextHour := (now.Hour()/2 + 1) * 2
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if nextHour >= 24 {
		nextHour -= 24
		day = day.AddDate(0, 0, 1)
	}
	return day.Add(time.Duration(nextHour) * time.Hour)
}
