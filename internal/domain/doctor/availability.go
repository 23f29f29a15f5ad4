package doctor

import (
	"fmt"
	"time"
)

// ISOWeekday converts a time.Time weekday to ISO 8601 numbering
// (1 = Monday .. 7 = Sunday).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// parseClock parses an "HH:MM" wall-clock string into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// HasSchedulableWindow reports whether at least one unblocked weekly window
// exists. A doctor with no open windows cannot receive appointments at all.
func HasSchedulableWindow(schedules []WeeklySchedule) bool {
	for _, ws := range schedules {
		if !ws.Blocked {
			return true
		}
	}
	return false
}

// Covers reports whether the window contains the [start, end) interval.
// The interval must fall on the window's weekday and fit entirely inside
// the window; intervals crossing midnight never fit.
func (ws WeeklySchedule) Covers(start, end time.Time) bool {
	if ws.Blocked || ws.DayOfWeek != ISOWeekday(start) {
		return false
	}
	winStart, err := parseClock(ws.StartTime)
	if err != nil {
		return false
	}
	winEnd, err := parseClock(ws.EndTime)
	if err != nil {
		return false
	}

	startMin := minuteOfDay(start)
	endMin := startMin + int(end.Sub(start).Minutes())
	return startMin >= winStart && endMin <= winEnd
}

// CoveredByAny reports whether any weekly window fully contains the interval.
func CoveredByAny(schedules []WeeklySchedule, start, end time.Time) bool {
	for _, ws := range schedules {
		if ws.Covers(start, end) {
			return true
		}
	}
	return false
}

// Intersects reports whether the block overlaps the [start, end) interval.
// A full-day block covers its entire calendar date; a partial block uses
// half-open interval overlap on its sub-range.
func (b ScheduleBlock) Intersects(start, end time.Time) bool {
	by, bm, bd := b.Date.Date()
	sy, sm, sd := start.Date()
	if by != sy || bm != sm || bd != sd {
		return false
	}
	if b.IsFullDay || b.StartTime == nil || b.EndTime == nil {
		return true
	}

	blockStart, err := parseClock(*b.StartTime)
	if err != nil {
		return true
	}
	blockEnd, err := parseClock(*b.EndTime)
	if err != nil {
		return true
	}

	startMin := minuteOfDay(start)
	endMin := startMin + int(end.Sub(start).Minutes())
	return startMin < blockEnd && blockStart < endMin
}

// AnyBlockIntersects reports whether any schedule block overlaps the interval.
func AnyBlockIntersects(blocks []ScheduleBlock, start, end time.Time) bool {
	for _, b := range blocks {
		if b.Intersects(start, end) {
			return true
		}
	}
	return false
}
