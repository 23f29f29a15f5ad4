package doctor

import (
	"testing"
	"time"
)

// 2025-06-09 is a Monday.
func monday(hh, mm int) time.Time {
	return time.Date(2025, 6, 9, hh, mm, 0, 0, time.UTC)
}

func TestISOWeekday(t *testing.T) {
	if got := ISOWeekday(monday(10, 0)); got != 1 {
		t.Errorf("Monday = %d, want 1", got)
	}
	sunday := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	if got := ISOWeekday(sunday); got != 7 {
		t.Errorf("Sunday = %d, want 7", got)
	}
}

func TestWeeklySchedule_Covers(t *testing.T) {
	window := WeeklySchedule{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"}

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"inside window", monday(10, 0), monday(10, 30), true},
		{"exactly fills window", monday(9, 0), monday(12, 0), true},
		{"starts before window", monday(8, 30), monday(9, 30), false},
		{"ends after window", monday(11, 30), monday(12, 30), false},
		{"wrong weekday", monday(10, 0).AddDate(0, 0, 1), monday(10, 30).AddDate(0, 0, 1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := window.Covers(tc.start, tc.end); got != tc.want {
				t.Errorf("Covers = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWeeklySchedule_CoversBlockedWindow(t *testing.T) {
	window := WeeklySchedule{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Blocked: true}
	if window.Covers(monday(10, 0), monday(10, 30)) {
		t.Error("blocked window must not cover any interval")
	}
}

func TestWeeklySchedule_CoversCrossMidnight(t *testing.T) {
	window := WeeklySchedule{DayOfWeek: 1, StartTime: "00:00", EndTime: "23:59"}
	start := monday(23, 30)
	end := start.Add(time.Hour)
	if window.Covers(start, end) {
		t.Error("interval crossing midnight must not fit a single-day window")
	}
}

func TestHasSchedulableWindow(t *testing.T) {
	if HasSchedulableWindow(nil) {
		t.Error("no windows means not schedulable")
	}
	blocked := []WeeklySchedule{{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Blocked: true}}
	if HasSchedulableWindow(blocked) {
		t.Error("all-blocked windows means not schedulable")
	}
	mixed := append(blocked, WeeklySchedule{DayOfWeek: 2, StartTime: "09:00", EndTime: "12:00"})
	if !HasSchedulableWindow(mixed) {
		t.Error("one open window means schedulable")
	}
}

func strPtr(s string) *string { return &s }

func TestScheduleBlock_Intersects(t *testing.T) {
	date := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		block ScheduleBlock
		start time.Time
		end   time.Time
		want  bool
	}{
		{
			"full day blocks everything on the date",
			ScheduleBlock{Date: date, IsFullDay: true},
			monday(10, 0), monday(10, 30), true,
		},
		{
			"full day leaves other dates open",
			ScheduleBlock{Date: date, IsFullDay: true},
			monday(10, 0).AddDate(0, 0, 1), monday(10, 30).AddDate(0, 0, 1), false,
		},
		{
			"partial block overlaps",
			ScheduleBlock{Date: date, StartTime: strPtr("10:00"), EndTime: strPtr("11:00")},
			monday(10, 30), monday(11, 30), true,
		},
		{
			"partial block before interval",
			ScheduleBlock{Date: date, StartTime: strPtr("08:00"), EndTime: strPtr("09:00")},
			monday(10, 0), monday(10, 30), false,
		},
		{
			"back to back is not an overlap",
			ScheduleBlock{Date: date, StartTime: strPtr("09:00"), EndTime: strPtr("10:00")},
			monday(10, 0), monday(10, 30), false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.block.Intersects(tc.start, tc.end); got != tc.want {
				t.Errorf("Intersects = %v, want %v", got, tc.want)
			}
		})
	}
}
