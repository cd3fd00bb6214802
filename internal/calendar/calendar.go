// Package calendar implements the date arithmetic behind recurring schedules:
// advancing a timestamp by one period while keeping its time of day and
// clamping the day of month to the target month's length.
package calendar

import (
	"fmt"
	"time"
)

// Frequency represents how often a schedule repeats.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// IsValid reports whether f is one of the supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// Schedule describes when a recurring item falls within its period.
//
// DayOfPeriod is the day of month (1-31) for monthly and yearly schedules and
// the ISO weekday (1 = Monday ... 7 = Sunday) for weekly schedules. Month is
// only used by yearly schedules.
type Schedule struct {
	Frequency   Frequency
	DayOfPeriod int
	Month       time.Month
}

// Validate checks that the day and month fields are in range for the frequency.
func (s Schedule) Validate() error {
	switch s.Frequency {
	case FrequencyDaily:
		return nil
	case FrequencyWeekly:
		if s.DayOfPeriod < 1 || s.DayOfPeriod > 7 {
			return fmt.Errorf("weekly schedule needs a weekday between 1 and 7, got %d", s.DayOfPeriod)
		}
	case FrequencyMonthly:
		if s.DayOfPeriod < 1 || s.DayOfPeriod > 31 {
			return fmt.Errorf("monthly schedule needs a day between 1 and 31, got %d", s.DayOfPeriod)
		}
	case FrequencyYearly:
		if s.DayOfPeriod < 1 || s.DayOfPeriod > 31 {
			return fmt.Errorf("yearly schedule needs a day between 1 and 31, got %d", s.DayOfPeriod)
		}
		if s.Month < time.January || s.Month > time.December {
			return fmt.Errorf("yearly schedule needs a month between 1 and 12, got %d", s.Month)
		}
	default:
		return fmt.Errorf("unsupported frequency %q", s.Frequency)
	}
	return nil
}

// Next returns the occurrence one period after from.
//
// Monthly and yearly results are re-derived from the target month's own
// length, so a day-31 schedule goes Jan 31 -> Feb 28 -> Mar 31 instead of
// sticking to the 28th after the first clamp.
func Next(from time.Time, s Schedule) time.Time {
	switch s.Frequency {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		y, m, _ := from.Date()
		target := time.Date(y, m+1, 1, 0, 0, 0, 0, from.Location())
		return onDay(from, target.Year(), target.Month(), s.dayOr(from.Day()))
	case FrequencyYearly:
		return onDay(from, from.Year()+1, s.monthOr(from.Month()), s.dayOr(from.Day()))
	}
	return from
}

// First returns the earliest occurrence at or after start. It is used when a
// schedule is created and when its backlog is skipped.
func First(start time.Time, s Schedule) time.Time {
	switch s.Frequency {
	case FrequencyWeekly:
		if s.DayOfPeriod < 1 || s.DayOfPeriod > 7 {
			return start
		}
		diff := (s.DayOfPeriod - ISOWeekday(start) + 7) % 7
		return start.AddDate(0, 0, diff)
	case FrequencyMonthly:
		candidate := onDay(start, start.Year(), start.Month(), s.dayOr(start.Day()))
		if candidate.Before(start) {
			return Next(candidate, s)
		}
		return candidate
	case FrequencyYearly:
		candidate := onDay(start, start.Year(), s.monthOr(start.Month()), s.dayOr(start.Day()))
		if candidate.Before(start) {
			return onDay(start, start.Year()+1, s.monthOr(start.Month()), s.dayOr(start.Day()))
		}
		return candidate
	}
	return start
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns [start, end) of the calendar month containing t, in t's location.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// onDay builds a timestamp in year/month on the clamped day with ref's clock time.
func onDay(ref time.Time, year int, month time.Month, day int) time.Time {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}

func (s Schedule) dayOr(fallback int) int {
	if s.DayOfPeriod < 1 {
		return fallback
	}
	return s.DayOfPeriod
}

func (s Schedule) monthOr(fallback time.Month) time.Month {
	if s.Month < time.January || s.Month > time.December {
		return fallback
	}
	return s.Month
}
