package periods

import (
	"math"
	"time"
)

// WeekOf computes the accounting (year, week) bucket for an instant.
// Weeks are counted from January 1st, offset by the weekday January 1st
// fell on, so week 1 may be shorter than seven days.
func WeekOf(t time.Time) (year, week int) {
	year = t.Year()
	startOfYear := time.Date(year, time.January, 1, 0, 0, 0, 0, t.Location())
	days := int(math.Floor(t.Sub(startOfYear).Hours() / 24))
	week = int(math.Ceil(float64(days+int(startOfYear.Weekday())+1) / 7))
	return year, week
}

// WindowOf returns the week window around an instant: Monday 00:00:00.000
// through Sunday 23:59:59.999. Sunday counts as the last day of the
// closing week, not the first of a new one.
func WindowOf(t time.Time) (start, end time.Time) {
	offset := int(t.Weekday()) - 1
	if t.Weekday() == time.Sunday {
		offset = 6
	}
	y, m, d := t.AddDate(0, 0, -offset).Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	last := start.AddDate(0, 0, 6)
	end = time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
	return start, end
}
