package periods

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWeekOf(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		year int
		week int
	}{
		{"first day of year", time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), 2025, 1},
		{"mid march", time.Date(2025, 3, 15, 12, 30, 0, 0, time.UTC), 2025, 11},
		{"late august", time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), 2026, 35},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			year, week := WeekOf(tc.at)
			require.Equal(t, tc.year, year)
			require.Equal(t, tc.week, week)
		})
	}
}

func TestWindowOfMidweek(t *testing.T) {
	start, end := WindowOf(time.Date(2025, 3, 12, 15, 4, 5, 0, time.UTC))
	require.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2025, 3, 16, 23, 59, 59, int(999*time.Millisecond), time.UTC), end)
}

func TestWindowOfSundayBelongsToClosingWeek(t *testing.T) {
	start, end := WindowOf(time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.March, end.Month())
	require.Equal(t, 16, end.Day())
}

func TestWindowOfMonday(t *testing.T) {
	start, _ := WindowOf(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 10, start.Day())
}
