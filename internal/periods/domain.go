package periods

import "time"

// Status enumerates valid period states.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Period represents a weekly accounting bucket. At most one period is
// active at any time and (year, week_of_year) is unique.
type Period struct {
	ID         int64
	Number     int64
	Year       int
	WeekOfYear int
	StartAt    time.Time
	EndAt      time.Time
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
