package periods

import (
	"strconv"
	"time"
)

// View is the serialized shape of a period. Identifiers cross the API
// boundary as strings.
type View struct {
	ID         string    `json:"id"`
	Number     int64     `json:"periodNumber"`
	Year       int       `json:"year"`
	WeekOfYear int       `json:"weekOfYear"`
	StartAt    time.Time `json:"startDate"`
	EndAt      time.Time `json:"endDate"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewView maps a period to its API shape.
func NewView(p Period) View {
	return View{
		ID:         strconv.FormatInt(p.ID, 10),
		Number:     p.Number,
		Year:       p.Year,
		WeekOfYear: p.WeekOfYear,
		StartAt:    p.StartAt,
		EndAt:      p.EndAt,
		Status:     p.Status,
		CreatedAt:  p.CreatedAt,
	}
}

// NewViews maps a period slice.
func NewViews(list []Period) []View {
	views := make([]View, len(list))
	for i, p := range list {
		views[i] = NewView(p)
	}
	return views
}
