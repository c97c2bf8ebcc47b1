package periods

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cofund/cofund/internal/shared"
)

type memoryPeriodRepo struct {
	periods      map[int64]Period
	nextID       int64
	openErr      error
	repointed    []int64
	openAttempts int

	// lateWinner simulates a concurrent creator whose row becomes
	// visible only after our own insert fails the uniqueness race.
	lateWinner *Period
}

func newMemoryPeriodRepo() *memoryPeriodRepo {
	return &memoryPeriodRepo{periods: make(map[int64]Period)}
}

func (r *memoryPeriodRepo) FindByYearWeek(ctx context.Context, year, week int) (Period, error) {
	if r.lateWinner != nil && r.openAttempts > 0 {
		if r.lateWinner.Year == year && r.lateWinner.WeekOfYear == week {
			return *r.lateWinner, nil
		}
	}
	for _, p := range r.periods {
		if p.Year == year && p.WeekOfYear == week {
			return p, nil
		}
	}
	return Period{}, fmt.Errorf("periods: week %d/%d: %w", year, week, shared.ErrNotFound)
}

func (r *memoryPeriodRepo) GetByID(ctx context.Context, id int64) (Period, error) {
	p, ok := r.periods[id]
	if !ok {
		return Period{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryPeriodRepo) List(ctx context.Context, limit, offset int) ([]Period, int, error) {
	var list []Period
	for _, p := range r.periods {
		list = append(list, p)
	}
	return list, len(list), nil
}

func (r *memoryPeriodRepo) OpenWeek(ctx context.Context, period Period) (Period, error) {
	r.openAttempts++
	if r.openErr != nil {
		err := r.openErr
		r.openErr = nil
		return Period{}, err
	}
	var maxNumber int64
	for id, p := range r.periods {
		if p.Number > maxNumber {
			maxNumber = p.Number
		}
		if p.Status == StatusActive {
			p.Status = StatusClosed
			r.periods[id] = p
		}
	}
	r.nextID++
	period.ID = r.nextID
	period.Number = maxNumber + 1
	period.Status = StatusActive
	r.periods[period.ID] = period
	return period, nil
}

func (r *memoryPeriodRepo) RepointInProgressCampaigns(ctx context.Context, periodID int64) error {
	r.repointed = append(r.repointed, periodID)
	return nil
}

func (r *memoryPeriodRepo) active() []Period {
	var out []Period
	for _, p := range r.periods {
		if p.Status == StatusActive {
			out = append(out, p)
		}
	}
	return out
}

func newTestService(repo Repository, now time.Time) *Service {
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCurrentReturnsExistingPeriod(t *testing.T) {
	repo := newMemoryPeriodRepo()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	year, week := WeekOf(now)
	repo.periods[1] = Period{ID: 1, Number: 7, Year: year, WeekOfYear: week, Status: StatusActive}

	svc := newTestService(repo, now)
	period, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), period.ID)
	require.Zero(t, repo.openAttempts)
}

func TestCurrentOpensNewWeekAndClosesPrevious(t *testing.T) {
	repo := newMemoryPeriodRepo()
	repo.periods[1] = Period{ID: 1, Number: 7, Year: 2025, WeekOfYear: 10, Status: StatusActive}
	repo.nextID = 1

	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	period, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(8), period.Number)
	require.Equal(t, StatusActive, period.Status)
	require.Equal(t, 11, period.WeekOfYear)
	require.Len(t, repo.active(), 1, "exactly one active period at any time")
	require.Equal(t, time.Monday, period.StartAt.Weekday())
	require.Equal(t, time.Sunday, period.EndAt.Weekday())
}

func TestCurrentLosingRacerReturnsWinnerRow(t *testing.T) {
	repo := newMemoryPeriodRepo()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	year, week := WeekOf(now)

	repo.openErr = fmt.Errorf("periods: week already opened: %w", shared.ErrConflict)
	winner := Period{ID: 42, Number: 9, Year: year, WeekOfYear: week, Status: StatusActive}
	repo.lateWinner = &winner

	svc := newTestService(repo, now)
	period, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, winner.ID, period.ID)
	require.Equal(t, 1, repo.openAttempts)
}

func TestRolloverRepointsCampaigns(t *testing.T) {
	repo := newMemoryPeriodRepo()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	period, err := svc.Rollover(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{period.ID}, repo.repointed)
}
