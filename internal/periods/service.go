package periods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cofund/cofund/internal/shared"
)

// Service owns the lazy week rollover. Creating the period for a new
// week closes the previous active one atomically; concurrent callers
// collapse in-process through singleflight and cross-process through the
// (year, week) unique index.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

// NewService constructs the period service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Current returns the period covering the current instant, creating it
// when the wall clock has advanced past the existing window.
func (s *Service) Current(ctx context.Context) (Period, error) {
	now := s.now()
	year, week := WeekOf(now)

	period, err := s.repo.FindByYearWeek(ctx, year, week)
	if err == nil {
		return period, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Period{}, err
	}

	v, err, _ := s.group.Do(fmt.Sprintf("open:%d:%d", year, week), func() (any, error) {
		if p, err := s.repo.FindByYearWeek(ctx, year, week); err == nil {
			return p, nil
		}
		start, end := WindowOf(now)
		created, err := s.repo.OpenWeek(ctx, Period{
			Year:       year,
			WeekOfYear: week,
			StartAt:    start,
			EndAt:      end,
		})
		if errors.Is(err, shared.ErrConflict) {
			// A concurrent opener won the unique index race; its row is
			// the period for this week.
			return s.repo.FindByYearWeek(ctx, year, week)
		}
		if err != nil {
			return Period{}, err
		}
		s.logger.Info("period opened",
			slog.Int64("number", created.Number),
			slog.Int("year", created.Year),
			slog.Int("week", created.WeekOfYear))
		return created, nil
	})
	if err != nil {
		return Period{}, err
	}
	return v.(Period), nil
}

// Rollover ensures the current period exists and re-points every
// in-flight campaign's current-period reference at it.
func (s *Service) Rollover(ctx context.Context) (Period, error) {
	period, err := s.Current(ctx)
	if err != nil {
		return Period{}, err
	}
	if err := s.repo.RepointInProgressCampaigns(ctx, period.ID); err != nil {
		return Period{}, err
	}
	return period, nil
}

// Get returns one period by id.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns periods newest first.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]Period, shared.Pagination, error) {
	p := shared.NewPagination(page, pageSize, 0)
	list, total, err := s.repo.List(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}
