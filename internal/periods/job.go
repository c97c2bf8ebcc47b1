package periods

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// RolloverJob ensures the current week's period exists and re-points
// in-flight campaigns at it. Scheduled weekly; safe to run at any time
// because Rollover is idempotent within a week.
type RolloverJob struct {
	service *Service
	logger  *slog.Logger
}

// NewRolloverJob constructs a job handler.
func NewRolloverJob(service *Service, logger *slog.Logger) *RolloverJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RolloverJob{service: service, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *RolloverJob) Handle(ctx context.Context, task *asynq.Task) error {
	period, err := j.service.Rollover(ctx)
	if err != nil {
		j.logger.Error("period rollover", slog.Any("error", err))
		return err
	}
	j.logger.Info("period rollover",
		slog.Int64("period_id", period.ID),
		slog.Int("year", period.Year),
		slog.Int("week", period.WeekOfYear))
	return nil
}
