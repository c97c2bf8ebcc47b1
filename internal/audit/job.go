package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/cofund/cofund/internal/shared"
)

// Store abstracts event persistence for the job handler.
type Store interface {
	Insert(ctx context.Context, event shared.AuditEvent) error
}

// RecordJob persists queued audit events.
type RecordJob struct {
	store  Store
	logger *slog.Logger
}

// NewRecordJob constructs a job handler.
func NewRecordJob(store Store, logger *slog.Logger) *RecordJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordJob{store: store, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *RecordJob) Handle(ctx context.Context, task *asynq.Task) error {
	var event shared.AuditEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return asynq.SkipRetry
	}
	if event.ID == "" || event.Action == "" {
		return asynq.SkipRetry
	}
	if err := j.store.Insert(ctx, event); err != nil {
		j.logger.Error("persist audit event", slog.String("id", event.ID), slog.Any("error", err))
		return err
	}
	return nil
}
