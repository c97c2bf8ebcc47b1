package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/cofund/cofund/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit event.
	TaskAuditRecord = "audit:record"
	// TaskPeriodRollover opens the current week's period and re-points
	// in-flight campaigns at it.
	TaskPeriodRollover = "periods:rollover"
)

// NewAuditRecordTask constructs an audit persistence task.
func NewAuditRecordTask(event shared.AuditEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data), nil
}

// NewPeriodRolloverTask constructs a rollover task. It carries no
// payload; the handler derives everything from the clock.
func NewPeriodRolloverTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskPeriodRollover, nil), nil
}
