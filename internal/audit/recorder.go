package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cofund/cofund/internal/shared"
	"github.com/cofund/cofund/jobs"
)

// Recorder enqueues audit events for asynchronous persistence. It
// satisfies the audit ports of the domain services; callers treat a
// failed enqueue as log-and-continue.
type Recorder struct {
	client *jobs.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(client *jobs.Client, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{client: client, logger: logger, now: time.Now}
}

// Record assigns the event an id and timestamp when missing and hands
// it to the queue.
func (r *Recorder) Record(ctx context.Context, event shared.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = r.now()
	}
	_, err := r.client.EnqueueAuditRecord(ctx, event)
	return err
}
