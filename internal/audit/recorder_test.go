package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/cofund/cofund/internal/shared"
	"github.com/cofund/cofund/jobs"
)

func TestRecorderEnqueuesEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	client, err := jobs.NewClient(opts)
	require.NoError(t, err)
	defer client.Close()

	recorder := NewRecorder(client, nil)
	err = recorder.Record(context.Background(), shared.AuditEvent{
		ActorID:  7,
		Action:   "campaign.create",
		Entity:   "campaign",
		EntityID: "12",
	})
	require.NoError(t, err)

	inspector := asynq.NewInspector(opts)
	defer inspector.Close()
	tasks, err := inspector.ListPendingTasks(jobs.QueueDefault)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, jobs.TaskAuditRecord, tasks[0].Type)

	var event shared.AuditEvent
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &event))
	require.NotEmpty(t, event.ID, "recorder assigns an id")
	require.False(t, event.At.IsZero(), "recorder stamps the event")
	require.Equal(t, "campaign.create", event.Action)
}

type memoryStore struct {
	events []shared.AuditEvent
	err    error
}

func (s *memoryStore) Insert(ctx context.Context, event shared.AuditEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func TestRecordJobPersistsEvent(t *testing.T) {
	store := &memoryStore{}
	job := NewRecordJob(store, nil)

	task, err := jobs.NewAuditRecordTask(shared.AuditEvent{
		ID:       "evt-1",
		ActorID:  7,
		Action:   "fund_application.approve",
		Entity:   "fund_application",
		EntityID: "3",
		At:       time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, store.events, 1)
	require.Equal(t, "evt-1", store.events[0].ID)
}

func TestRecordJobSkipsMalformedPayload(t *testing.T) {
	store := &memoryStore{}
	job := NewRecordJob(store, nil)

	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskAuditRecord, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, store.events)
}

func TestRecordJobPropagatesStoreErrors(t *testing.T) {
	store := &memoryStore{err: errors.New("down")}
	job := NewRecordJob(store, nil)

	task, err := jobs.NewAuditRecordTask(shared.AuditEvent{ID: "evt-2", Action: "campaign.cancel"})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}
