package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/events"
)

type captureClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (c *captureClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	return &asynq.TaskInfo{}, nil
}

func TestSchedulerEnqueuesEvent(t *testing.T) {
	client := &captureClient{}
	ev := events.Event{ID: uuid.New(), Topic: events.TopicInvoiceCreated, AggregateID: uuid.New(), Payload: json.RawMessage(`{"number":"INV-2024-0001"}`)}
	require.NoError(t, Scheduler{Client: client}.Schedule(context.Background(), ev))

	require.Len(t, client.tasks, 1)
	require.Equal(t, TypeEventDispatch, client.tasks[0].Type())
	var decoded events.Event
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &decoded))
	require.Equal(t, ev.ID, decoded.ID)

	var taskID, queue string
	for _, o := range client.opts[0] {
		switch o.Type() {
		case asynq.TaskIDOpt:
			taskID = o.Value().(string)
		case asynq.QueueOpt:
			queue = o.Value().(string)
		}
	}
	require.Equal(t, ev.ID.String(), taskID)
	require.Equal(t, QueueEvents, queue)
}

func TestSchedulerIgnoresDuplicateTask(t *testing.T) {
	err := Scheduler{Client: &captureClient{err: asynq.ErrTaskIDConflict}}.Schedule(context.Background(), events.Event{ID: uuid.New()})
	require.NoError(t, err)

	err = Scheduler{}.Schedule(context.Background(), events.Event{ID: uuid.New()})
	require.Error(t, err)
}

type stubExpirer struct {
	n   int
	err error
}

func (s stubExpirer) ExpireOverdue(context.Context) (int, error) { return s.n, s.err }

func TestMuxRoutesExpiry(t *testing.T) {
	h := Handlers{Proformas: stubExpirer{n: 3}, Logger: zerolog.Nop()}
	require.NoError(t, h.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeProformaExpire, nil)))

	h.Proformas = stubExpirer{err: errors.New("db down")}
	require.EqualError(t, h.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeProformaExpire, nil)), "db down")

	err := Handlers{}.ExpireProformas(context.Background(), asynq.NewTask(TypeProformaExpire, nil))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDispatchEventRunsNotifiers(t *testing.T) {
	var topics []string
	h := Handlers{
		Logger: zerolog.Nop(),
		Notifiers: []events.Notifier{
			events.NotifierFunc(func(_ context.Context, ev events.Event) error {
				topics = append(topics, ev.Topic)
				return nil
			}),
			nil,
		},
	}
	payload, err := json.Marshal(events.Event{ID: uuid.New(), Topic: events.TopicCashpowerSold, AggregateID: uuid.New()})
	require.NoError(t, err)
	require.NoError(t, h.DispatchEvent(context.Background(), asynq.NewTask(TypeEventDispatch, payload)))
	require.Equal(t, []string{events.TopicCashpowerSold}, topics)

	err = h.DispatchEvent(context.Background(), asynq.NewTask(TypeEventDispatch, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
