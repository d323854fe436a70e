package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/obs"
)

// Task types.
const (
	TypeProformaExpire = "proforma:expire"
	TypeEventDispatch  = "event:dispatch"
)

// Queue names and their worker priorities.
const (
	QueueEvents      = "events"
	QueueMaintenance = "maintenance"
)

// Queues is the asynq queue priority map used by the worker.
func Queues() map[string]int {
	return map[string]int{QueueEvents: 6, QueueMaintenance: 3, "default": 1}
}

// Enqueuer is the subset of *asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler hands persisted domain events to the worker. It implements
// events.DeliveryScheduler; the event id doubles as the task id so a
// re-scheduled event is enqueued once.
type Scheduler struct {
	Client   Enqueuer
	MaxRetry int
}

var _ events.DeliveryScheduler = Scheduler{}

// Schedule implements events.DeliveryScheduler.
func (s Scheduler) Schedule(ctx context.Context, ev events.Event) error {
	if s.Client == nil {
		return errors.New("jobs: client not configured")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	retry := s.MaxRetry
	if retry <= 0 {
		retry = 5
	}
	_, err = s.Client.EnqueueContext(ctx, asynq.NewTask(TypeEventDispatch, payload),
		asynq.Queue(QueueEvents),
		asynq.MaxRetry(retry),
		asynq.TaskID(ev.ID.String()),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// RegisterExpiry schedules the proforma expiry sweep on cronspec. The unique
// option keeps replicas of the scheduler from enqueueing the same sweep twice.
func RegisterExpiry(s *asynq.Scheduler, cronspec string) (string, error) {
	return s.Register(cronspec, asynq.NewTask(TypeProformaExpire, nil),
		asynq.Queue(QueueMaintenance),
		asynq.Unique(time.Minute),
		asynq.MaxRetry(3),
	)
}

// Expirer moves overdue proformas to expired.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Handlers processes worker tasks.
type Handlers struct {
	Proformas Expirer
	// Notifiers run for every dispatched event.
	Notifiers []events.Notifier
	Logger    zerolog.Logger
}

// Mux routes task types to handlers.
func (h Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProformaExpire, h.ExpireProformas)
	mux.HandleFunc(TypeEventDispatch, h.DispatchEvent)
	return mux
}

// ExpireProformas runs the expiry sweep.
func (h Handlers) ExpireProformas(ctx context.Context, _ *asynq.Task) error {
	if h.Proformas == nil {
		return fmt.Errorf("jobs: proforma service not configured: %w", asynq.SkipRetry)
	}
	n, err := h.Proformas.ExpireOverdue(ctx)
	obs.Inc(obs.JobRunsTotal, TypeProformaExpire, obs.Result(err))
	if err != nil {
		return err
	}
	h.Logger.Info().Str("task", TypeProformaExpire).Int("expired", n).Msg("proformas expired")
	return nil
}

// DispatchEvent decodes an event and runs every notifier. Undecodable
// payloads are dropped without retry.
func (h Handlers) DispatchEvent(ctx context.Context, t *asynq.Task) error {
	var ev events.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		obs.Inc(obs.JobRunsTotal, TypeEventDispatch, "error")
		return fmt.Errorf("jobs: decode event: %v: %w", err, asynq.SkipRetry)
	}
	var joined error
	for _, n := range h.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			joined = errors.Join(joined, err)
		}
	}
	obs.Inc(obs.JobRunsTotal, TypeEventDispatch, obs.Result(joined))
	h.Logger.Info().
		Str("task", TypeEventDispatch).
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID.String()).
		Str("event_id", ev.ID.String()).
		Err(joined).
		Msg("domain_event")
	return joined
}
