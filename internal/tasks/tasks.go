package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nearexpiry/backend-nearexpiry/internal/events"
)

// Task type names routed through asynq.
const (
	TypeEventDispatch = "event:dispatch"
	TypeRepriceSweep  = "catalog:reprice"
)

// Queue names. Events carry user-visible follow-ups, maintenance holds
// the periodic sweeps.
const (
	QueueEvents      = "events"
	QueueMaintenance = "maintenance"
)

// eventPayload is the wire form of a domain event inside an asynq task.
type eventPayload struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Enqueuer publishes domain events onto the asynq queue. It satisfies
// events.Enqueuer.
type Enqueuer struct {
	Client *asynq.Client
}

// Enqueue schedules the event for background dispatch. The event ID doubles
// as the task ID so retried emits do not fan out twice.
func (e Enqueuer) Enqueue(ctx context.Context, ev events.Event) error {
	if e.Client == nil {
		return errors.New("tasks: asynq client not configured")
	}
	raw, err := json.Marshal(eventPayload{
		ID:          ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID.String(),
		Payload:     ev.Payload,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return err
	}
	_, err = e.Client.EnqueueContext(ctx, asynq.NewTask(TypeEventDispatch, raw),
		asynq.TaskID(ev.ID.String()),
		asynq.Queue(QueueEvents),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// NewRepriceTask builds the periodic reprice sweep task for the scheduler.
func NewRepriceTask() *asynq.Task {
	return asynq.NewTask(TypeRepriceSweep, nil,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
	)
}
