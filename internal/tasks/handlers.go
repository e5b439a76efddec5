package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/nearexpiry/backend-nearexpiry/internal/events"
)

// Handlers processes background tasks.
type Handlers struct {
	Log      zerolog.Logger
	Repricer *Repricer
}

// Mux routes task types to their handlers.
func (h Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEventDispatch, h.HandleEvent)
	mux.HandleFunc(TypeRepriceSweep, h.HandleReprice)
	return mux
}

// HandleEvent dispatches a persisted domain event to its follow-up action.
func (h Handlers) HandleEvent(ctx context.Context, t *asynq.Task) error {
	var ev eventPayload
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		// A malformed payload will never succeed, drop it.
		return fmt.Errorf("decode event payload: %v: %w", err, asynq.SkipRetry)
	}
	log := h.Log.With().
		Str("event_id", ev.ID).
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID).
		Logger()

	switch ev.Topic {
	case events.TopicOrderCreated:
		log.Info().Msg("order confirmation dispatched")
	case events.TopicOrderCancelled:
		log.Info().Msg("order cancellation dispatched")
	case events.TopicSellerVerified:
		log.Info().Msg("seller approval notice dispatched")
	case events.TopicSellerRejected:
		log.Info().Msg("seller rejection notice dispatched")
	case events.TopicShipmentUpdated, events.TopicShipmentDelivered:
		log.Info().Msg("shipment update dispatched")
	default:
		log.Warn().Msg("unknown event topic, dropping")
	}
	return nil
}

// HandleReprice runs the periodic reprice sweep.
func (h Handlers) HandleReprice(ctx context.Context, _ *asynq.Task) error {
	if h.Repricer == nil {
		return fmt.Errorf("repricer not configured: %w", asynq.SkipRetry)
	}
	return h.Repricer.Run(ctx)
}
