package shipment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
	"github.com/nearexpiry/backend-nearexpiry/internal/events"
)

// Shipment statuses, in delivery order.
const (
	StatusPending   = "pending"
	StatusPacked    = "packed"
	StatusInTransit = "in-transit"
	StatusDelivered = "delivered"
)

var (
	// ErrNotFound is returned when no shipment matches the request.
	ErrNotFound = errors.New("shipment: not found")
	// ErrInvalidTransition is returned for backward or unknown moves.
	ErrInvalidTransition = errors.New("shipment: invalid transition")
)

// Rank orders the statuses. Unknown statuses rank below everything.
func Rank(status string) int {
	switch status {
	case StatusPending:
		return 0
	case StatusPacked:
		return 1
	case StatusInTransit:
		return 2
	case StatusDelivered:
		return 3
	default:
		return -1
	}
}

// ValidStatus reports whether the status is part of the delivery chain.
func ValidStatus(status string) bool {
	return Rank(status) >= 0
}

// Shipment tracks one order through the delivery chain.
type Shipment struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   uuid.UUID  `json:"orderId"`
	PartnerID *uuid.UUID `json:"partnerId,omitempty"`
	Status    string     `json:"status"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Store abstracts shipment persistence.
type Store interface {
	Insert(ctx context.Context, sh Shipment) (Shipment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (Shipment, error)
	GetByID(ctx context.Context, id uuid.UUID) (Shipment, error)
	AssignPartner(ctx context.Context, id, partnerID uuid.UUID) (Shipment, error)
	// Advance moves the shipment forward; it must fail with
	// ErrInvalidTransition when the target does not rank above the
	// current status.
	Advance(ctx context.Context, id uuid.UUID, target, note string) (Shipment, error)
	ListForPartner(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]Shipment, int64, error)
}

// Service runs the shipment workflow.
type Service struct {
	store  Store
	events *events.Bus
	log    zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  Store
	Events *events.Bus
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("shipment: store is required")
	}
	return &Service{store: cfg.Store, events: cfg.Events, log: cfg.Logger}, nil
}

// CreateForOrder opens a shipment for an order. One shipment per order.
func (s *Service) CreateForOrder(ctx context.Context, orderID uuid.UUID) (Shipment, error) {
	if _, err := s.store.GetByOrder(ctx, orderID); err == nil {
		return Shipment{}, &common.AppError{
			Code:       "ALREADY_EXISTS",
			Message:    "order already has a shipment",
			HTTPStatus: http.StatusConflict,
		}
	} else if !errors.Is(err, ErrNotFound) {
		return Shipment{}, fmt.Errorf("check shipment: %w", err)
	}
	created, err := s.store.Insert(ctx, Shipment{OrderID: orderID, Status: StatusPending})
	if err != nil {
		return Shipment{}, fmt.Errorf("create shipment: %w", err)
	}
	s.log.Info().Str("order_id", orderID.String()).Msg("shipment opened")
	return created, nil
}

// AssignPartner hands the shipment to a delivery partner.
func (s *Service) AssignPartner(ctx context.Context, id, partnerID uuid.UUID) (Shipment, error) {
	assigned, err := s.store.AssignPartner(ctx, id, partnerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Shipment{}, shipmentNotFound(err)
		}
		return Shipment{}, fmt.Errorf("assign partner: %w", err)
	}
	return assigned, nil
}

// Advance moves a shipment forward through the chain. Partners may only
// advance their own shipments; admins may advance any.
func (s *Service) Advance(ctx context.Context, id, actorID uuid.UUID, isAdmin bool, target, note string) (Shipment, error) {
	if !ValidStatus(target) {
		return Shipment{}, &common.AppError{Code: "BAD_REQUEST", Message: "unknown shipment status", HTTPStatus: http.StatusBadRequest}
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Shipment{}, shipmentNotFound(err)
		}
		return Shipment{}, fmt.Errorf("load shipment: %w", err)
	}
	if !isAdmin && (current.PartnerID == nil || *current.PartnerID != actorID) {
		return Shipment{}, &common.AppError{Code: "FORBIDDEN", Message: "shipment belongs to another partner", HTTPStatus: http.StatusForbidden}
	}
	advanced, err := s.store.Advance(ctx, id, target, note)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return Shipment{}, shipmentNotFound(err)
		case errors.Is(err, ErrInvalidTransition):
			return Shipment{}, &common.AppError{
				Code:       "INVALID_STATE",
				Message:    "shipments only move forward",
				HTTPStatus: http.StatusConflict,
				Err:        err,
			}
		}
		return Shipment{}, fmt.Errorf("advance shipment: %w", err)
	}
	s.log.Info().
		Str("shipment_id", id.String()).
		Str("status", target).
		Msg("shipment advanced")
	if s.events != nil {
		topic := events.TopicShipmentUpdated
		if target == StatusDelivered {
			topic = events.TopicShipmentDelivered
		}
		_, _ = s.events.Emit(ctx, topic, advanced.OrderID, map[string]any{
			"shipmentId": advanced.ID.String(),
			"orderId":    advanced.OrderID.String(),
			"status":     target,
		})
	}
	return advanced, nil
}

// ByOrder returns the shipment attached to an order.
func (s *Service) ByOrder(ctx context.Context, orderID uuid.UUID) (Shipment, error) {
	sh, err := s.store.GetByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Shipment{}, shipmentNotFound(err)
		}
		return Shipment{}, fmt.Errorf("get shipment: %w", err)
	}
	return sh, nil
}

// ForPartner lists the partner's assigned shipments.
func (s *Service) ForPartner(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]Shipment, int64, error) {
	list, total, err := s.store.ListForPartner(ctx, partnerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list shipments: %w", err)
	}
	return list, total, nil
}

func shipmentNotFound(err error) *common.AppError {
	return &common.AppError{Code: "NOT_FOUND", Message: "shipment not found", HTTPStatus: http.StatusNotFound, Err: err}
}
