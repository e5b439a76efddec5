package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nearexpiry/backend-nearexpiry/internal/catalog"
	"github.com/nearexpiry/backend-nearexpiry/internal/common"
	"github.com/nearexpiry/backend-nearexpiry/internal/events"
	"github.com/nearexpiry/backend-nearexpiry/internal/impact"
	"github.com/nearexpiry/backend-nearexpiry/internal/obs"
	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

// Store abstracts order persistence. CreateOrder must apply the stock guard
// and write the order atomically: when two buyers race for the last unit,
// exactly one CreateOrder succeeds and the other returns ErrInsufficientStock.
type Store interface {
	GetItem(ctx context.Context, id uuid.UUID) (catalog.Item, error)
	CreateOrder(ctx context.Context, draft Draft) (Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]Order, int64, error)
	Cancel(ctx context.Context, id, buyerID uuid.UUID) (Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, target Status) (Order, error)
}

// Service turns a buyer's requested lines into a placed order: it quotes each
// item against the clock, totals the discounted prices, computes the impact
// grant, and hands the draft to the store for the atomic write.
type Service struct {
	store  Store
	events *events.Bus
	log    zerolog.Logger
	now    func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  Store
	Events *events.Bus
	Logger zerolog.Logger
	Now    func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("order: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, events: cfg.Events, log: cfg.Logger, now: now}, nil
}

// LineInput is one requested order line.
type LineInput struct {
	ItemID   string `json:"itemId" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CreateInput is the checkout request body.
type CreateInput struct {
	Lines           []LineInput `json:"items" validate:"required,min=1,max=50,dive"`
	DeliveryAddress string      `json:"deliveryAddress" validate:"max=500"`
}

// Create places an order for the buyer.
func (s *Service) Create(ctx context.Context, buyerID uuid.UUID, in CreateInput) (Order, error) {
	now := s.now()
	lines := make([]LineItem, 0, len(in.Lines))
	impactLines := make([]impact.Line, 0, len(in.Lines))
	var total pricing.Money

	for _, req := range in.Lines {
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			return Order{}, &common.AppError{Code: "BAD_REQUEST", Message: "invalid item id", HTTPStatus: http.StatusBadRequest, Err: err}
		}
		item, err := s.store.GetItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return Order{}, &common.AppError{Code: "NOT_FOUND", Message: "item not found", HTTPStatus: http.StatusNotFound, Err: err}
			}
			return Order{}, fmt.Errorf("load item: %w", err)
		}
		if !item.Verified {
			return Order{}, &common.AppError{Code: "ITEM_UNAVAILABLE", Message: "item is not available for purchase", HTTPStatus: http.StatusConflict}
		}
		quote, err := pricing.QuoteItem(now, item.OriginalPrice, item.ExpiryDate)
		if err != nil {
			if errors.Is(err, pricing.ErrExpiredItem) {
				return Order{}, &common.AppError{
					Code:       "ITEM_EXPIRED",
					Message:    fmt.Sprintf("item %s has expired and cannot be sold", item.Name),
					HTTPStatus: http.StatusUnprocessableEntity,
					Err:        err,
				}
			}
			return Order{}, fmt.Errorf("quote item: %w", err)
		}
		subtotal := quote.FinalPrice * pricing.Money(req.Quantity)
		lines = append(lines, LineItem{
			ItemID:          item.ID,
			SellerID:        item.SellerID,
			Name:            item.Name,
			Quantity:        req.Quantity,
			UnitPrice:       quote.FinalPrice,
			DiscountPercent: quote.Percent,
			Subtotal:        subtotal,
		})
		impactLines = append(impactLines, impact.Line{Quantity: req.Quantity})
		total += subtotal
	}

	delta := impact.ForOrder(impactLines, total)
	draft := Draft{
		BuyerID:         buyerID,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		Lines:           lines,
		TotalAmount:     total,
		Impact:          delta,
	}
	placed, err := s.store.CreateOrder(ctx, draft)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			countOrder("insufficient_stock")
			if obs.OversellRejectedTotal != nil {
				obs.OversellRejectedTotal.Inc()
			}
			return Order{}, &common.AppError{
				Code:       "INSUFFICIENT_STOCK",
				Message:    "not enough stock to fulfil the order",
				HTTPStatus: http.StatusConflict,
				Err:        err,
			}
		}
		countOrder("error")
		return Order{}, fmt.Errorf("create order: %w", err)
	}

	countOrder("success")
	if obs.GreenPointsAwarded != nil {
		obs.GreenPointsAwarded.Add(float64(delta.GreenPoints))
	}
	if obs.WasteSavedGrams != nil {
		obs.WasteSavedGrams.Add(float64(delta.WasteSavedGrams))
	}
	s.log.Info().
		Str("order_id", placed.ID.String()).
		Str("buyer_id", buyerID.String()).
		Int64("total", int64(total)).
		Int64("green_points", delta.GreenPoints).
		Msg("order placed")

	if s.events != nil {
		_, _ = s.events.Emit(ctx, events.TopicOrderCreated, placed.ID, map[string]any{
			"orderId":     placed.ID.String(),
			"buyerId":     buyerID.String(),
			"total":       int64(total),
			"greenPoints": delta.GreenPoints,
		})
	}
	return placed, nil
}

// Get returns an order visible to the requesting buyer. Admins see all.
func (s *Service) Get(ctx context.Context, id, requesterID uuid.UUID, isAdmin bool) (Order, error) {
	placed, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, orderNotFound(err)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if !isAdmin && placed.BuyerID != requesterID {
		// Hide the order's existence from other buyers.
		return Order{}, orderNotFound(nil)
	}
	return placed, nil
}

// ListMine returns the buyer's orders newest first.
func (s *Service) ListMine(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]Order, int64, error) {
	orders, total, err := s.store.ListByBuyer(ctx, buyerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// Cancel cancels a pending or confirmed order and restores its stock. Impact
// already granted stays with the buyer.
func (s *Service) Cancel(ctx context.Context, id, buyerID uuid.UUID) (Order, error) {
	cancelled, err := s.store.Cancel(ctx, id, buyerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return Order{}, orderNotFound(err)
		case errors.Is(err, ErrInvalidState):
			return Order{}, &common.AppError{
				Code:       "INVALID_STATE",
				Message:    "order can no longer be cancelled",
				HTTPStatus: http.StatusConflict,
				Err:        err,
			}
		}
		return Order{}, fmt.Errorf("cancel order: %w", err)
	}
	countOrder("cancelled")
	s.log.Info().Str("order_id", id.String()).Msg("order cancelled")
	return cancelled, nil
}

// UpdateStatus moves an order forward through the fulfilment chain. Only
// strictly forward transitions are allowed.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target Status) (Order, error) {
	if Rank(target) < 1 && target != StatusCancelled {
		return Order{}, &common.AppError{Code: "BAD_REQUEST", Message: "unsupported status", HTTPStatus: http.StatusBadRequest}
	}
	updated, err := s.store.UpdateStatus(ctx, id, target)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return Order{}, orderNotFound(err)
		case errors.Is(err, ErrInvalidState):
			return Order{}, &common.AppError{
				Code:       "INVALID_STATE",
				Message:    "cannot transition to equal or previous state",
				HTTPStatus: http.StatusConflict,
				Err:        err,
			}
		}
		return Order{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

func countOrder(result string) {
	if obs.OrdersTotal != nil {
		obs.OrdersTotal.WithLabelValues(result).Inc()
	}
}

func orderNotFound(err error) *common.AppError {
	return &common.AppError{Code: "NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound, Err: err}
}
