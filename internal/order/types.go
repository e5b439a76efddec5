package order

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nearexpiry/backend-nearexpiry/internal/impact"
	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrInsufficientStock is returned when the stock guard rejects a line.
	ErrInsufficientStock = errors.New("order: insufficient stock")
	// ErrNotFound is returned when no order matches the requested id.
	ErrNotFound = errors.New("order: not found")
	// ErrInvalidState is returned for disallowed status transitions.
	ErrInvalidState = errors.New("order: invalid state transition")
)

// Rank orders the forward states. Cancelled sits outside the forward chain.
func Rank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusShipped:
		return 2
	case StatusDelivered:
		return 3
	case StatusCancelled:
		return -1
	default:
		return -2
	}
}

// Cancellable reports whether a buyer may still cancel from this state.
func Cancellable(s Status) bool {
	return s == StatusPending || s == StatusConfirmed
}

// LineItem is a priced order line. UnitPrice is the discounted price locked
// in at checkout time; later reprice sweeps never touch placed orders.
type LineItem struct {
	ItemID          uuid.UUID     `json:"itemId"`
	SellerID        uuid.UUID     `json:"sellerId"`
	Name            string        `json:"name"`
	Quantity        int           `json:"quantity"`
	UnitPrice       pricing.Money `json:"unitPrice"`
	DiscountPercent int           `json:"discountPercentage"`
	Subtotal        pricing.Money `json:"subtotal"`
}

// Order is a placed order with its locked prices and impact snapshot.
type Order struct {
	ID               uuid.UUID     `json:"id"`
	BuyerID          uuid.UUID     `json:"buyerId"`
	Status           Status        `json:"status"`
	TotalAmount      pricing.Money `json:"totalAmount"`
	GreenPoints      int64         `json:"greenPoints"`
	WasteSavedGrams  int64         `json:"wasteSavedGrams"`
	CarbonSavedGrams int64         `json:"carbonSavedGrams"`
	DeliveryAddress  string        `json:"deliveryAddress,omitempty"`
	Items            []LineItem    `json:"items"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Draft carries everything the store needs to persist an order atomically.
type Draft struct {
	BuyerID         uuid.UUID
	DeliveryAddress string
	Lines           []LineItem
	TotalAmount     pricing.Money
	Impact          impact.Delta
}
