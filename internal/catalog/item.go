package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

// Categories lists the household-goods categories accepted for listings.
var Categories = []string{
	"soaps", "toothpaste", "shampoos", "detergents", "cleaners",
	"dishwash", "baby-care", "cosmetics", "grooming",
}

// ValidCategory reports whether the category is one of the accepted values.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Item is a seller listing as persisted. Discount percentage, final price and
// tier are derived from the expiry date and are recomputed on read; the stored
// copies exist only so the database can sort and filter without recomputing,
// and they are refreshed by the periodic reprice sweep.
type Item struct {
	ID            uuid.UUID
	SellerID      uuid.UUID
	Name          string
	Description   string
	Category      string
	OriginalPrice pricing.Money
	ExpiryDate    time.Time
	Quantity      int
	ImageURL      string
	SKU           string
	Verified      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// View is the API representation of an item with its derived pricing state.
type View struct {
	ID              string       `json:"id"`
	SellerID        string       `json:"sellerId"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Category        string       `json:"category"`
	OriginalPrice   int64        `json:"originalPrice"`
	FinalPrice      int64        `json:"finalPrice"`
	DiscountPercent int          `json:"discountPercentage"`
	Tier            pricing.Tier `json:"tier"`
	DaysLeft        int          `json:"daysUntilExpiry"`
	ExpiryDate      time.Time    `json:"expiryDate"`
	Quantity        int          `json:"quantity"`
	ImageURL        string       `json:"image,omitempty"`
	SKU             string       `json:"sku,omitempty"`
	Verified        bool         `json:"verified"`
}
