package pricing

import (
	"errors"
	"fmt"
)

// Money represents a monetary value in whole currency units.
type Money = int64

// ErrInvalidInput is returned for prices or percentages outside their domain.
var ErrInvalidInput = errors.New("pricing: invalid input")

// ErrExpiredItem is returned when a sale path receives an already expired item.
var ErrExpiredItem = errors.New("pricing: item has expired")

// FinalPrice applies a discount percentage to an original price, rounding
// half-up to the nearest whole unit.
func FinalPrice(original Money, percent int) (Money, error) {
	if original < 0 {
		return 0, fmt.Errorf("%w: original price %d is negative", ErrInvalidInput, original)
	}
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("%w: percentage %d outside [0,100]", ErrInvalidInput, percent)
	}
	return (original*Money(100-percent) + 50) / 100, nil
}
