package pricing

import "time"

// Quote is the derived pricing state of a catalog item at a given instant.
type Quote struct {
	DaysLeft   int
	Percent    int
	Tier       Tier
	FinalPrice Money
}

// QuoteItem derives the full pricing quote for an item from its original
// price and expiry date. It returns ErrExpiredItem for items past expiry so
// that sale and listing paths cannot price dead stock by accident.
func QuoteItem(now time.Time, originalPrice Money, expiry time.Time) (Quote, error) {
	daysLeft := DaysUntilExpiry(now, expiry)
	band := Classify(daysLeft)
	if band.Tier == TierExpired {
		return Quote{DaysLeft: daysLeft, Tier: TierExpired}, ErrExpiredItem
	}
	final, err := FinalPrice(originalPrice, band.Percent)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		DaysLeft:   daysLeft,
		Percent:    band.Percent,
		Tier:       band.Tier,
		FinalPrice: final,
	}, nil
}
