package pricing

// Tier labels how aggressively an item is discounted.
type Tier string

const (
	TierHot     Tier = "hot-deal"
	TierGood    Tier = "good-deal"
	TierFair    Tier = "fair-deal"
	TierExpired Tier = "expired"
)

// Band pairs a discount percentage with its qualitative tier.
type Band struct {
	Percent int
	Tier    Tier
}

// band thresholds are inclusive on daysLeft; first match wins.
var bands = []struct {
	maxDays int
	band    Band
}{
	{7, Band{Percent: 60, Tier: TierHot}},
	{14, Band{Percent: 40, Tier: TierGood}},
	{30, Band{Percent: 20, Tier: TierGood}},
}

// Classify maps days-until-expiry onto the discount table. Expired items
// (negative daysLeft) are classified TierExpired with no discount; they are
// not sellable and callers must reject them before pricing.
func Classify(daysLeft int) Band {
	if daysLeft < 0 {
		return Band{Percent: 0, Tier: TierExpired}
	}
	for _, b := range bands {
		if daysLeft <= b.maxDays {
			return b.band
		}
	}
	return Band{Percent: 10, Tier: TierFair}
}
