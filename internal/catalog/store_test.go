package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

func TestDerivedColumnsFollowInjectedClock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	d := derivedOf(Item{OriginalPrice: 150, ExpiryDate: now.AddDate(0, 0, 5)}, now)
	require.Equal(t, 60, d.percent)
	require.Equal(t, pricing.Money(60), d.final)
	require.Equal(t, pricing.TierHot, d.tier)

	// Past expiry is flagged, not priced.
	d = derivedOf(Item{OriginalPrice: 80, ExpiryDate: now.AddDate(0, 0, -1)}, now)
	require.Equal(t, 100, d.percent)
	require.Equal(t, pricing.Money(0), d.final)
	require.Equal(t, pricing.TierExpired, d.tier)
}

func TestPGStoreClockOverride(t *testing.T) {
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := PGStore{Now: func() time.Time { return fixed }}
	require.Equal(t, fixed, store.clock())

	// The zero value falls back to the wall clock.
	require.WithinDuration(t, time.Now(), PGStore{}.clock(), time.Minute)
}
