package pricing

import "time"

const day = 24 * time.Hour

// DaysUntilExpiry returns the whole number of days between now and expiry,
// rounding toward negative infinity. The result is negative once the expiry
// instant has passed; callers decide how to treat expired items.
func DaysUntilExpiry(now, expiry time.Time) int {
	d := expiry.Sub(now)
	days := d / day
	if d < 0 && d%day != 0 {
		days--
	}
	return int(days)
}
