package pricing

import (
	"errors"
	"testing"
	"time"
)

func TestFinalPriceScenarios(t *testing.T) {
	cases := []struct {
		original Money
		percent  int
		want     Money
	}{
		{150, 60, 60},
		{85, 40, 51},
		{100, 0, 100},
		{100, 100, 0},
		{99, 10, 89}, // 89.1 rounds down
		{95, 10, 86}, // 85.5 rounds half-up
		{0, 60, 0},
	}
	for _, c := range cases {
		got, err := FinalPrice(c.original, c.percent)
		if err != nil {
			t.Fatalf("FinalPrice(%d, %d): %v", c.original, c.percent, err)
		}
		if got != c.want {
			t.Fatalf("FinalPrice(%d, %d) = %d, want %d", c.original, c.percent, got, c.want)
		}
	}
}

func TestFinalPriceInvalidInput(t *testing.T) {
	if _, err := FinalPrice(-1, 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative price: got %v, want ErrInvalidInput", err)
	}
	if _, err := FinalPrice(100, -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("percent -1: got %v, want ErrInvalidInput", err)
	}
	if _, err := FinalPrice(100, 101); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("percent 101: got %v, want ErrInvalidInput", err)
	}
}

func TestFinalPriceNeverExceedsOriginal(t *testing.T) {
	for percent := 0; percent <= 100; percent++ {
		for _, original := range []Money{0, 1, 9, 10, 99, 150, 999, 12345} {
			got, err := FinalPrice(original, percent)
			if err != nil {
				t.Fatalf("FinalPrice(%d, %d): %v", original, percent, err)
			}
			if got > original {
				t.Fatalf("FinalPrice(%d, %d) = %d exceeds original", original, percent, got)
			}
			if percent == 0 && got != original {
				t.Fatalf("FinalPrice(%d, 0) = %d, want original", original, got)
			}
			if percent > 0 && original >= 100 && got == original {
				t.Fatalf("FinalPrice(%d, %d) = original, want a real discount", original, percent)
			}
		}
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		expiry time.Time
		want   int
	}{
		{now.Add(5 * 24 * time.Hour), 5},
		{now.Add(5*24*time.Hour + time.Hour), 5},
		{now.Add(23 * time.Hour), 0},
		{now, 0},
		{now.Add(-time.Hour), -1},
		{now.Add(-25 * time.Hour), -2},
	}
	for _, c := range cases {
		if got := DaysUntilExpiry(now, c.expiry); got != c.want {
			t.Fatalf("DaysUntilExpiry(now, %v) = %d, want %d", c.expiry, got, c.want)
		}
	}
}
