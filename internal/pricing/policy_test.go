package pricing

import "testing"

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		daysLeft int
		percent  int
		tier     Tier
	}{
		{0, 60, TierHot},
		{5, 60, TierHot},
		{7, 60, TierHot},
		{8, 40, TierGood},
		{14, 40, TierGood},
		{15, 20, TierGood},
		{30, 20, TierGood},
		{31, 10, TierFair},
		{365, 10, TierFair},
	}
	for _, c := range cases {
		got := Classify(c.daysLeft)
		if got.Percent != c.percent || got.Tier != c.tier {
			t.Fatalf("Classify(%d) = %d%%/%s, want %d%%/%s", c.daysLeft, got.Percent, got.Tier, c.percent, c.tier)
		}
	}
}

func TestClassifyExpired(t *testing.T) {
	got := Classify(-1)
	if got.Tier != TierExpired {
		t.Fatalf("Classify(-1) tier = %s, want %s", got.Tier, TierExpired)
	}
	if got.Percent != 0 {
		t.Fatalf("Classify(-1) percent = %d, want 0", got.Percent)
	}
}

func TestClassifyMonotonic(t *testing.T) {
	prev := Classify(0).Percent
	for days := 1; days <= 400; days++ {
		cur := Classify(days).Percent
		if cur > prev {
			t.Fatalf("discount grew from %d%% to %d%% at %d days left", prev, cur, days)
		}
		prev = cur
	}
}

func TestClassifyIdempotent(t *testing.T) {
	for _, days := range []int{-3, 0, 7, 8, 14, 30, 31} {
		if Classify(days) != Classify(days) {
			t.Fatalf("Classify(%d) not deterministic", days)
		}
	}
}
