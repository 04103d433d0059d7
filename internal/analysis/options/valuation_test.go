package options

import (
	"math"
	"testing"

	"optionscope/pkg/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestValuateWorkedExample(t *testing.T) {
	c := models.Contract{
		Ticker:         "O:AAPL260220C00100000",
		ExpirationDate: "2026-02-20",
		StrikePrice:    100.0,
		Bid:            5.0,
		Ask:            7.0,
	}
	vc, _, ok := Valuate(c, 102.5, "AAPL")
	if !ok {
		t.Fatal("expected contract to be valued")
	}
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"premium", vc.Premium, 6.0},
		{"intrinsic", vc.Intrinsic, 2.5},
		{"extrinsic", vc.Extrinsic, 3.5},
		{"breakEven", vc.BreakEven, 106.0},
		{"target2x", vc.Target2x, 112.0},
		{"target3x", vc.Target3x, 118.0},
		{"target4x", vc.Target4x, 124.0},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if vc.Ticker != "O:AAPL260220C00100000" {
		t.Errorf("ticker = %q", vc.Ticker)
	}
}

func TestValuatePremiumLadder(t *testing.T) {
	tests := []struct {
		name    string
		c       models.Contract
		premium float64
	}{
		{
			name:    "bid and ask midpoint wins",
			c:       models.Contract{StrikePrice: 100.0, Bid: 4.0, Ask: 6.0, LastPrice: 9.0},
			premium: 5.0,
		},
		{
			name:    "bid alone is not enough, falls to mid",
			c:       models.Contract{StrikePrice: 100.0, Bid: 4.0, Mid: 5.5},
			premium: 5.5,
		},
		{
			name:    "unparsable bid skips the quote pair",
			c:       models.Contract{StrikePrice: 100.0, Bid: "N/A", Ask: 6.0, Mark: 5.25},
			premium: 5.25,
		},
		{
			name:    "mark after mid",
			c:       models.Contract{StrikePrice: 100.0, Mark: 3.0},
			premium: 3.0,
		},
		{
			name:    "last trade after mark",
			c:       models.Contract{StrikePrice: 100.0, LastPrice: 2.75},
			premium: 2.75,
		},
		{
			name:    "day close after last trade",
			c:       models.Contract{StrikePrice: 100.0, DayClose: 2.5},
			premium: 2.5,
		},
		{
			name:    "break-even minus strike is the last resort",
			c:       models.Contract{StrikePrice: 100.0, BreakEvenPrice: 106.0},
			premium: 6.0,
		},
		{
			name:    "negative midpoint falls through to next candidate",
			c:       models.Contract{StrikePrice: 100.0, Bid: -8.0, Ask: 2.0, LastPrice: 1.5},
			premium: 1.5,
		},
		{
			name:    "numeric strings are coerced",
			c:       models.Contract{StrikePrice: "100", Bid: "$5.00", Ask: "7"},
			premium: 6.0,
		},
		{
			name:    "zero premium is usable",
			c:       models.Contract{StrikePrice: 100.0, LastPrice: 0.0},
			premium: 0.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc, reason, ok := Valuate(tt.c, 0, "AAPL")
			if !ok {
				t.Fatalf("discarded (%s), want premium %v", reason, tt.premium)
			}
			if !almostEqual(vc.Premium, tt.premium) {
				t.Errorf("premium = %v, want %v", vc.Premium, tt.premium)
			}
		})
	}
}

func TestValuateDiscards(t *testing.T) {
	tests := []struct {
		name   string
		c      models.Contract
		reason DiscardReason
	}{
		{"missing strike", models.Contract{Bid: 5.0, Ask: 7.0}, DiscardBadStrike},
		{"unparsable strike", models.Contract{StrikePrice: "N/A", Bid: 5.0, Ask: 7.0}, DiscardBadStrike},
		{"zero strike", models.Contract{StrikePrice: 0.0, Bid: 5.0, Ask: 7.0}, DiscardBadStrike},
		{"no premium candidates", models.Contract{StrikePrice: 100.0}, DiscardNoPremium},
		{"all candidates unparsable", models.Contract{StrikePrice: 100.0, Bid: "-", LastPrice: "N/A"}, DiscardNoPremium},
		{"negative break-even premium", models.Contract{StrikePrice: 100.0, BreakEvenPrice: 90.0}, DiscardNoPremium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason, ok := Valuate(tt.c, 100, "AAPL")
			if ok {
				t.Fatal("expected discard")
			}
			if reason != tt.reason {
				t.Errorf("reason = %s, want %s", reason, tt.reason)
			}
		})
	}
}

func TestValuateDegradedWithoutSpot(t *testing.T) {
	c := models.Contract{StrikePrice: 100.0, Bid: 5.0, Ask: 7.0}
	vc, _, ok := Valuate(c, 0, "AAPL")
	if !ok {
		t.Fatal("expected contract to be valued")
	}
	if vc.Intrinsic != 0 {
		t.Errorf("intrinsic = %v, want 0 without spot", vc.Intrinsic)
	}
	if !almostEqual(vc.Extrinsic, 6.0) {
		t.Errorf("extrinsic = %v, want full premium", vc.Extrinsic)
	}
}

func TestValuatePrefersProviderBreakEven(t *testing.T) {
	c := models.Contract{StrikePrice: 100.0, Bid: 5.0, Ask: 7.0, BreakEvenPrice: 105.9}
	vc, _, ok := Valuate(c, 102.5, "AAPL")
	if !ok {
		t.Fatal("expected contract to be valued")
	}
	if !almostEqual(vc.BreakEven, 105.9) {
		t.Errorf("breakEven = %v, want provider value 105.9", vc.BreakEven)
	}
	if !almostEqual(vc.Premium, 6.0) {
		t.Errorf("premium = %v, want quote midpoint 6", vc.Premium)
	}
}

func TestValuateFallbackTicker(t *testing.T) {
	c := models.Contract{StrikePrice: 100.0, LastPrice: 1.0}
	vc, _, ok := Valuate(c, 0, "AAPL")
	if !ok {
		t.Fatal("expected contract to be valued")
	}
	if vc.Ticker != "AAPL" {
		t.Errorf("ticker = %q, want fallback AAPL", vc.Ticker)
	}
}
