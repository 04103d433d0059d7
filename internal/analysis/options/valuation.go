// Package options derives per-contract valuation metrics from an
// accumulated call-options chain: premium, intrinsic/extrinsic value,
// break-even, and multiple-of-premium payoff targets. Everything here is
// pure computation over in-memory data; fetching is the provider's job.
package options

import (
	"math"

	"optionscope/pkg/models"
	"optionscope/pkg/utils"
)

// DiscardReason says why a contract was dropped during valuation.
// Diagnostics only — discards never fail the request.
type DiscardReason string

const (
	DiscardBadStrike DiscardReason = "bad_strike"
	DiscardNoPremium DiscardReason = "no_premium"
)

// Valuate derives valuation fields for one contract. fallbackTicker is used
// when the contract carries no ticker of its own. spot is the resolved
// underlying price, or 0 when unavailable — in that degraded mode intrinsic
// collapses to 0 for all strikes, which is documented behavior rather than
// an error. ok is false when the contract must be discarded.
func Valuate(c models.Contract, spot float64, fallbackTicker string) (models.ValuedContract, DiscardReason, bool) {
	strike, ok := utils.ParseNumber(c.StrikePrice)
	if !ok || strike <= 0 {
		return models.ValuedContract{}, DiscardBadStrike, false
	}

	premium, ok := derivePremium(c, strike)
	if !ok {
		return models.ValuedContract{}, DiscardNoPremium, false
	}

	breakEven, ok := utils.ParseNumber(c.BreakEvenPrice)
	if !ok {
		breakEven = strike + premium
	}

	intrinsic := math.Max(spot-strike, 0)
	extrinsic := math.Max(premium-intrinsic, 0)

	ticker := c.Ticker
	if ticker == "" {
		ticker = fallbackTicker
	}

	return models.ValuedContract{
		Ticker:     ticker,
		Strike:     strike,
		Expiration: c.ExpirationDate,
		Premium:    premium,
		Intrinsic:  intrinsic,
		Extrinsic:  extrinsic,
		BreakEven:  breakEven,
		Target2x:   strike + 2*premium,
		Target3x:   strike + 3*premium,
		Target4x:   strike + 4*premium,
	}, "", true
}

// derivePremium tries quote fields in a fixed order, a live two-sided quote
// always preferred over single-point estimates:
//
//	(bid+ask)/2 when BOTH sides parse → mid/mark → last trade → day close →
//	provider break-even − strike.
//
// A strategy succeeds only when it yields a finite, non-negative value;
// otherwise the next one is tried.
func derivePremium(c models.Contract, strike float64) (float64, bool) {
	if bid, ok := utils.ParseNumber(c.Bid); ok {
		if ask, ok := utils.ParseNumber(c.Ask); ok {
			if mid := (bid + ask) / 2; usable(mid) {
				return mid, true
			}
		}
	}

	for _, v := range []any{c.Mid, c.Mark, c.LastPrice, c.DayClose} {
		if p, ok := utils.ParseNumber(v); ok && usable(p) {
			return p, true
		}
	}

	if be, ok := utils.ParseNumber(c.BreakEvenPrice); ok {
		if p := be - strike; usable(p) {
			return p, true
		}
	}

	return 0, false
}

func usable(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}
