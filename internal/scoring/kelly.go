package scoring

import (
	"polymarket-scanner/pkg/types"
)

// Kelly sizing constants. The fractional factor keeps a quarter-Kelly base,
// further scaled down by confidence tier, and the final bet is capped at 5%
// of bankroll regardless of how attractive the math looks.
const (
	kellyFraction = 0.25
	maxBetPct     = 0.05
)

// tierScale maps confidence tiers to the share of the Kelly fraction used.
func tierScale(tier types.ConfidenceTier) (float64, string) {
	switch tier {
	case types.TierHigh:
		return 1.0, "FULL"
	case types.TierMedium:
		return 0.7, "SCALED"
	case types.TierLow:
		return 0.4, "REDUCED"
	default:
		return 0.2, "MINIMAL"
	}
}

// Size computes fractional Kelly for a binary market entry at marketPrice
// with model win probability p:
//
//	b    = (1/price) − 1      (net odds)
//	full = (p·b − q) / b      (full Kelly, q = 1−p)
//	bet  = clamp(full × 0.25 × tierScale, 0, 0.05)
//
// A non-positive full Kelly or an unpriceable market sizes to zero.
func Size(modelProb, marketPrice float64, tier types.ConfidenceTier) types.Kelly {
	scale, name := tierScale(tier)
	k := types.Kelly{Tier: name}

	if marketPrice <= 0 || marketPrice >= 1 {
		return k
	}

	b := 1/marketPrice - 1
	k.Odds = b

	q := 1 - modelProb
	full := (modelProb*b - q) / b
	k.Full = full

	if full <= 0 {
		return k
	}
	k.BetPct = clamp(full*kellyFraction*scale, 0, maxBetPct)
	return k
}
