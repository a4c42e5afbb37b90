package regime

import (
	"polymarket-scanner/pkg/types"
)

// ATR% thresholds per market class. Crypto spot prices move on a much
// tighter percentage scale than 0–1 outcome token prices, so the bands
// differ by an order of magnitude.
const (
	cryptoLowATRPct  = 0.05
	cryptoHighATRPct = 0.3

	clobLowATRPct  = 0.5
	clobHighATRPct = 3.0
)

// ClassifyVol buckets ATR% into a volatility regime and returns the edge
// threshold multiplier: low vol markets get an easier bar (0.8×), high vol
// a harder one (1.5×).
func ClassifyVol(atrPct float64, crypto bool) (types.VolRegime, float64) {
	low, high := clobLowATRPct, clobHighATRPct
	if crypto {
		low, high = cryptoLowATRPct, cryptoHighATRPct
	}
	switch {
	case atrPct < low:
		return types.LowVol, 0.8
	case atrPct > high:
		return types.HighVol, 1.5
	default:
		return types.NormalVol, 1.0
	}
}
