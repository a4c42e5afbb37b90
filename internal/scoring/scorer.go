// Package scoring turns an indicator snapshot into a directional forecast,
// compares it to market prices, and composes the confidence and bet sizing
// attached to each tick.
//
// The pipeline is: Score (weighted indicator vote) → TimeDecay (settlement
// awareness) → Decide (edge vs threshold with regime/volatility gates) →
// Compose (confidence) → Size (fractional Kelly).
package scoring

import (
	"math"

	"polymarket-scanner/pkg/types"
)

// WeightSource supplies per-indicator-state multipliers, looked up by
// (category, feature, discretized state). Implementations must return
// values in [0.5, 1.5]; 1.0 means neutral.
type WeightSource interface {
	Weight(category, feature, value string) float64
}

// UnitWeights is the no-learning fallback: every lookup returns 1.0.
type UnitWeights struct{}

func (UnitWeights) Weight(_, _, _ string) float64 { return 1.0 }

// Scored is the raw directional vote before time awareness.
type Scored struct {
	Up         float64 // accumulated up-vote mass (starts at 1)
	Down       float64 // accumulated down-vote mass (starts at 1)
	RawUp      float64 // Up / (Up + Down)
	Degenerate bool    // RSI pinned and MACD triple-zero
}

// Score runs the weighted indicator vote. Both sides start at 1.0 so an
// empty snapshot scores 0.5. Weights scale each contribution by the learned
// multiplier for the feature's current state.
//
// When RSI is pinned (≥99 or ≤1) and MACD is exactly zero the price series
// carries no momentum information: all trend/momentum terms are skipped and
// only a strong orderbook imbalance votes, capped at ±1.
func Score(snap types.IndicatorSnapshot, weights WeightSource, category string) Scored {
	up, down := 1.0, 1.0

	degenerate := snap.RSIDegenerate() && snap.MACD != nil && snap.MACD.Degenerate()
	if degenerate {
		if snap.OBImbalance > 1.5 {
			up++
		} else if snap.OBImbalance < 0.67 {
			down++
		}
		return Scored{Up: up, Down: down, RawUp: up / (up + down), Degenerate: true}
	}

	w := func(feature, value string) float64 { return weights.Weight(category, feature, value) }

	// Price vs VWAP
	if snap.LastClose > snap.VWAP {
		up += 2 * w(types.FeatVWAPPosition, "ABOVE")
	} else if snap.LastClose < snap.VWAP {
		down += 2 * w(types.FeatVWAPPosition, "BELOW")
	}

	// VWAP slope
	if snap.VWAPSlope > 0 {
		up += 2 * w(types.FeatVWAPSlope, "UP")
	} else if snap.VWAPSlope < 0 {
		down += 2 * w(types.FeatVWAPSlope, "DOWN")
	}

	// RSI with slope confirmation
	if snap.RSI != nil {
		zone := types.ClassifyRSIZone(*snap.RSI)
		if *snap.RSI > 55 && snap.RSISlope > 0 {
			up += 2 * w(types.FeatRSIZone, zone)
		} else if *snap.RSI < 45 && snap.RSISlope < 0 {
			down += 2 * w(types.FeatRSIZone, zone)
		}
	}

	// MACD histogram expansion, then sign
	if snap.MACD != nil {
		state := types.ClassifyMACDState(*snap.MACD)
		if snap.MACD.Hist > 0 && snap.MACD.HistDelta > 0 {
			up += 2 * w(types.FeatMACDState, state)
		} else if snap.MACD.Hist < 0 && snap.MACD.HistDelta < 0 {
			down += 2 * w(types.FeatMACDState, state)
		}
		if snap.MACD.MACD > 0 {
			up += w(types.FeatMACDState, state)
		} else if snap.MACD.MACD < 0 {
			down += w(types.FeatMACDState, state)
		}
	}

	// Heiken-Ashi streak
	if snap.HeikenStreak >= 2 {
		if snap.HeikenColor == types.HeikenGreen {
			up += w(types.FeatHeikenColor, string(types.HeikenGreen))
		} else {
			down += w(types.FeatHeikenColor, string(types.HeikenRed))
		}
	}

	// Failed VWAP reclaim is a bearish structure break, unweighted.
	if snap.FailedVWAPReclaim {
		down += 3
	}

	// Orderbook imbalance
	zone := types.ClassifyOBZone(snap.OBImbalance)
	switch {
	case snap.OBImbalance > 1.5:
		up += 2 * w(types.FeatOBZone, zone)
	case snap.OBImbalance > 1.2:
		up += w(types.FeatOBZone, zone)
	case snap.OBImbalance < 0.67:
		down += 2 * w(types.FeatOBZone, zone)
	case snap.OBImbalance < 0.83:
		down += w(types.FeatOBZone, zone)
	}

	return Scored{Up: up, Down: down, RawUp: up / (up + down)}
}

// TimeDecay shrinks the forecast toward 0.5 based on how the indicator
// horizon H relates to the minutes remaining until settlement:
//
//	remaining ≤ H: decay = remaining/H      (linear shrink to expiry)
//	remaining > H: decay = sqrt(H/remaining) (gradual loss of relevance)
//
// adjustedUp = clamp(0.5 + (rawUp − 0.5) × decay, 0, 1).
func TimeDecay(rawUp, remainingMins, horizon float64) types.Probabilities {
	var decay float64
	switch {
	case horizon <= 0:
		decay = 0
	case remainingMins <= horizon:
		decay = remainingMins / horizon
	default:
		decay = math.Sqrt(horizon / remainingMins)
	}

	adjUp := clamp(0.5+(rawUp-0.5)*decay, 0, 1)
	return types.Probabilities{
		RawUp:        rawUp,
		AdjustedUp:   adjUp,
		AdjustedDown: 1 - adjUp,
		Decay:        decay,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
