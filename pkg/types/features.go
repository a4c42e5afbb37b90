package types

// Classified feature states. These discretizations are the join key between
// persisted signals and the weight learner: the scorer looks up multipliers
// by (feature, state) and the store persists the same states alongside each
// signal so outcomes can be grouped per state.

// Feature names used as weight-map keys.
const (
	FeatVWAPPosition = "vwap_position"
	FeatVWAPSlope    = "vwap_slope_dir"
	FeatRSIZone      = "rsi_zone"
	FeatMACDState    = "macd_state"
	FeatHeikenColor  = "heiken_color"
	FeatOBZone       = "ob_zone"
	FeatVolRegime    = "vol_regime"
)

// ClassifyVWAPPosition discretizes price relative to VWAP.
func ClassifyVWAPPosition(price, vwap float64) string {
	switch {
	case price > vwap:
		return "ABOVE"
	case price < vwap:
		return "BELOW"
	default:
		return "AT"
	}
}

// ClassifyVWAPSlope discretizes the VWAP slope sign.
func ClassifyVWAPSlope(slope float64) string {
	switch {
	case slope > 0:
		return "UP"
	case slope < 0:
		return "DOWN"
	default:
		return "FLAT"
	}
}

// ClassifyRSIZone discretizes an RSI reading into five zones.
func ClassifyRSIZone(rsi float64) string {
	switch {
	case rsi < 30:
		return "OVERSOLD"
	case rsi < 45:
		return "BEARISH"
	case rsi <= 55:
		return "NEUTRAL"
	case rsi <= 70:
		return "BULLISH"
	default:
		return "OVERBOUGHT"
	}
}

// ClassifyMACDState discretizes the MACD histogram and its delta.
func ClassifyMACDState(m MACDResult) string {
	if m.Degenerate() {
		return "ZERO"
	}
	switch {
	case m.Hist > 0 && m.HistDelta > 0:
		return "EXPANDING_GREEN"
	case m.Hist > 0:
		return "FADING_GREEN"
	case m.Hist < 0 && m.HistDelta < 0:
		return "EXPANDING_RED"
	case m.Hist < 0:
		return "FADING_RED"
	default:
		return "ZERO"
	}
}

// ClassifyOBZone discretizes the bid/ask liquidity imbalance ratio.
// Thresholds mirror the scorer's contribution levels.
func ClassifyOBZone(imbalance float64) string {
	switch {
	case imbalance > 1.5:
		return "STRONG_BID"
	case imbalance > 1.2:
		return "BID"
	case imbalance < 0.67:
		return "STRONG_ASK"
	case imbalance < 0.83:
		return "ASK"
	default:
		return "BALANCED"
	}
}
