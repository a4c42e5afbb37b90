package scoring

import (
	"polymarket-scanner/pkg/types"
)

// ConfidenceInput gathers the eight sub-signals the composite score weighs.
type ConfidenceInput struct {
	Edge       float64 // best edge, signed fraction
	Scored     Scored  // vote totals for the agreement ratio
	AlignedTF  int     // timeframes agreeing with the signal side
	ConflictTF int     // timeframes disagreeing
	CorrAdj    float64 // correlation multiplier, 1.0 = neutral
	Volatility types.VolRegime
	Flow       FlowAnalysis
	Decay      float64
	Regime     types.Regime
	Side       types.Side
}

// Compose builds the eight-component additive confidence score. Components
// can go negative; the raw total is floored at 0 before clamping to [0, 100]
// (maxPoints is 100, so the raw total is already on the final scale).
func Compose(in ConfidenceInput) types.Confidence {
	b := types.ConfidenceBreakdown{
		Edge:        clamp(in.Edge*100, 0, 20),
		Agreement:   agreementPoints(in.Scored),
		Confluence:  confluencePoints(in.AlignedTF, in.ConflictTF),
		Correlation: correlationPoints(in.CorrAdj),
		Volatility:  volatilityPoints(in.Volatility),
		OrderFlow:   flowPoints(in.Flow),
		TimeDecay:   decayPoints(in.Decay),
		Regime:      regimePoints(in.Regime, in.Side),
	}

	raw := b.Edge + b.Agreement + b.Confluence + b.Correlation +
		b.Volatility + b.OrderFlow + b.TimeDecay + b.Regime
	if raw < 0 {
		raw = 0
	}
	score := clamp(raw, 0, 100)

	return types.Confidence{
		Score:     score,
		Tier:      Tier(score),
		Breakdown: b,
	}
}

// Tier buckets a 0–100 confidence score.
func Tier(score float64) types.ConfidenceTier {
	switch {
	case score >= 80:
		return types.TierHigh
	case score >= 60:
		return types.TierMedium
	case score >= 40:
		return types.TierLow
	default:
		return types.TierVeryLow
	}
}

// agreementPoints rewards a lopsided vote: clamp((major/minor − 1) × 8, 0, 20).
// A degenerate tick gets a token 2 points.
func agreementPoints(s Scored) float64 {
	if s.Degenerate {
		return 2
	}
	major, minor := s.Up, s.Down
	if minor > major {
		major, minor = minor, major
	}
	if minor == 0 {
		return 20
	}
	return clamp((major/minor-1)*8, 0, 20)
}

func confluencePoints(aligned, conflicting int) float64 {
	switch {
	case aligned >= 3:
		return 15
	case aligned >= 2:
		return 10
	case aligned >= 1:
		return 5
	case conflicting >= 2:
		return -5
	default:
		return 0
	}
}

func correlationPoints(adj float64) float64 {
	switch {
	case adj > 1.1:
		return 10
	case adj > 1.0:
		return 5
	case adj < 0.9:
		return -5
	case adj < 1.0:
		return -2
	default:
		return 0
	}
}

func volatilityPoints(v types.VolRegime) float64 {
	switch v {
	case types.LowVol:
		return 10
	case types.HighVol:
		return 2
	default:
		return 6
	}
}

func flowPoints(f FlowAnalysis) float64 {
	switch {
	case f.Supports && f.Flow.Quality == types.FlowDeep:
		return 15
	case f.Flow.AlignedScore > 30:
		return 12
	case f.Supports:
		return 8
	case f.Conflicts:
		return -5
	default:
		return 0
	}
}

func decayPoints(decay float64) float64 {
	switch {
	case decay >= 0.6 && decay <= 0.9:
		return 5
	case decay >= 0.4:
		return 3
	case decay >= 0.2:
		return 1
	default:
		return 0
	}
}

func regimePoints(r types.Regime, side types.Side) float64 {
	switch r {
	case types.TrendUp:
		if side == types.UP {
			return 5
		}
	case types.TrendDown:
		if side == types.DOWN {
			return 5
		}
	case types.Range:
		return 2
	case types.Chop:
		return -3
	}
	return 0
}
