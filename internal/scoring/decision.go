package scoring

import (
	"polymarket-scanner/pkg/types"
)

// Edge classification thresholds. A GOOD signal needs ~1.6× the default
// base edge threshold; short-dated markets get a 20% easier bar because
// edges compress as settlement approaches.
const (
	strongEdge      = 0.12
	goodEdge        = 0.08
	shortDatedMins  = 15
	shortDatedScale = 0.8
	chopVetoEdge    = 0.08
	chopTighten     = 1.5
	trendRelax      = 0.85
)

// DecisionInput carries everything the entry decision needs.
type DecisionInput struct {
	Edges          types.Edges
	BaseThreshold  float64      // from config, e.g. 0.05
	VolMultiplier  float64      // 0.8 low vol / 1.0 normal / 1.5 high
	ConfluenceMult float64      // ≥ 1.0; divides the threshold when TFs agree
	Regime         types.Regime // gate input
	RemainingMins  float64
	Horizon        float64
}

// Decide picks the larger-edge side and compares it to the effective
// threshold:
//
//	threshold = base × volMultiplier / confluenceMult
//
// with regime gates on top: CHOP tightens the threshold by 1.5× and vetoes
// anything under the chop floor; a trend aligned with the signal side
// relaxes it.
func Decide(in DecisionInput) types.Recommendation {
	best, side := in.Edges.Best()

	rec := types.Recommendation{
		Action:   types.PASS,
		Side:     side,
		Strength: classifyStrength(best, in.RemainingMins),
		Phase:    classifyPhase(in.RemainingMins, in.Horizon),
	}

	confluence := in.ConfluenceMult
	if confluence < 1 {
		confluence = 1
	}
	threshold := in.BaseThreshold * in.VolMultiplier / confluence

	switch in.Regime {
	case types.Chop:
		threshold *= chopTighten
		if best < chopVetoEdge {
			return rec
		}
	case types.TrendUp:
		if side == types.UP {
			threshold *= trendRelax
		}
	case types.TrendDown:
		if side == types.DOWN {
			threshold *= trendRelax
		}
	}

	if best >= threshold {
		rec.Action = types.ENTER
	}
	return rec
}

func classifyStrength(edge, remainingMins float64) types.Strength {
	strong, good := strongEdge, goodEdge
	if remainingMins < shortDatedMins {
		strong *= shortDatedScale
		good *= shortDatedScale
	}
	switch {
	case edge >= strong:
		return types.StrengthStrong
	case edge >= good:
		return types.StrengthGood
	default:
		return types.StrengthWeak
	}
}

// classifyPhase encodes where in the indicator window the signal fires.
// Markets settling beyond the horizon are always EARLY.
func classifyPhase(remainingMins, horizon float64) types.Phase {
	if horizon <= 0 {
		return types.PhaseLate
	}
	ratio := remainingMins / horizon
	switch {
	case ratio > 0.66:
		return types.PhaseEarly
	case ratio > 0.33:
		return types.PhaseMid
	default:
		return types.PhaseLate
	}
}
