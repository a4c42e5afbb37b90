package scoring

import (
	"testing"

	"polymarket-scanner/pkg/types"
)

func TestComposeFlooredAtZero(t *testing.T) {
	t.Parallel()
	in := ConfidenceInput{
		Edge:       0,
		Scored:     Scored{Up: 1, Down: 1},
		ConflictTF: 2,          // -5
		CorrAdj:    0.75,       // -5
		Volatility: types.HighVol,
		Flow:       FlowAnalysis{Conflicts: true}, // -5
		Decay:      0.1,
		Regime:     types.Chop, // -3
	}
	c := Compose(in)
	// Negative components outweigh the high-vol 2 points; floor at 0.
	if c.Score != 0 {
		t.Errorf("score = %v, want 0 floor", c.Score)
	}
	if c.Tier != types.TierVeryLow {
		t.Errorf("tier = %v, want VERY_LOW", c.Tier)
	}
}

func TestComposeHighConfidenceStack(t *testing.T) {
	t.Parallel()
	in := ConfidenceInput{
		Edge:       0.10,
		Scored:     Scored{Up: 3, Down: 1},
		AlignedTF:  2,
		CorrAdj:    1.15,
		Volatility: types.LowVol,
		Flow: FlowAnalysis{
			Supports: true,
			Flow:     types.OrderFlow{Quality: types.FlowDeep},
		},
		Decay:  0.7,
		Regime: types.TrendUp,
		Side:   types.UP,
	}
	c := Compose(in)
	// 10 edge + 16 agreement + 10 confluence + 10 corr + 10 vol + 15 flow + 5 decay + 5 regime.
	if c.Score != 81 {
		t.Errorf("score = %v, want 81", c.Score)
	}
	if c.Tier != types.TierHigh {
		t.Errorf("tier = %v, want HIGH", c.Tier)
	}
	if c.Breakdown.Agreement != 16 {
		t.Errorf("agreement = %v, want 16 for a 3:1 vote", c.Breakdown.Agreement)
	}
}

func TestComposeEdgeCapped(t *testing.T) {
	t.Parallel()
	c := Compose(ConfidenceInput{Edge: 0.5, Scored: Scored{Up: 1, Down: 1}, CorrAdj: 1.0})
	if c.Breakdown.Edge != 20 {
		t.Errorf("edge points = %v, want capped at 20", c.Breakdown.Edge)
	}
}

func TestAgreementPoints(t *testing.T) {
	t.Parallel()
	if got := agreementPoints(Scored{Up: 13, Down: 1}); got != 20 {
		t.Errorf("13:1 vote = %v, want clamped 20", got)
	}
	if got := agreementPoints(Scored{Up: 1, Down: 1}); got != 0 {
		t.Errorf("tied vote = %v, want 0", got)
	}
	if got := agreementPoints(Scored{Degenerate: true}); got != 2 {
		t.Errorf("degenerate = %v, want token 2", got)
	}
	// Lopsided toward down counts the same as toward up.
	if agreementPoints(Scored{Up: 1, Down: 3}) != agreementPoints(Scored{Up: 3, Down: 1}) {
		t.Error("agreement should be symmetric in direction")
	}
}

func TestTierBoundaries(t *testing.T) {
	t.Parallel()
	cases := []struct {
		score float64
		want  types.ConfidenceTier
	}{
		{80, types.TierHigh},
		{79.9, types.TierMedium},
		{60, types.TierMedium},
		{59.9, types.TierLow},
		{40, types.TierLow},
		{39.9, types.TierVeryLow},
	}
	for _, tc := range cases {
		if got := Tier(tc.score); got != tc.want {
			t.Errorf("Tier(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
