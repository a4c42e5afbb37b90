package scoring

import (
	"math"
	"testing"

	"polymarket-scanner/pkg/types"
)

func fptr(v float64) *float64 { return &v }

type fixedWeights struct {
	feature string
	value   string
	weight  float64
}

func (f fixedWeights) Weight(_, feature, value string) float64 {
	if feature == f.feature && value == f.value {
		return f.weight
	}
	return 1.0
}

func TestScoreEmptySnapshot(t *testing.T) {
	t.Parallel()
	snap := types.IndicatorSnapshot{OBImbalance: 1.0}
	s := Score(snap, UnitWeights{}, "crypto")
	if s.RawUp != 0.5 {
		t.Errorf("rawUp = %v, want 0.5 with no votes", s.RawUp)
	}
	if s.Degenerate {
		t.Error("empty snapshot should not be degenerate without a pinned RSI")
	}
}

func TestScoreDegeneratePath(t *testing.T) {
	t.Parallel()
	snap := types.IndicatorSnapshot{
		RSI:         fptr(100),
		MACD:        &types.MACDResult{},
		OBImbalance: 2.0,
	}
	s := Score(snap, UnitWeights{}, "crypto")
	if !s.Degenerate {
		t.Fatal("pinned RSI + zero MACD should be degenerate")
	}
	// Only the imbalance votes, capped at +1: up=2, down=1.
	if s.Up != 2 || s.Down != 1 {
		t.Errorf("up/down = %v/%v, want 2/1", s.Up, s.Down)
	}

	snap.OBImbalance = 1.0
	s = Score(snap, UnitWeights{}, "crypto")
	if s.RawUp != 0.5 {
		t.Errorf("balanced degenerate rawUp = %v, want 0.5", s.RawUp)
	}
}

func TestScoreBullishStack(t *testing.T) {
	t.Parallel()
	snap := types.IndicatorSnapshot{
		LastClose:    0.60,
		VWAP:         0.55,
		VWAPSlope:    0.001,
		RSI:          fptr(62),
		RSISlope:     1.5,
		MACD:         &types.MACDResult{MACD: 0.002, Signal: 0.001, Hist: 0.001, HistDelta: 0.0005},
		HeikenColor:  types.HeikenGreen,
		HeikenStreak: 3,
		OBImbalance:  1.6,
	}
	s := Score(snap, UnitWeights{}, "crypto")
	// +2 vwap, +2 slope, +2 rsi, +2 macd expand, +1 macd sign, +1 heiken, +2 imbalance.
	if s.Up != 13 || s.Down != 1 {
		t.Errorf("up/down = %v/%v, want 13/1", s.Up, s.Down)
	}
	if got := 13.0 / 14.0; s.RawUp != got {
		t.Errorf("rawUp = %v, want %v", s.RawUp, got)
	}
}

func TestScoreFailedReclaimUnweighted(t *testing.T) {
	t.Parallel()
	snap := types.IndicatorSnapshot{
		LastClose:         0.50,
		VWAP:              0.55,
		FailedVWAPReclaim: true,
		OBImbalance:       1.0,
	}
	// A 1.5x weight on everything must not touch the structural break.
	weights := fixedWeights{feature: types.FeatVWAPPosition, value: "BELOW", weight: 1.5}
	s := Score(snap, weights, "crypto")
	if s.Down != 1+3+2*1.5 {
		t.Errorf("down = %v, want 1 + 3 reclaim + 3 weighted vwap", s.Down)
	}
}

func TestScoreAppliesLearnedWeight(t *testing.T) {
	t.Parallel()
	snap := types.IndicatorSnapshot{
		LastClose:   0.60,
		VWAP:        0.55,
		OBImbalance: 1.0,
	}
	weights := fixedWeights{feature: types.FeatVWAPPosition, value: "ABOVE", weight: 1.5}
	s := Score(snap, weights, "crypto")
	if s.Up != 1+2*1.5 {
		t.Errorf("up = %v, want 4 with a 1.5x vwap weight", s.Up)
	}
}

func TestTimeDecayAtExpiry(t *testing.T) {
	t.Parallel()
	p := TimeDecay(0.9, 0, 60)
	if p.Decay != 0 {
		t.Errorf("decay = %v, want 0 at expiry", p.Decay)
	}
	if p.AdjustedUp != 0.5 {
		t.Errorf("adjustedUp = %v, want 0.5 when fully decayed", p.AdjustedUp)
	}
}

func TestTimeDecayLinearInsideHorizon(t *testing.T) {
	t.Parallel()
	p := TimeDecay(0.7, 30, 60)
	if p.Decay != 0.5 {
		t.Errorf("decay = %v, want 0.5", p.Decay)
	}
	if math.Abs(p.AdjustedUp-0.6) > 1e-12 {
		t.Errorf("adjustedUp = %v, want 0.6", p.AdjustedUp)
	}
}

func TestTimeDecaySqrtBeyondHorizon(t *testing.T) {
	t.Parallel()
	p := TimeDecay(0.7, 720, 240)
	want := math.Sqrt(240.0 / 720.0)
	if math.Abs(p.Decay-want) > 1e-12 {
		t.Errorf("decay = %v, want sqrt(1/3) = %v", p.Decay, want)
	}
}

func TestTimeDecayProbabilitiesSumToOne(t *testing.T) {
	t.Parallel()
	for _, raw := range []float64{0.1, 0.5, 0.93} {
		p := TimeDecay(raw, 45, 60)
		if sum := p.AdjustedUp + p.AdjustedDown; math.Abs(sum-1) > 1e-12 {
			t.Errorf("rawUp %v: adjusted sum = %v, want 1", raw, sum)
		}
	}
}
