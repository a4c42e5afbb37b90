package scoring

import (
	"testing"

	"polymarket-scanner/pkg/types"
)

func baseInput(edgeUp float64) DecisionInput {
	return DecisionInput{
		Edges:          types.Edges{Up: edgeUp},
		BaseThreshold:  0.05,
		VolMultiplier:  1.0,
		ConfluenceMult: 1.0,
		Regime:         types.Range,
		RemainingMins:  45,
		Horizon:        60,
	}
}

func TestDecideEnterAboveThreshold(t *testing.T) {
	t.Parallel()
	if rec := Decide(baseInput(0.06)); rec.Action != types.ENTER || rec.Side != types.UP {
		t.Errorf("rec = %+v, want ENTER UP", rec)
	}
	if rec := Decide(baseInput(0.04)); rec.Action != types.PASS {
		t.Errorf("rec = %+v, want PASS below threshold", rec)
	}
}

func TestDecideChopVeto(t *testing.T) {
	t.Parallel()
	in := baseInput(0.079)
	in.Regime = types.Chop
	if rec := Decide(in); rec.Action != types.PASS {
		t.Errorf("chop edge below floor = %v, want PASS", rec.Action)
	}

	// Above the chop floor and the 1.5x-tightened threshold.
	in.Edges.Up = 0.09
	if rec := Decide(in); rec.Action != types.ENTER {
		t.Errorf("chop edge 0.09 = %v, want ENTER", rec.Action)
	}
}

func TestDecideTrendRelaxesAlignedSide(t *testing.T) {
	t.Parallel()
	in := baseInput(0.045)
	if rec := Decide(in); rec.Action != types.PASS {
		t.Fatalf("range edge 0.045 = %v, want PASS", rec.Action)
	}

	in.Regime = types.TrendUp
	if rec := Decide(in); rec.Action != types.ENTER {
		t.Errorf("aligned uptrend edge 0.045 = %v, want ENTER at relaxed bar", rec.Action)
	}

	// Trend against the side gets no relaxation.
	in.Regime = types.TrendDown
	if rec := Decide(in); rec.Action != types.PASS {
		t.Errorf("counter-trend edge 0.045 = %v, want PASS", rec.Action)
	}
}

func TestDecideConfluenceDividesThreshold(t *testing.T) {
	t.Parallel()
	in := baseInput(0.04)
	in.ConfluenceMult = 1.3
	if rec := Decide(in); rec.Action != types.ENTER {
		t.Errorf("confluence 1.3 edge 0.04 = %v, want ENTER", rec.Action)
	}

	// Sub-1 confluence must never loosen the bar.
	in.ConfluenceMult = 0.5
	in.Edges.Up = 0.049
	if rec := Decide(in); rec.Action != types.PASS {
		t.Errorf("confluence 0.5 edge 0.049 = %v, want PASS", rec.Action)
	}
}

func TestDecideVolatilityScalesThreshold(t *testing.T) {
	t.Parallel()
	in := baseInput(0.06)
	in.VolMultiplier = 1.5
	if rec := Decide(in); rec.Action != types.PASS {
		t.Errorf("high-vol edge 0.06 = %v, want PASS at 0.075 bar", rec.Action)
	}
	in.VolMultiplier = 0.8
	in.Edges.Up = 0.045
	if rec := Decide(in); rec.Action != types.ENTER {
		t.Errorf("low-vol edge 0.045 = %v, want ENTER at 0.04 bar", rec.Action)
	}
}

func TestClassifyStrength(t *testing.T) {
	t.Parallel()
	cases := []struct {
		edge      float64
		remaining float64
		want      types.Strength
	}{
		{0.13, 45, types.StrengthStrong},
		{0.09, 45, types.StrengthGood},
		{0.05, 45, types.StrengthWeak},
		// Short-dated markets scale both bars by 0.8.
		{0.10, 10, types.StrengthStrong},
		{0.07, 10, types.StrengthGood},
	}
	for _, tc := range cases {
		if got := classifyStrength(tc.edge, tc.remaining); got != tc.want {
			t.Errorf("classifyStrength(%v, %v) = %v, want %v", tc.edge, tc.remaining, got, tc.want)
		}
	}
}

func TestClassifyPhase(t *testing.T) {
	t.Parallel()
	if got := classifyPhase(48, 60); got != types.PhaseEarly {
		t.Errorf("ratio 0.8 = %v, want EARLY", got)
	}
	if got := classifyPhase(30, 60); got != types.PhaseMid {
		t.Errorf("ratio 0.5 = %v, want MID", got)
	}
	if got := classifyPhase(12, 60); got != types.PhaseLate {
		t.Errorf("ratio 0.2 = %v, want LATE", got)
	}
	if got := classifyPhase(100, 0); got != types.PhaseLate {
		t.Errorf("zero horizon = %v, want LATE", got)
	}
}
