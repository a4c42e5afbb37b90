package scoring

import (
	"testing"

	"polymarket-scanner/pkg/types"
)

func levels(pairs ...string) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, types.PriceLevel{Price: pairs[i], Size: pairs[i+1]})
	}
	return out
}

func TestAnalyzeFlowSupportsUp(t *testing.T) {
	t.Parallel()
	yes := &types.BookSnapshot{
		Bids: levels("0.50", "2000"),
		Asks: levels("0.52", "100"),
	}
	no := &types.BookSnapshot{
		Bids: levels("0.48", "100"),
		Asks: levels("0.50", "2000"),
	}
	f := AnalyzeFlow(yes, no, types.UP)
	if f.Flow.Pressure <= 0 {
		t.Errorf("pressure = %v, want positive with bid-heavy YES book", f.Flow.Pressure)
	}
	if !f.Supports || f.Conflicts {
		t.Errorf("supports/conflicts = %v/%v, want true/false", f.Supports, f.Conflicts)
	}
	if f.Flow.AlignedScore <= 30 {
		t.Errorf("alignedScore = %v, want > 30 for a heavy lean", f.Flow.AlignedScore)
	}
}

func TestAnalyzeFlowSideFlipsVerdict(t *testing.T) {
	t.Parallel()
	yes := &types.BookSnapshot{
		Bids: levels("0.50", "2000"),
		Asks: levels("0.52", "100"),
	}
	f := AnalyzeFlow(yes, nil, types.DOWN)
	if !f.Conflicts || f.Supports {
		t.Errorf("supports/conflicts = %v/%v, want false/true for DOWN against bid pressure",
			f.Supports, f.Conflicts)
	}
	// Pressure itself stays in UP terms regardless of side.
	if f.Flow.Pressure <= 0 {
		t.Errorf("pressure = %v, want positive", f.Flow.Pressure)
	}
}

func TestAnalyzeFlowEmptyBooks(t *testing.T) {
	t.Parallel()
	f := AnalyzeFlow(nil, nil, types.UP)
	if f.Flow.Pressure != 0 || f.Supports || f.Conflicts {
		t.Errorf("empty books = %+v, want neutral", f)
	}
	if f.Flow.Quality != types.FlowThin {
		t.Errorf("quality = %v, want THIN", f.Flow.Quality)
	}
	if f.Flow.SpreadQual != "EMPTY" {
		t.Errorf("spread = %v, want EMPTY", f.Flow.SpreadQual)
	}
}

func TestAnalyzeFlowCountsWalls(t *testing.T) {
	t.Parallel()
	// One 1000-notional bid among three ~5s: avg ~254, wall bar ~761.
	yes := &types.BookSnapshot{
		Bids: levels("0.50", "2000", "0.49", "10", "0.48", "10", "0.47", "10"),
		Asks: levels("0.52", "10", "0.53", "10"),
	}
	f := AnalyzeFlow(yes, nil, types.UP)
	if f.Flow.BidWalls != 1 {
		t.Errorf("bidWalls = %d, want 1", f.Flow.BidWalls)
	}
	if f.Flow.AskWalls != 0 {
		t.Errorf("askWalls = %d, want 0 for even ask levels", f.Flow.AskWalls)
	}
}

func TestClassifyDepthAndSpread(t *testing.T) {
	t.Parallel()
	deep := &types.BookSnapshot{
		Bids: levels("0.50", "8000"),
		Asks: levels("0.51", "8000"),
	}
	f := AnalyzeFlow(deep, nil, types.UP)
	if f.Flow.Quality != types.FlowDeep {
		t.Errorf("quality = %v, want DEEP", f.Flow.Quality)
	}
	if f.Flow.SpreadQual != "TIGHT" {
		t.Errorf("spread = %v, want TIGHT at 0.01", f.Flow.SpreadQual)
	}

	moderate := &types.BookSnapshot{
		Bids: levels("0.50", "800"),
		Asks: levels("0.56", "800"),
	}
	f = AnalyzeFlow(moderate, nil, types.UP)
	if f.Flow.Quality != types.FlowModerate {
		t.Errorf("quality = %v, want MODERATE", f.Flow.Quality)
	}
	if f.Flow.SpreadQual != "WIDE" {
		t.Errorf("spread = %v, want WIDE at 0.06", f.Flow.SpreadQual)
	}
}
