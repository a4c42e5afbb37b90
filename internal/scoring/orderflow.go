package scoring

import (
	"github.com/shopspring/decimal"

	"polymarket-scanner/internal/indicator"
	"polymarket-scanner/pkg/types"
)

// Flow depth thresholds (USD notional across both books).
const (
	deepLiquidity     = 5000.0
	moderateLiquidity = 500.0
	wallMultiple      = 3.0 // a level this many times the average is a wall
	flowSupportsBand  = 10.0
)

// FlowAnalysis is the orderflow result plus the support/conflict verdict
// the confidence composer consumes.
type FlowAnalysis struct {
	Flow      types.OrderFlow
	Supports  bool // depth leans with the signal side
	Conflicts bool // depth leans against it
}

// AnalyzeFlow inspects both outcome books relative to the provisional side.
// Pressure is the average of the YES book's bid-vs-ask lean and the NO
// book's inverted lean, scaled to [-100, 100]; positive favors UP.
func AnalyzeFlow(yesBook, noBook *types.BookSnapshot, side types.Side) FlowAnalysis {
	yes := indicator.SummarizeDepth(yesBook)
	no := indicator.SummarizeDepth(noBook)

	pressure := (lean(yes.BidLiquidity, yes.AskLiquidity) + lean(no.AskLiquidity, no.BidLiquidity)) / 2 * 100

	toward := pressure
	if side == types.DOWN {
		toward = -pressure
	}

	flow := types.OrderFlow{
		Pressure:     pressure,
		BidWalls:     countWalls(yesBook, true),
		AskWalls:     countWalls(yesBook, false),
		Quality:      classifyDepth(yes, no),
		SpreadQual:   classifySpread(yes),
		AlignedScore: clamp(toward, 0, 100),
	}

	return FlowAnalysis{
		Flow:      flow,
		Supports:  toward > flowSupportsBand,
		Conflicts: toward < -flowSupportsBand,
	}
}

// lean returns (a−b)/(a+b) in [-1, 1], or 0 when both sides are empty.
func lean(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return (a - b) / (a + b)
}

// countWalls counts resting levels whose notional exceeds wallMultiple
// times the average level notional on that side. Levels are decimal strings
// from the CLOB; notional is computed exactly before comparison.
func countWalls(book *types.BookSnapshot, bids bool) int {
	if book == nil {
		return 0
	}
	levels := book.Asks
	if bids {
		levels = book.Bids
	}
	if len(levels) < 2 {
		return 0
	}

	notionals := make([]decimal.Decimal, 0, len(levels))
	total := decimal.Zero
	for _, lvl := range levels {
		p, err1 := decimal.NewFromString(lvl.Price)
		q, err2 := decimal.NewFromString(lvl.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		n := p.Mul(q)
		notionals = append(notionals, n)
		total = total.Add(n)
	}
	if len(notionals) == 0 {
		return 0
	}

	avg := total.Div(decimal.NewFromInt(int64(len(notionals))))
	threshold := avg.Mul(decimal.NewFromFloat(wallMultiple))
	walls := 0
	for _, n := range notionals {
		if n.GreaterThan(threshold) {
			walls++
		}
	}
	return walls
}

func classifyDepth(yes, no indicator.DepthSummary) types.FlowQuality {
	total := yes.BidLiquidity + yes.AskLiquidity + no.BidLiquidity + no.AskLiquidity
	switch {
	case total > deepLiquidity:
		return types.FlowDeep
	case total > moderateLiquidity:
		return types.FlowModerate
	default:
		return types.FlowThin
	}
}

func classifySpread(yes indicator.DepthSummary) string {
	if yes.BestBid == 0 || yes.BestAsk == 0 {
		return "EMPTY"
	}
	spread := yes.BestAsk - yes.BestBid
	switch {
	case spread < 0.02:
		return "TIGHT"
	case spread < 0.05:
		return "NORMAL"
	default:
		return "WIDE"
	}
}
