package indicator

import (
	"github.com/shopspring/decimal"

	"polymarket-scanner/pkg/types"
)

// depthLevels caps how many levels per side count toward top-of-book
// liquidity. Deeper levels rarely interact with short-horizon signals.
const depthLevels = 10

// DepthSummary is the summarized top-of-book liquidity for one token.
type DepthSummary struct {
	BidLiquidity float64 // sum of price×size over the top bid levels
	AskLiquidity float64
	BestBid      float64
	BestAsk      float64
	BidLevels    int
	AskLevels    int
}

// SummarizeDepth sums notional liquidity over the top levels of each side.
// Level prices and sizes arrive as decimal strings from the CLOB; they are
// summed exactly and converted to float only at the end. Unparseable levels
// are skipped.
func SummarizeDepth(book *types.BookSnapshot) DepthSummary {
	var s DepthSummary
	if book == nil {
		return s
	}

	bid := decimal.Zero
	for i, lvl := range book.Bids {
		if i >= depthLevels {
			break
		}
		p, err1 := decimal.NewFromString(lvl.Price)
		q, err2 := decimal.NewFromString(lvl.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		bid = bid.Add(p.Mul(q))
		s.BidLevels++
		if i == 0 {
			s.BestBid, _ = p.Float64()
		}
	}

	ask := decimal.Zero
	for i, lvl := range book.Asks {
		if i >= depthLevels {
			break
		}
		p, err1 := decimal.NewFromString(lvl.Price)
		q, err2 := decimal.NewFromString(lvl.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		ask = ask.Add(p.Mul(q))
		s.AskLevels++
		if i == 0 {
			s.BestAsk, _ = p.Float64()
		}
	}

	s.BidLiquidity, _ = bid.Float64()
	s.AskLiquidity, _ = ask.Float64()
	return s
}

// Imbalance returns bid liquidity / ask liquidity. An empty ask side with
// resting bids reads as maximally bid-heavy (capped); a fully empty book
// reads balanced.
func (s DepthSummary) Imbalance() float64 {
	if s.AskLiquidity == 0 {
		if s.BidLiquidity == 0 {
			return 1
		}
		return 99
	}
	return s.BidLiquidity / s.AskLiquidity
}
