// Package portfolio tracks simulated positions opened from ENTER signals.
// No orders are ever placed; the book exists to measure what the signals
// would have earned.
package portfolio

import (
	"log/slog"
	"sync"
	"time"

	"polymarket-scanner/pkg/types"
)

// Status of a virtual position.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Position is one simulated entry.
type Position struct {
	MarketID     string     `json:"marketId"`
	Question     string     `json:"question"`
	Side         types.Side `json:"side"`
	EntryPrice   float64    `json:"entryPrice"`
	CurrentPrice float64    `json:"currentPrice"`
	BetPct       float64    `json:"betPct"`
	Confidence   float64    `json:"confidence"`
	EntryEdge    float64    `json:"entryEdge"`
	Status       string     `json:"status"`
	PnlPct       float64    `json:"pnlPct"`
	CloseReason  string     `json:"closeReason,omitempty"`
	OpenedAt     time.Time  `json:"openedAt"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
}

// Portfolio is the in-memory virtual position book. One open position per
// market at a time.
type Portfolio struct {
	mu     sync.Mutex
	open   map[string]*Position // by market id
	closed []Position
	log    *slog.Logger
}

func New(log *slog.Logger) *Portfolio {
	return &Portfolio{
		open: make(map[string]*Position),
		log:  log.With("component", "portfolio"),
	}
}

// OpenFromTick opens a position for the tick's market unless one is
// already open there.
func (p *Portfolio) OpenFromTick(tick types.Tick) {
	if tick.Rec.Action != types.ENTER {
		return
	}

	// Positions track the YES price for both sides; DOWN P&L inverts the move.
	entry := tick.Prices.Yes
	if entry <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.open[tick.MarketID]; exists {
		return
	}

	edge, _ := tick.Edge.Best()
	p.open[tick.MarketID] = &Position{
		MarketID:     tick.MarketID,
		Question:     tick.Question,
		Side:         tick.Rec.Side,
		EntryPrice:   entry,
		CurrentPrice: entry,
		BetPct:       tick.Kelly.BetPct,
		Confidence:   tick.Confidence.Score,
		EntryEdge:    edge,
		Status:       StatusOpen,
		OpenedAt:     tick.Time,
	}
	p.log.Info("virtual position opened",
		"market", tick.MarketID,
		"side", tick.Rec.Side,
		"entry", entry,
		"bet_pct", tick.Kelly.BetPct,
	)
}

// Refresh updates the open position's current price from the latest tick.
func (p *Portfolio) Refresh(tick types.Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.open[tick.MarketID]
	if !ok {
		return
	}
	if tick.Prices.Yes > 0 {
		pos.CurrentPrice = tick.Prices.Yes
	}
}

// Close settles the market's open position. P&L percent scales the price
// move by the bet fraction; a DOWN position profits when YES falls.
func (p *Portfolio) Close(marketID, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.open[marketID]
	if !ok {
		return
	}
	delete(p.open, marketID)

	move := 0.0
	if pos.EntryPrice > 0 {
		move = (pos.CurrentPrice - pos.EntryPrice) / pos.EntryPrice
	}
	if pos.Side == types.DOWN {
		move = -move
	}
	pos.PnlPct = move * pos.BetPct * 100

	now := time.Now()
	pos.Status = StatusClosed
	pos.CloseReason = reason
	pos.ClosedAt = &now
	p.closed = append(p.closed, *pos)

	p.log.Info("virtual position closed",
		"market", marketID,
		"side", pos.Side,
		"pnl_pct", pos.PnlPct,
		"reason", reason,
	)
}

// Open returns a copy of all open positions.
func (p *Portfolio) Open() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Position, 0, len(p.open))
	for _, pos := range p.open {
		out = append(out, *pos)
	}
	return out
}

// Closed returns a copy of all closed positions.
func (p *Portfolio) Closed() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Position, len(p.closed))
	copy(out, p.closed)
	return out
}

// TotalPnl sums realized P&L percent across closed positions.
func (p *Portfolio) TotalPnl() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var total float64
	for _, pos := range p.closed {
		total += pos.PnlPct
	}
	return total
}
