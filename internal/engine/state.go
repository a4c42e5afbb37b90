package engine

import (
	"sort"

	"polymarket-scanner/pkg/types"
)

// Stats is the engine's summary view.
type Stats struct {
	Tracked     int            `json:"tracked"`
	Signals     int            `json:"signals"`
	PerCategory map[string]int `json:"perCategory"`
}

// LastTick implements store.TickSource.
func (e *Engine) LastTick(marketID string) (types.Tick, bool) {
	e.ticksMu.RLock()
	defer e.ticksMu.RUnlock()
	t, ok := e.lastTicks[marketID]
	return t, ok
}

// MarketClosed implements store.TickSource.
func (e *Engine) MarketClosed(marketID string) bool {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()
	if slot, ok := e.slots[marketID]; ok {
		return slot.market.Closed
	}
	// A market gone from the active set has left the catalog, which only
	// happens once it resolves or delists.
	return true
}

// TrackedCount returns the number of active pollers.
func (e *Engine) TrackedCount() int {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()
	return len(e.slots)
}

// Snapshot returns the last tick of every tracked market.
func (e *Engine) Snapshot() []types.Tick {
	e.slotsMu.RLock()
	ids := make([]string, len(e.order))
	copy(ids, e.order)
	e.slotsMu.RUnlock()

	e.ticksMu.RLock()
	defer e.ticksMu.RUnlock()

	out := make([]types.Tick, 0, len(ids))
	for _, id := range ids {
		if t, ok := e.lastTicks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ActiveSignals returns the current ENTER ticks sorted by best edge
// descending. An ok=false tick drops its market from this list.
func (e *Engine) ActiveSignals() []types.Tick {
	all := e.Snapshot()

	signals := make([]types.Tick, 0, len(all))
	for _, t := range all {
		if t.OK && t.Rec.Action == types.ENTER {
			signals = append(signals, t)
		}
	}
	sort.Slice(signals, func(i, j int) bool {
		ei, _ := signals[i].Edge.Best()
		ej, _ := signals[j].Edge.Best()
		return ei > ej
	})
	return signals
}

// SummaryStats aggregates tracked and signalling markets per category.
func (e *Engine) SummaryStats() Stats {
	all := e.Snapshot()
	stats := Stats{PerCategory: make(map[string]int)}

	e.slotsMu.RLock()
	stats.Tracked = len(e.slots)
	e.slotsMu.RUnlock()

	for _, t := range all {
		if t.OK && t.Rec.Action == types.ENTER {
			stats.Signals++
			stats.PerCategory[t.Category]++
		}
	}
	return stats
}
