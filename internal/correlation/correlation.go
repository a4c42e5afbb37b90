// Package correlation tracks one macro symbol (BTC by default) and turns
// its directional bias into an edge multiplier for crypto-tagged markets.
package correlation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"polymarket-scanner/internal/indicator"
	"polymarket-scanner/pkg/types"
)

const (
	minRefreshInterval = 15 * time.Second
	klineLimit         = 120

	fullFactor     = 0.3 // short-dated crypto adjustment range
	dampenedFactor = 0.2 // ETH and long-dated markets
	leanMultiplier = 1.05

	minAdj = 0.7
	maxAdj = 1.3
)

// KlineSource supplies macro OHLCV bars. Implemented by fetch.MacroClient.
type KlineSource interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	LastPrice(symbol string) (float64, bool)
}

// Tracker caches the macro indicator stack with a minimum refresh interval.
// A single refresher path holds the write lock; pollers only read. On
// refresh failure the stale snapshot is retained.
type Tracker struct {
	source  KlineSource
	symbol  string
	refresh time.Duration
	log     *slog.Logger

	mu    sync.RWMutex
	state types.MacroState
}

// NewTracker builds a tracker for one macro symbol. A refresh interval
// under the 15-second floor is raised to it.
func NewTracker(source KlineSource, symbol string, refresh time.Duration, log *slog.Logger) *Tracker {
	if refresh < minRefreshInterval {
		refresh = minRefreshInterval
	}
	return &Tracker{
		source:  source,
		symbol:  symbol,
		refresh: refresh,
		log:     log.With("component", "correlation", "symbol", symbol),
	}
}

// State returns the macro snapshot, refreshing it first when the cache is
// older than the refresh interval.
func (t *Tracker) State(ctx context.Context) types.MacroState {
	t.mu.RLock()
	state := t.state
	t.mu.RUnlock()

	if time.Since(state.UpdatedAt) < t.refresh {
		return state
	}
	return t.refreshState(ctx)
}

func (t *Tracker) refreshState(ctx context.Context) types.MacroState {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Another poller may have refreshed while we waited for the lock.
	if time.Since(t.state.UpdatedAt) < t.refresh {
		return t.state
	}

	candles, err := t.source.Klines(ctx, t.symbol, "1m", klineLimit)
	if err != nil || len(candles) == 0 {
		if err != nil {
			t.log.Warn("macro refresh failed, keeping stale state", "error", err)
		}
		return t.state
	}

	snap := indicator.BuildSnapshot(candles, indicator.DepthSummary{})
	state := types.MacroState{
		Symbol:    t.symbol,
		LastPrice: snap.LastClose,
		VWAP:      snap.VWAP,
		VWAPSlope: snap.VWAPSlope,
		UpdatedAt: time.Now(),
	}
	if last, ok := t.source.LastPrice(t.symbol); ok {
		state.LastPrice = last
	}
	if snap.RSI != nil {
		state.RSI = *snap.RSI
	} else {
		state.RSI = 50
	}
	if snap.MACD != nil {
		state.MACDHist = snap.MACD.Hist
	}
	state.Bias, state.BiasStrength = deriveBias(state)

	t.state = state
	return state
}

// deriveBias counts four directional votes: price vs VWAP, RSI band,
// MACD histogram sign and VWAP slope sign. Three or more aligned votes
// make a full bias with strength votes/4; a 2-vs-1 split makes a LEAN.
func deriveBias(s types.MacroState) (types.Bias, float64) {
	bull, bear := 0, 0

	vote := func(up, down bool) {
		if up {
			bull++
		} else if down {
			bear++
		}
	}
	vote(s.LastPrice > s.VWAP, s.LastPrice < s.VWAP)
	vote(s.RSI > 55, s.RSI < 45)
	vote(s.MACDHist > 0, s.MACDHist < 0)
	vote(s.VWAPSlope > 0, s.VWAPSlope < 0)

	switch {
	case bull >= 3:
		return types.BiasBullish, float64(bull) / 4
	case bear >= 3:
		return types.BiasBearish, float64(bear) / 4
	case bull == 2 && bear == 1:
		return types.BiasLeanBull, 0.5
	case bear == 2 && bull == 1:
		return types.BiasLeanBear, 0.5
	default:
		return types.BiasNeutral, 0
	}
}

// Adjust computes the correlation multiplier applied to both edges before
// the entry decision. Non-crypto markets and neutral macro are passthrough.
// Short-dated crypto markets with a directional question get the full ±0.3
// range; ETH markets and longer horizons are dampened to ±0.2. LEAN biases
// contribute a flat 1.05 when aligned.
func Adjust(m types.Market, side types.Side, state types.MacroState, shortDated bool) float64 {
	if !m.IsCrypto() {
		return 1.0
	}
	if state.Bias == types.BiasNeutral || state.BiasStrength == 0 {
		return 1.0
	}

	dir := questionDirection(m.Question)
	if dir == 0 {
		return 1.0
	}

	// wantsBull: this side profits when the macro market rises.
	wantsBull := (side == types.UP) == (dir > 0)
	macroBull := state.Bias == types.BiasBullish || state.Bias == types.BiasLeanBull
	aligned := wantsBull == macroBull

	if state.Bias == types.BiasLeanBull || state.Bias == types.BiasLeanBear {
		if aligned {
			return leanMultiplier
		}
		return 1.0
	}

	factor := dampenedFactor
	if shortDated && !isETH(m) {
		factor = fullFactor
	}

	adj := 1 + state.BiasStrength*factor
	if !aligned {
		adj = 1 - state.BiasStrength*factor
	}
	return clampAdj(adj)
}

// questionDirection returns +1 for "price above X" style questions, -1 for
// "price below X", 0 when the question carries no direction.
func questionDirection(question string) int {
	q := strings.ToLower(question)
	for _, kw := range []string{"above", "over", "higher", "reach", "hit"} {
		if strings.Contains(q, kw) {
			return 1
		}
	}
	for _, kw := range []string{"below", "under", "lower", "dip"} {
		if strings.Contains(q, kw) {
			return -1
		}
	}
	return 0
}

func isETH(m types.Market) bool {
	for _, t := range m.Tags {
		if t == "eth" || t == "ethereum" {
			return true
		}
	}
	q := strings.ToLower(m.Question)
	return strings.Contains(q, "ethereum") || strings.Contains(q, "eth ")
}

func clampAdj(v float64) float64 {
	if v < minAdj {
		return minAdj
	}
	if v > maxAdj {
		return maxAdj
	}
	return v
}
