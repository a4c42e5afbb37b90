package store

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"polymarket-scanner/pkg/types"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTicks struct {
	ticks  map[string]types.Tick
	closed map[string]bool
}

func (f *fakeTicks) LastTick(marketID string) (types.Tick, bool) {
	t, ok := f.ticks[marketID]
	return t, ok
}

func (f *fakeTicks) MarketClosed(marketID string) bool {
	return f.closed[marketID]
}

func openTick(marketID string, yes float64, settlementMins float64) types.Tick {
	return types.Tick{
		OK:             true,
		MarketID:       marketID,
		Prices:         types.Prices{Yes: yes, No: 1 - yes},
		SettlementMins: settlementMins,
	}
}

func newResolver(store SignalStore, ticks TickSource) *Resolver {
	return NewResolver(store, ticks, time.Minute, 90, discard())
}

func TestResolverWinOnPinnedPrice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	sig := testSignal("s1", "m1", time.Now().Add(-time.Hour))
	mem.Save(ctx, sig)

	ticks := &fakeTicks{ticks: map[string]types.Tick{
		"m1": openTick("m1", 0.95, 20),
	}}

	if n := newResolver(mem, ticks).ResolveOnce(ctx); n != 1 {
		t.Fatalf("settled = %d, want 1", n)
	}

	settled, _ := mem.Settled(ctx)
	s := settled[0]
	if *s.Outcome != string(types.OutcomeWin) {
		t.Fatalf("outcome = %q, want WIN", *s.Outcome)
	}
	// Entry at 0.40: payoff (1-0.40)/0.40 = 1.5x.
	if math.Abs(*s.PnlPct-1.5) > 1e-9 {
		t.Errorf("pnl = %v, want 1.5", *s.PnlPct)
	}
	if *s.OutcomePriceYes != 0.95 {
		t.Errorf("outcome price = %v, want 0.95", *s.OutcomePriceYes)
	}
}

func TestResolverLossIsTotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	mem.Save(ctx, testSignal("s1", "m1", time.Now().Add(-time.Hour)))

	ticks := &fakeTicks{ticks: map[string]types.Tick{
		"m1": openTick("m1", 0.05, 20),
	}}
	newResolver(mem, ticks).ResolveOnce(ctx)

	settled, _ := mem.Settled(ctx)
	if *settled[0].Outcome != string(types.OutcomeLoss) {
		t.Fatalf("outcome = %q, want LOSS", *settled[0].Outcome)
	}
	if *settled[0].PnlPct != -1 {
		t.Errorf("pnl = %v, want -1 (binary tokens expire worthless)", *settled[0].PnlPct)
	}
}

func TestResolverDownSideWinsWhenYesCollapses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	sig := testSignal("s1", "m1", time.Now().Add(-time.Hour))
	sig.Side = string(types.DOWN)
	mem.Save(ctx, sig)

	ticks := &fakeTicks{ticks: map[string]types.Tick{
		"m1": openTick("m1", 0.05, 20),
	}}
	newResolver(mem, ticks).ResolveOnce(ctx)

	settled, _ := mem.Settled(ctx)
	if *settled[0].Outcome != string(types.OutcomeWin) {
		t.Fatalf("outcome = %q, want WIN for DOWN when YES collapses", *settled[0].Outcome)
	}
	// NO entry at 0.60: payoff (1-0.60)/0.60.
	if math.Abs(*settled[0].PnlPct-(0.4/0.6)) > 1e-9 {
		t.Errorf("pnl = %v, want %v", *settled[0].PnlPct, 0.4/0.6)
	}
}

func TestResolverSettlesOnMarketClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	mem.Save(ctx, testSignal("s1", "m1", time.Now().Add(-time.Hour)))

	// Mid price but the catalog says closed: settle on the side of 0.5.
	ticks := &fakeTicks{
		ticks:  map[string]types.Tick{"m1": openTick("m1", 0.62, 5)},
		closed: map[string]bool{"m1": true},
	}
	if n := newResolver(mem, ticks).ResolveOnce(ctx); n != 1 {
		t.Fatalf("settled = %d, want 1", n)
	}
	settled, _ := mem.Settled(ctx)
	if *settled[0].Outcome != string(types.OutcomeWin) {
		t.Errorf("outcome = %q, want WIN at 0.62 on close", *settled[0].Outcome)
	}
}

func TestResolverLeavesLiveMarketsOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	mem.Save(ctx, testSignal("s1", "m1", time.Now().Add(-time.Hour)))

	ticks := &fakeTicks{ticks: map[string]types.Tick{
		"m1": openTick("m1", 0.55, 30),
	}}
	if n := newResolver(mem, ticks).ResolveOnce(ctx); n != 0 {
		t.Fatalf("settled = %d, want 0 for a live mid-priced market", n)
	}
	if open, _ := mem.Unresolved(ctx); len(open) != 1 {
		t.Errorf("unresolved = %d, want 1", len(open))
	}
}

func TestResolverVoidsStaleSignals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()

	// Expected settlement 25h ago, no market state since: past the 24h grace.
	stale := testSignal("s1", "gone", time.Now().Add(-26*time.Hour))
	stale.SettlementLeftMin = 60
	mem.Save(ctx, stale)

	// Recent and unresolvable: stays open inside the grace window.
	live := testSignal("s2", "m2", time.Now().Add(-time.Hour))
	live.SettlementLeftMin = 60
	mem.Save(ctx, live)

	ticks := &fakeTicks{ticks: map[string]types.Tick{
		"m2": openTick("m2", 0.55, 30),
	}}
	if n := newResolver(mem, ticks).ResolveOnce(ctx); n != 1 {
		t.Fatalf("settled = %d, want 1 void", n)
	}

	settled, _ := mem.Settled(ctx)
	if len(settled) != 1 || settled[0].ID != "s1" {
		t.Fatalf("settled = %+v, want only the stale signal", settled)
	}
	if *settled[0].Outcome != string(types.OutcomeVoid) {
		t.Errorf("outcome = %q, want VOID", *settled[0].Outcome)
	}
	if *settled[0].PnlPct != 0 {
		t.Errorf("void pnl = %v, want 0", *settled[0].PnlPct)
	}
}

func TestResolverPurgesExpiredRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()

	ancient := testSignal("s1", "m1", time.Now().Add(-91*24*time.Hour))
	o := string(types.OutcomeLoss)
	ancient.Outcome = &o
	mem.Save(ctx, ancient)

	newResolver(mem, &fakeTicks{}).ResolveOnce(ctx)

	if settled, _ := mem.Settled(ctx); len(settled) != 0 {
		t.Errorf("settled = %d, want 0 after retention purge", len(settled))
	}
}
