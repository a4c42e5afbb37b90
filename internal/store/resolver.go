package store

import (
	"context"
	"log/slog"
	"time"

	"polymarket-scanner/pkg/types"
)

const voidAfter = 24 * time.Hour

// TickSource supplies the latest market state for settlement checks.
// Implemented by the engine.
type TickSource interface {
	LastTick(marketID string) (types.Tick, bool)
	MarketClosed(marketID string) bool
}

// Resolver settles open signals on a timer. A signal settles as WIN/LOSS
// when its market is flagged closed, its settlement time has passed, or an
// outcome price has pinned to an extreme. Signals stuck without resolvable
// state for 24h past expected settlement become VOID.
type Resolver struct {
	store     SignalStore
	ticks     TickSource
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
}

func NewResolver(store SignalStore, ticks TickSource, interval time.Duration, retentionDays int, log *slog.Logger) *Resolver {
	return &Resolver{
		store:     store,
		ticks:     ticks,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.With("component", "resolver"),
	}
}

// Run loops until ctx is cancelled.
func (r *Resolver) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ResolveOnce(ctx)
		}
	}
}

// ResolveOnce settles what it can and purges expired rows. Returns the
// number of signals settled this pass.
func (r *Resolver) ResolveOnce(ctx context.Context) int {
	open, err := r.store.Unresolved(ctx)
	if err != nil {
		r.log.Error("load unresolved signals", "error", err)
		return 0
	}

	now := time.Now()
	settled := 0
	for i := range open {
		if r.resolveSignal(ctx, &open[i], now) {
			settled++
		}
	}
	if settled > 0 {
		r.log.Info("signals settled", "count", settled, "open", len(open)-settled)
	}

	if n, err := r.store.Purge(ctx, now.Add(-r.retention)); err != nil {
		r.log.Error("purge signals", "error", err)
	} else if n > 0 {
		r.log.Info("signals purged", "count", n)
	}
	return settled
}

func (r *Resolver) resolveSignal(ctx context.Context, s *Signal, now time.Time) bool {
	tick, ok := r.ticks.LastTick(s.MarketID)
	if !ok {
		return r.maybeVoid(ctx, s, now)
	}

	settleable := r.ticks.MarketClosed(s.MarketID) ||
		tick.SettlementMins <= 0 ||
		tick.Prices.Yes >= 0.9 || tick.Prices.Yes <= 0.1
	if !settleable {
		return r.maybeVoid(ctx, s, now)
	}

	yesWon := tick.Prices.Yes > 0.5
	won := (s.Side == string(types.UP)) == yesWon

	entry := s.MarketYes
	if s.Side == string(types.DOWN) {
		entry = s.MarketNo
	}

	outcome := types.OutcomeLoss
	pnl := -1.0
	if won {
		outcome = types.OutcomeWin
		pnl = 0
		if entry > 0 {
			pnl = (1 - entry) / entry
		}
	}

	if err := r.store.RecordOutcome(ctx, s.ID, outcome, tick.Prices.Yes, tick.Prices.No, pnl, now); err != nil {
		r.log.Error("record outcome", "signal", s.ID, "error", err)
		return false
	}
	r.log.Info("signal settled",
		"signal", s.ID,
		"market", s.MarketID,
		"outcome", outcome,
		"pnl_pct", pnl,
	)
	return true
}

// maybeVoid voids signals whose expected settlement passed over 24h ago
// with nothing resolvable.
func (r *Resolver) maybeVoid(ctx context.Context, s *Signal, now time.Time) bool {
	expected := s.CreatedAt.Add(time.Duration(s.SettlementLeftMin * float64(time.Minute)))
	if now.Before(expected.Add(voidAfter)) {
		return false
	}
	if err := r.store.RecordOutcome(ctx, s.ID, types.OutcomeVoid, 0, 0, 0, now); err != nil {
		r.log.Error("void signal", "signal", s.ID, "error", err)
		return false
	}
	r.log.Warn("signal voided", "signal", s.ID, "market", s.MarketID)
	return true
}
