// Package engine is the scanner's orchestrator.
//
// It wires together all subsystems:
//
//  1. Discovery pulls the filtered market catalog and keeps one poller per
//     live market (reconciled every N cycles).
//  2. Each cycle polls every market once, staggered to smooth upstream
//     rate-limit pressure, and fans ticks through the event bus.
//  3. ENTER ticks are persisted to the signal store and mirrored into the
//     virtual portfolio.
//  4. The outcome resolver and weight learner run concurrently, feeding
//     learned multipliers back into the next cycle's scoring.
//
// Lifecycle: New() → Run(ctx) [blocks until ctx cancel] → Close()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"polymarket-scanner/internal/bus"
	"polymarket-scanner/internal/config"
	"polymarket-scanner/internal/correlation"
	"polymarket-scanner/internal/fetch"
	"polymarket-scanner/internal/learner"
	"polymarket-scanner/internal/poller"
	"polymarket-scanner/internal/portfolio"
	"polymarket-scanner/internal/store"
	"polymarket-scanner/pkg/types"
)

// marketSlot is one actively-scanned market.
type marketSlot struct {
	market types.Market
	poller *poller.Poller
}

// CycleComplete is the payload of every cycle:complete event.
type CycleComplete struct {
	Cycle         int `json:"cycle"`
	MarketsPolled int `json:"marketsPolled"`
	Signals       int `json:"signals"`
	Errors        int `json:"errors"`
}

// ErrorEvent is the payload of error events.
type ErrorEvent struct {
	MarketID string `json:"marketId"`
	Reason   string `json:"reason"`
	Err      string `json:"error"`
}

// Engine orchestrates discovery, polling, persistence and feedback.
type Engine struct {
	cfg    config.Config
	client *fetch.Client
	macro  *fetch.MacroClient
	stream *fetch.TradeStream // nil when streaming is disabled
	corr   *correlation.Tracker
	bus    *bus.Bus
	store  store.SignalStore
	learn  *learner.Learner
	book   *portfolio.Portfolio
	log    *slog.Logger

	// slots maps market ID → running poller. Protected by slotsMu.
	slots   map[string]*marketSlot
	order   []string // poll order, stable across a cycle
	slotsMu sync.RWMutex

	// lastTicks feeds the resolver and the state queries.
	lastTicks map[string]types.Tick
	ticksMu   sync.RWMutex

	runMu   sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New creates and wires all engine components.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	health := fetch.NewHealthRegistry()
	client := fetch.NewClient(cfg.API, health, logger)

	var stream *fetch.TradeStream
	if cfg.Macro.WSURL != "" {
		stream = fetch.NewTradeStream(cfg.Macro.WSURL, cfg.Macro.Symbol, logger)
	}
	macro := fetch.NewMacroClient(cfg.Macro, health, stream, logger)
	corr := correlation.NewTracker(macro, cfg.Macro.Symbol, cfg.Macro.RefreshInterval, logger)

	var st store.SignalStore
	if cfg.Store.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open signal store: %w", err)
		}
		st = pg
	} else {
		logger.Info("no database configured, using in-memory signal store")
		st = store.NewMemory()
	}

	e := &Engine{
		cfg:       cfg,
		client:    client,
		macro:     macro,
		stream:    stream,
		corr:      corr,
		bus:       bus.New(logger),
		store:     st,
		learn:     learner.New(st, cfg.Learner.MinSettled, cfg.Learner.RefreshInterval, logger),
		book:      portfolio.New(logger),
		log:       logger.With("component", "engine"),
		slots:     make(map[string]*marketSlot),
		lastTicks: make(map[string]types.Tick),
	}

	// The portfolio rides the bus like any external subscriber.
	e.bus.Subscribe("portfolio", func(evt bus.Event) {
		tick, ok := evt.Payload.(types.Tick)
		if !ok {
			return
		}
		switch evt.Name {
		case bus.EventSignalEnter:
			e.book.OpenFromTick(tick)
		case bus.EventTick:
			e.book.Refresh(tick)
		}
	}, bus.EventSignalEnter, bus.EventTick)

	return e, nil
}

// Bus exposes the event bus for external subscribers.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Health exposes per-source fetcher health.
func (e *Engine) Health() map[string]fetch.SourceHealth { return e.client.Health().Snapshot() }

// Portfolio exposes the virtual position book.
func (e *Engine) Portfolio() *portfolio.Portfolio { return e.book }

// Learner exposes the weight learner for state queries.
func (e *Engine) Learner() *learner.Learner { return e.learn }

// Run starts everything and blocks until ctx is cancelled. Calling Run
// while already running returns immediately.
func (e *Engine) Run(ctx context.Context) error {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return nil
	}
	e.running = true
	e.runMu.Unlock()
	defer func() {
		e.runMu.Lock()
		e.running = false
		e.runMu.Unlock()
	}()

	e.bus.Publish(bus.EventScannerStart, nil)

	if e.stream != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.stream.Run(ctx); err != nil && ctx.Err() == nil {
				e.log.Error("trade stream stopped", "error", err)
			}
		}()
	}

	resolver := store.NewResolver(e.store, e, e.cfg.Store.ResolveInterval, e.cfg.Store.RetentionDays, e.log)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		resolver.Run(ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.learn.Run(ctx)
	}()

	if err := e.discover(ctx, true); err != nil {
		e.log.Error("initial discovery failed", "error", err)
	}
	e.bus.Publish(bus.EventScannerReady, e.TrackedCount())
	e.log.Info("scanner ready", "markets", e.TrackedCount())

	cycle := 0
	for {
		cycle++
		e.runCycle(ctx, cycle)

		if e.cfg.Scanner.DiscoveryCycles > 0 && cycle%e.cfg.Scanner.DiscoveryCycles == 0 {
			if err := e.discover(ctx, false); err != nil {
				// Existing pollers keep the previous market set.
				e.log.Warn("rediscovery failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			e.bus.Publish(bus.EventScannerStop, nil)
			e.wg.Wait()
			return ctx.Err()
		case <-time.After(e.cfg.Scanner.PollInterval):
		}
	}
}

// Close releases resources after Run returns.
func (e *Engine) Close() {
	e.bus.Close()
	if err := e.store.Close(); err != nil {
		e.log.Error("close signal store", "error", err)
	}
}

// runCycle polls every active market once, serialized with the stagger
// delay. Per-poller failures become error events and never abort the cycle.
func (e *Engine) runCycle(ctx context.Context, cycle int) {
	e.slotsMu.RLock()
	slots := make([]*marketSlot, 0, len(e.order))
	for _, id := range e.order {
		if s, ok := e.slots[id]; ok {
			slots = append(slots, s)
		}
	}
	e.slotsMu.RUnlock()

	polled, signals, errored := 0, 0, 0
	for i, slot := range slots {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.Scanner.StaggerDelay):
			}
		}

		tick := slot.poller.Poll(ctx)
		polled++
		e.recordTick(tick)
		e.bus.Publish(bus.EventTick, tick)

		if !tick.OK {
			if tick.Reason == poller.ReasonFetchFailed || tick.Reason == poller.ReasonCircuitOpen {
				errored++
				e.bus.Publish(bus.EventError, ErrorEvent{
					MarketID: tick.MarketID,
					Reason:   tick.Reason,
				})
			}
			continue
		}

		// signal:enter fires before the next market is polled.
		if tick.Rec.Action == types.ENTER {
			signals++
			if err := e.store.Save(ctx, store.FromTick(tick)); err != nil {
				e.log.Error("persist signal", "market", tick.MarketID, "error", err)
			}
			e.bus.Publish(bus.EventSignalEnter, tick)
		}

		if settleable(slot.market, tick) {
			e.book.Close(tick.MarketID, "settled")
		}
	}

	e.bus.Publish(bus.EventCycleComplete, CycleComplete{
		Cycle:         cycle,
		MarketsPolled: polled,
		Signals:       signals,
		Errors:        errored,
	})
}

func settleable(m types.Market, tick types.Tick) bool {
	return m.Closed || tick.SettlementMins <= 0 ||
		tick.Prices.Yes >= 0.9 || tick.Prices.Yes <= 0.1
}

// discover reconciles the poller set against a fresh catalog.
func (e *Engine) discover(ctx context.Context, initial bool) error {
	markets, err := e.client.Markets(ctx, fetch.CatalogFilter{
		MinLiquidity: e.cfg.Scanner.MinLiquidity,
		Categories:   e.cfg.Scanner.Categories,
		MaxMarkets:   e.cfg.Scanner.MaxMarkets,
	})
	if err != nil {
		return err
	}

	e.reconcile(markets, initial)
	e.pruneTicks(ctx)
	return nil
}

// reconcile applies a fresh catalog to the poller set.
func (e *Engine) reconcile(markets []types.Market, initial bool) {
	desired := make(map[string]types.Market, len(markets))
	for _, m := range markets {
		desired[m.ID] = m
	}

	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()

	// Stop pollers whose market left the catalog.
	for id, slot := range e.slots {
		if _, ok := desired[id]; ok {
			continue
		}
		delete(e.slots, id)
		e.book.Close(id, "market_removed")
		if !initial {
			e.bus.Publish(bus.EventMarketRemoved, slot.market)
		}
		e.log.Info("market removed", "slug", slot.market.Slug)
	}

	// Refresh surviving markets and add new ones in catalog order.
	e.order = e.order[:0]
	for _, m := range markets {
		if slot, ok := e.slots[m.ID]; ok {
			slot.market = m
			slot.poller.UpdateMarket(m)
		} else {
			p := poller.New(m, e.client, e.macro, e.corr, e.learn, e.learn, e.cfg.Scanner, e.log)
			e.slots[m.ID] = &marketSlot{market: m, poller: p}
			if !initial {
				e.bus.Publish(bus.EventMarketAdded, m)
			}
			e.log.Info("market added", "slug", m.Slug, "category", m.Category, "liquidity", m.Liquidity)
		}
		e.order = append(e.order, m.ID)
	}
}

// pruneTicks drops cached ticks for markets that left the catalog. A
// removed market's tick stays until the resolver has settled its signals;
// it is the resolver's last price source.
func (e *Engine) pruneTicks(ctx context.Context) {
	open, err := e.store.Unresolved(ctx)
	if err != nil {
		e.log.Warn("tick prune skipped", "error", err)
		return
	}
	pending := make(map[string]bool, len(open))
	for _, sig := range open {
		pending[sig.MarketID] = true
	}

	e.slotsMu.RLock()
	tracked := make(map[string]bool, len(e.slots))
	for id := range e.slots {
		tracked[id] = true
	}
	e.slotsMu.RUnlock()

	e.ticksMu.Lock()
	for id := range e.lastTicks {
		if !tracked[id] && !pending[id] {
			delete(e.lastTicks, id)
		}
	}
	e.ticksMu.Unlock()
}

func (e *Engine) recordTick(tick types.Tick) {
	e.ticksMu.Lock()
	e.lastTicks[tick.MarketID] = tick
	e.ticksMu.Unlock()
}
