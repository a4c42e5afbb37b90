package store

import (
	"context"
	"sync"
	"time"

	"polymarket-scanner/pkg/types"
)

// Memory is the in-memory signal store used for dry runs and tests.
// It mirrors the Postgres semantics: duplicate (market_id, created_at)
// saves are no-ops and outcomes write exactly once.
type Memory struct {
	mu      sync.RWMutex
	signals []Signal
	seen    map[string]bool // market_id + created_at dedup keys
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]bool)}
}

func dedupKey(marketID string, createdAt time.Time) string {
	return marketID + "|" + createdAt.UTC().Format(time.RFC3339Nano)
}

func (m *Memory) Save(_ context.Context, sig *Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dedupKey(sig.MarketID, sig.CreatedAt)
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true
	m.signals = append(m.signals, *sig)
	return nil
}

func (m *Memory) Unresolved(_ context.Context) ([]Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Signal
	for _, s := range m.signals {
		if !s.Settled() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Settled(_ context.Context) ([]Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Signal
	for _, s := range m.signals {
		if s.Settled() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) RecordOutcome(_ context.Context, id string, outcome types.Outcome, priceYes, priceNo, pnlPct float64, settledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.signals {
		if m.signals[i].ID != id || m.signals[i].Settled() {
			continue
		}
		o := string(outcome)
		m.signals[i].Outcome = &o
		m.signals[i].OutcomePriceYes = &priceYes
		m.signals[i].OutcomePriceNo = &priceNo
		m.signals[i].PnlPct = &pnlPct
		m.signals[i].SettledAt = &settledAt
	}
	return nil
}

func (m *Memory) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.signals[:0]
	var removed int64
	for _, s := range m.signals {
		if s.CreatedAt.Before(before) {
			removed++
			delete(m.seen, dedupKey(s.MarketID, s.CreatedAt))
			continue
		}
		kept = append(kept, s)
	}
	m.signals = kept
	return removed, nil
}

func (m *Memory) Close() error { return nil }
