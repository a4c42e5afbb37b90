// Package learner derives per-indicator-state weight multipliers from
// settled signal outcomes and feeds them back into the probability scorer.
// Tables are rebuilt whole and published by atomic pointer swap, so scorer
// reads always see a complete table.
package learner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"polymarket-scanner/internal/store"
	"polymarket-scanner/pkg/types"
)

const (
	confSaturation = 50.0 // settled count at which a state's confidence hits 1
	weightClamp    = 0.5  // per-state multiplier range [0.5, 1.5]
	comboClamp     = 0.3  // combo multiplier range [0.7, 1.3]
	auditThreshold = 0.05
	auditRingSize  = 500
)

type key struct {
	feature string
	value   string
}

// tables is one immutable published snapshot of learned weights.
type tables struct {
	version    int64
	global     map[key]float64
	byCategory map[string]map[key]float64
	combo      map[string]float64 // "vwapPos|rsiZone"
	settled    int                // WIN+LOSS rows backing the build
}

// WeightDelta is one audited weight change between table versions.
type WeightDelta struct {
	Version  int64     `json:"version"`
	Category string    `json:"category,omitempty"` // empty for the global table
	Feature  string    `json:"feature"`
	Value    string    `json:"value"`
	Old      float64   `json:"old"`
	New      float64   `json:"new"`
	At       time.Time `json:"at"`
}

// Learner periodically rebuilds weight tables from the signal store.
type Learner struct {
	store      store.SignalStore
	minSettled int
	interval   time.Duration
	log        *slog.Logger

	current atomic.Pointer[tables]

	auditMu sync.Mutex
	audit   []WeightDelta
	drift   *DriftDetector
}

func New(st store.SignalStore, minSettled int, interval time.Duration, log *slog.Logger) *Learner {
	return &Learner{
		store:      st,
		minSettled: minSettled,
		interval:   interval,
		log:        log.With("component", "learner"),
		drift:      NewDriftDetector(),
	}
}

// Weight implements scoring.WeightSource. Lookup order is category table,
// then global table, then the 1.0 default. Below the settled-outcome
// minimum every lookup returns exactly 1.0.
func (l *Learner) Weight(category, feature, value string) float64 {
	t := l.current.Load()
	if t == nil || t.settled < l.minSettled {
		return 1.0
	}
	k := key{feature: feature, value: value}
	if cat, ok := t.byCategory[category]; ok {
		if m, ok := cat[k]; ok {
			return m
		}
	}
	if m, ok := t.global[k]; ok {
		return m
	}
	return 1.0
}

// ComboMultiplier returns the joint (vwap_position, rsi_zone) multiplier
// in [0.7, 1.3], or 1.0 when unlearned.
func (l *Learner) ComboMultiplier(vwapPos, rsiZone string) float64 {
	t := l.current.Load()
	if t == nil || t.settled < l.minSettled {
		return 1.0
	}
	if m, ok := t.combo[vwapPos+"|"+rsiZone]; ok {
		return m
	}
	return 1.0
}

// SettledCount returns the settled rows backing the current tables.
func (l *Learner) SettledCount() int {
	if t := l.current.Load(); t != nil {
		return t.settled
	}
	return 0
}

// Run refreshes the tables on the configured interval until ctx is cancelled.
func (l *Learner) Run(ctx context.Context) {
	// One eager refresh so a restart reuses history immediately.
	l.Refresh(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Refresh(ctx)
		}
	}
}

// Refresh rebuilds the tables from settled outcomes and publishes them.
func (l *Learner) Refresh(ctx context.Context) {
	settled, err := l.store.Settled(ctx)
	if err != nil {
		l.log.Error("load settled signals", "error", err)
		return
	}

	old := l.current.Load()
	next := build(settled)
	if old != nil {
		next.version = old.version + 1
	} else {
		next.version = 1
	}

	l.recordDeltas(old, next)
	l.drift.Observe(next)
	l.current.Store(next)

	l.log.Info("weight tables refreshed",
		"version", next.version,
		"settled", next.settled,
		"states", len(next.global),
		"active", next.settled >= l.minSettled,
	)
}

// build aggregates win/loss counts per (feature, value), per category, and
// for the (vwap_position, rsi_zone) combo, then converts them to multipliers.
func build(settled []store.Signal) *tables {
	type counts struct{ wins, losses int }

	global := make(map[key]*counts)
	byCat := make(map[string]map[key]*counts)
	combo := make(map[string]*counts)
	total := 0

	for i := range settled {
		s := &settled[i]
		if s.Outcome == nil {
			continue
		}
		var won bool
		switch types.Outcome(*s.Outcome) {
		case types.OutcomeWin:
			won = true
		case types.OutcomeLoss:
			won = false
		default:
			continue // VOID carries no information
		}
		total++

		bump := func(m map[key]*counts, k key) {
			c, ok := m[k]
			if !ok {
				c = &counts{}
				m[k] = c
			}
			if won {
				c.wins++
			} else {
				c.losses++
			}
		}

		cat, ok := byCat[s.Category]
		if !ok {
			cat = make(map[key]*counts)
			byCat[s.Category] = cat
		}

		for _, k := range featureKeys(s) {
			bump(global, k)
			bump(cat, k)
		}

		ck := s.VWAPPosition + "|" + s.RSIZone
		c, ok := combo[ck]
		if !ok {
			c = &counts{}
			combo[ck] = c
		}
		if won {
			c.wins++
		} else {
			c.losses++
		}
	}

	toMultiplier := func(c *counts, clampAt float64) float64 {
		n := c.wins + c.losses
		if n == 0 {
			return 1.0
		}
		winRate := float64(c.wins) / float64(n)
		conf := float64(n) / confSaturation
		if conf > 1 {
			conf = 1
		}
		w := (winRate - 0.5) * 2 * conf
		if w > clampAt {
			w = clampAt
		}
		if w < -clampAt {
			w = -clampAt
		}
		return 1 + w
	}

	t := &tables{
		global:     make(map[key]float64, len(global)),
		byCategory: make(map[string]map[key]float64, len(byCat)),
		combo:      make(map[string]float64, len(combo)),
		settled:    total,
	}
	for k, c := range global {
		t.global[k] = toMultiplier(c, weightClamp)
	}
	for cat, m := range byCat {
		out := make(map[key]float64, len(m))
		for k, c := range m {
			out[k] = toMultiplier(c, weightClamp)
		}
		t.byCategory[cat] = out
	}
	for k, c := range combo {
		t.combo[k] = toMultiplier(c, comboClamp)
	}
	return t
}

func featureKeys(s *store.Signal) []key {
	return []key{
		{types.FeatVWAPPosition, s.VWAPPosition},
		{types.FeatVWAPSlope, s.VWAPSlopeDir},
		{types.FeatRSIZone, s.RSIZone},
		{types.FeatMACDState, s.MACDState},
		{types.FeatHeikenColor, s.HeikenColor},
		{types.FeatOBZone, s.OBZone},
		{types.FeatVolRegime, s.VolRegime},
	}
}

// recordDeltas appends an audit entry for every weight that moved by more
// than the audit threshold between versions.
func (l *Learner) recordDeltas(old, next *tables) {
	if old == nil {
		return
	}
	now := time.Now()
	var deltas []WeightDelta

	for k, nv := range next.global {
		ov, ok := old.global[k]
		if !ok {
			ov = 1.0
		}
		if abs(nv-ov) > auditThreshold {
			deltas = append(deltas, WeightDelta{
				Version: next.version,
				Feature: k.feature,
				Value:   k.value,
				Old:     ov,
				New:     nv,
				At:      now,
			})
		}
	}
	for cat, m := range next.byCategory {
		oldCat := old.byCategory[cat]
		for k, nv := range m {
			ov := 1.0
			if oldCat != nil {
				if v, ok := oldCat[k]; ok {
					ov = v
				}
			}
			if abs(nv-ov) > auditThreshold {
				deltas = append(deltas, WeightDelta{
					Version:  next.version,
					Category: cat,
					Feature:  k.feature,
					Value:    k.value,
					Old:      ov,
					New:      nv,
					At:       now,
				})
			}
		}
	}

	if len(deltas) == 0 {
		return
	}

	l.auditMu.Lock()
	l.audit = append(l.audit, deltas...)
	if len(l.audit) > auditRingSize {
		l.audit = l.audit[len(l.audit)-auditRingSize:]
	}
	l.auditMu.Unlock()

	l.log.Info("weight deltas recorded", "version", next.version, "count", len(deltas))
}

// Audit returns a copy of the recorded weight-delta ring.
func (l *Learner) Audit() []WeightDelta {
	l.auditMu.Lock()
	defer l.auditMu.Unlock()
	out := make([]WeightDelta, len(l.audit))
	copy(out, l.audit)
	return out
}

// Drift returns the current drift report against the baseline snapshot.
func (l *Learner) Drift() DriftReport {
	return l.drift.Report(l.current.Load())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
