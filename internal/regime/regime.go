// Package regime classifies price action into qualitative regimes
// (TREND_UP, TREND_DOWN, RANGE, CHOP) and volatility classes, and tracks
// per-market regime transitions for the stability score.
package regime

import (
	"sync"
	"time"

	"polymarket-scanner/pkg/types"
)

const (
	flatBand       = 0.001 // |price−vwap|/vwap below this is "flat"
	lowVolumeShare = 0.5   // recent volume under half the average is "low"
	crossThreshold = 3

	transitionRing  = 20
	stabilityWindow = 60 * time.Minute
	holdSaturation  = 30.0 // minutes of hold that saturate stability at 100
	transitionCost  = 15.0 // stability penalty per recent transition
)

// Classification is a regime with the rule that produced it.
type Classification struct {
	Regime types.Regime
	Reason string
}

// Classify derives the regime from the indicator snapshot. The rule order
// matters: a dead flat low-volume tape is CHOP even if price sits a hair
// above VWAP.
func Classify(snap types.IndicatorSnapshot) Classification {
	price, vwap := snap.LastClose, snap.VWAP

	lowVolume := snap.AvgVolume > 0 && snap.RecentVolume < snap.AvgVolume*lowVolumeShare
	flat := vwap != 0 && abs(price-vwap)/vwap < flatBand
	if lowVolume && flat {
		return Classification{Regime: types.Chop, Reason: "low_volume_flat"}
	}

	if price > vwap && snap.VWAPSlope > 0 {
		return Classification{Regime: types.TrendUp, Reason: "above_vwap_rising"}
	}
	if price < vwap && snap.VWAPSlope < 0 {
		return Classification{Regime: types.TrendDown, Reason: "below_vwap_falling"}
	}

	if snap.VWAPCrossCount >= crossThreshold {
		return Classification{Regime: types.Range, Reason: "frequent_cross"}
	}
	return Classification{Regime: types.Range, Reason: "default"}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Transition records one regime change.
type Transition struct {
	From     types.Regime
	To       types.Regime
	At       time.Time
	Duration time.Duration // how long From was held
}

// Tracker maintains regime history for one market. Each market's poller is
// the only writer; reads are still mutex-guarded for the engine's snapshot
// accessors.
type Tracker struct {
	mu          sync.Mutex
	current     types.Regime
	enteredAt   time.Time
	transitions []Transition // ring of the last transitionRing transitions
}

// NewTracker creates an empty per-market tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe folds a new classification into the history and returns the
// RegimeState for the tick:
//
//	stability = min(100, holdMinutes/30 × 100) − 15 × transitions(last 60m)
//
// clamped to [0, 100].
func (t *Tracker) Observe(c Classification, now time.Time) types.RegimeState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enteredAt.IsZero() {
		t.current = c.Regime
		t.enteredAt = now
	} else if c.Regime != t.current {
		t.transitions = append(t.transitions, Transition{
			From:     t.current,
			To:       c.Regime,
			At:       now,
			Duration: now.Sub(t.enteredAt),
		})
		if len(t.transitions) > transitionRing {
			t.transitions = t.transitions[len(t.transitions)-transitionRing:]
		}
		t.current = c.Regime
		t.enteredAt = now
	}

	recent := 0
	cutoff := now.Add(-stabilityWindow)
	for _, tr := range t.transitions {
		if tr.At.After(cutoff) {
			recent++
		}
	}

	holdMinutes := now.Sub(t.enteredAt).Minutes()
	stability := holdMinutes / holdSaturation * 100
	if stability > 100 {
		stability = 100
	}
	stability -= transitionCost * float64(recent)
	if stability < 0 {
		stability = 0
	}

	return types.RegimeState{
		Regime:            t.current,
		Reason:            c.Reason,
		Stability:         stability,
		RecentTransitions: recent,
	}
}

// Transitions returns a copy of the recorded transition ring.
func (t *Tracker) Transitions() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}
