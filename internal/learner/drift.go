package learner

import (
	"sync"
	"time"
)

const driftThreshold = 0.20

// DriftSeverity grades how far the live weights have wandered from baseline.
type DriftSeverity string

const (
	DriftNone   DriftSeverity = "none"
	DriftLow    DriftSeverity = "low"
	DriftMedium DriftSeverity = "medium"
	DriftHigh   DriftSeverity = "high"
)

// DriftItem is one weight diverging from its baseline value.
type DriftItem struct {
	Feature  string  `json:"feature"`
	Value    string  `json:"value"`
	Baseline float64 `json:"baseline"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
}

// DriftReport summarizes divergence of the current tables from baseline.
type DriftReport struct {
	Severity   DriftSeverity `json:"severity"`
	Items      []DriftItem   `json:"items,omitempty"`
	BaselineAt time.Time     `json:"baselineAt,omitempty"`
}

// DriftDetector keeps the first meaningful table build as a baseline and
// flags weights that later diverge by more than the threshold.
type DriftDetector struct {
	mu         sync.Mutex
	baseline   map[key]float64
	baselineAt time.Time
}

func NewDriftDetector() *DriftDetector {
	return &DriftDetector{}
}

// Observe captures the baseline on the first build that has learned weights.
func (d *DriftDetector) Observe(t *tables) {
	if t == nil || len(t.global) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.baseline != nil {
		return
	}
	d.baseline = make(map[key]float64, len(t.global))
	for k, v := range t.global {
		d.baseline[k] = v
	}
	d.baselineAt = time.Now()
}

// Report compares the current global table to the baseline.
func (d *DriftDetector) Report(t *tables) DriftReport {
	d.mu.Lock()
	defer d.mu.Unlock()

	report := DriftReport{Severity: DriftNone, BaselineAt: d.baselineAt}
	if d.baseline == nil || t == nil {
		return report
	}

	for k, base := range d.baseline {
		cur, ok := t.global[k]
		if !ok {
			cur = 1.0
		}
		if delta := abs(cur - base); delta > driftThreshold {
			report.Items = append(report.Items, DriftItem{
				Feature:  k.feature,
				Value:    k.value,
				Baseline: base,
				Current:  cur,
				Delta:    delta,
			})
		}
	}

	switch n := len(report.Items); {
	case n == 0:
		report.Severity = DriftNone
	case n <= 2:
		report.Severity = DriftLow
	case n <= 5:
		report.Severity = DriftMedium
	default:
		report.Severity = DriftHigh
	}
	return report
}
