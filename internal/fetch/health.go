package fetch

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const latencyWindow = 20

var (
	fetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scanner_fetch_requests_total",
		Help: "Upstream fetch attempts by source and result.",
	}, []string{"source", "result"})

	fetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scanner_fetch_latency_seconds",
		Help:    "Upstream fetch latency by source.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	circuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scanner_fetch_circuit_open",
		Help: "1 when the source's circuit breaker is open.",
	}, []string{"source"})
)

// SourceHealth is a point-in-time view of one upstream source.
type SourceHealth struct {
	Source            string        `json:"source"`
	TotalCalls        int64         `json:"totalCalls"`
	ErrorCount        int64         `json:"errorCount"`
	ConsecutiveErrors int           `json:"consecutiveErrors"`
	AvgLatency        time.Duration `json:"avgLatency"` // over the rolling window
	LastError         string        `json:"lastError,omitempty"`
	LastErrorAt       time.Time     `json:"lastErrorAt,omitempty"`
	CircuitOpen       bool          `json:"circuitOpen"`
}

type sourceStats struct {
	total       int64
	errors      int64
	consecutive int
	latencies   []time.Duration // ring, most recent last
	lastError   string
	lastErrorAt time.Time
	circuitOpen bool
}

// HealthRegistry tracks per-source call stats and mirrors them to prometheus.
type HealthRegistry struct {
	mu      sync.Mutex
	sources map[string]*sourceStats
}

func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{sources: make(map[string]*sourceStats)}
}

func (h *HealthRegistry) stats(source string) *sourceStats {
	s, ok := h.sources[source]
	if !ok {
		s = &sourceStats{}
		h.sources[source] = s
	}
	return s
}

// Observe records one completed call against a source.
func (h *HealthRegistry) Observe(source string, latency time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	fetchRequests.WithLabelValues(source, result).Inc()
	fetchLatency.WithLabelValues(source).Observe(latency.Seconds())

	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.stats(source)
	s.total++
	s.latencies = append(s.latencies, latency)
	if len(s.latencies) > latencyWindow {
		s.latencies = s.latencies[len(s.latencies)-latencyWindow:]
	}
	if err != nil {
		s.errors++
		s.consecutive++
		s.lastError = err.Error()
		s.lastErrorAt = time.Now()
	} else {
		s.consecutive = 0
	}
}

// SetCircuit records the breaker state for a source.
func (h *HealthRegistry) SetCircuit(source string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	circuitState.WithLabelValues(source).Set(v)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats(source).circuitOpen = open
}

// Snapshot returns the health of every tracked source.
func (h *HealthRegistry) Snapshot() map[string]SourceHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]SourceHealth, len(h.sources))
	for name, s := range h.sources {
		var sum time.Duration
		for _, l := range s.latencies {
			sum += l
		}
		var avg time.Duration
		if len(s.latencies) > 0 {
			avg = sum / time.Duration(len(s.latencies))
		}
		out[name] = SourceHealth{
			Source:            name,
			TotalCalls:        s.total,
			ErrorCount:        s.errors,
			ConsecutiveErrors: s.consecutive,
			AvgLatency:        avg,
			LastError:         s.lastError,
			LastErrorAt:       s.lastErrorAt,
			CircuitOpen:       s.circuitOpen,
		}
	}
	return out
}
