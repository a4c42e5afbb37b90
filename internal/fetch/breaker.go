package fetch

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Sentinel errors surfaced to pollers. Terminal errors are never retried;
// circuit-open errors are returned without a network attempt.
var (
	ErrCircuitOpen = errors.New("circuit open")
	ErrTerminal    = errors.New("terminal client error")
)

const (
	breakerTripConsecutive = 5
	breakerOpenFor         = 60 * time.Second
)

// breakerSet holds one circuit breaker per named source. Breakers are
// created lazily on first use so new sources need no registration.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	health   *HealthRegistry
	log      *slog.Logger
}

func newBreakerSet(health *HealthRegistry, log *slog.Logger) *breakerSet {
	return &breakerSet{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		health:   health,
		log:      log,
	}
}

func (b *breakerSet) get(source string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[source]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    source,
		Timeout: breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripConsecutive
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			open := to == gobreaker.StateOpen
			b.health.SetCircuit(name, open)
			b.log.Warn("circuit state change", "source", name, "from", from.String(), "to", to.String())
		},
	})
	b.breakers[source] = cb
	return cb
}

// do runs fn through the source's breaker and records health. Terminal
// client errors pass through without counting toward the trip threshold,
// so a delisted market cannot open the circuit for everyone else.
func (b *breakerSet) do(source string, fn func() error) error {
	start := time.Now()
	var callErr error
	_, err := b.get(source).Execute(func() (interface{}, error) {
		callErr = fn()
		if callErr != nil && errors.Is(callErr, ErrTerminal) {
			return nil, nil
		}
		return nil, callErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.health.Observe(source, time.Since(start), ErrCircuitOpen)
		return ErrCircuitOpen
	}
	b.health.Observe(source, time.Since(start), callErr)
	return callErr
}
