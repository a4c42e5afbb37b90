// stream.go implements the macro trade stream. The stream is strictly
// read-last-price: consumers call LastPrice and never block on the socket.
// The connection auto-reconnects with exponential backoff (1s → 30s max)
// and a read deadline so silent server failures are detected.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamReadTimeout  = 90 * time.Second
	maxReconnectWait   = 30 * time.Second
	initialReconnect   = time.Second
	streamWriteTimeout = 10 * time.Second
)

// TradeStream consumes a trade websocket for one symbol and keeps the
// latest price. A failed or absent stream just leaves LastPrice empty;
// callers fall back to REST.
type TradeStream struct {
	url    string
	symbol string
	log    *slog.Logger

	mu       sync.RWMutex
	last     float64
	lastSeen time.Time
}

// NewTradeStream creates a stream for one symbol. url is the full stream
// endpoint, e.g. "wss://stream.binance.com:9443/ws/btcusdt@trade".
func NewTradeStream(url, symbol string, log *slog.Logger) *TradeStream {
	return &TradeStream{
		url:    url,
		symbol: strings.ToUpper(symbol),
		log:    log.With("component", "trade_stream", "symbol", symbol),
	}
}

// LastPrice returns the latest streamed price. ok is false before the
// first trade or when the last trade is older than the read timeout.
func (s *TradeStream) LastPrice(symbol string) (float64, bool) {
	if strings.ToUpper(symbol) != s.symbol {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == 0 || time.Since(s.lastSeen) > streamReadTimeout {
		return 0, false
	}
	return s.last, true
}

// Run connects and maintains the stream with auto-reconnect. Blocks until
// ctx is cancelled.
func (s *TradeStream) Run(ctx context.Context) error {
	backoff := initialReconnect

	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.log.Warn("trade stream disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (s *TradeStream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Closing the conn is the only way to interrupt a blocked ReadMessage,
	// so a watcher closes it as soon as ctx is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	// The server pings; answering pongs is enough to keep the stream alive.
	conn.SetPingHandler(func(appData string) error {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	s.log.Info("trade stream connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		s.handleMessage(msg)
	}
}

func (s *TradeStream) handleMessage(data []byte) {
	var trade struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
	}
	if err := json.Unmarshal(data, &trade); err != nil || trade.Price == "" {
		return
	}

	p, err := strconv.ParseFloat(trade.Price, 64)
	if err != nil {
		s.log.Debug("bad trade price", "price", trade.Price)
		return
	}

	s.mu.Lock()
	s.last = p
	s.lastSeen = time.Now()
	s.mu.Unlock()
}
