package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"polymarket-scanner/internal/config"
	"polymarket-scanner/pkg/types"
)

const srcKlines = "macro_klines"

// MacroClient fetches OHLCV klines for the macro symbol and exposes the
// streamed last price when the trade stream is running. REST is the
// fallback when the stream has no data.
type MacroClient struct {
	http     *resty.Client
	rl       *RateLimiter
	breakers *breakerSet
	stream   *TradeStream // nil when streaming is disabled
	log      *slog.Logger
}

// NewMacroClient creates the kline REST client. stream may be nil.
func NewMacroClient(cfg config.MacroConfig, health *HealthRegistry, stream *TradeStream, log *slog.Logger) *MacroClient {
	return &MacroClient{
		http:     newRESTClient(cfg.RESTBaseURL),
		rl:       NewRateLimiter(),
		breakers: newBreakerSet(health, log),
		stream:   stream,
		log:      log.With("component", "macro"),
	}
}

// Klines fetches up to limit OHLCV bars. The upstream returns each bar as a
// positional JSON array: [openTime, open, high, low, close, volume, ...].
func (m *MacroClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	if err := m.rl.Klines.Wait(ctx); err != nil {
		return nil, err
	}

	var rows [][]interface{}
	err := m.breakers.do(srcKlines, func() error {
		resp, err := m.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":   symbol,
				"interval": interval,
				"limit":    strconv.Itoa(limit),
			}).
			SetResult(&rows).
			Get("/api/v3/klines")
		return checkResp(resp, err, "klines")
	})
	if err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseKline(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// LastPrice returns the most recent streamed trade price for the symbol.
// Never blocks; ok is false when the stream is off or has seen no trades.
func (m *MacroClient) LastPrice(symbol string) (float64, bool) {
	if m.stream == nil {
		return 0, false
	}
	return m.stream.LastPrice(symbol)
}

func parseKline(row []interface{}) (types.Candle, error) {
	if len(row) < 6 {
		return types.Candle{}, fmt.Errorf("klines: short row, %d fields", len(row))
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return types.Candle{}, fmt.Errorf("klines: bad open time %v", row[0])
	}

	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return types.Candle{}, fmt.Errorf("klines: field %d not a string", i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Candle{}, fmt.Errorf("klines: parse field %d: %w", i, err)
		}
		vals[i-1] = v
	}

	return types.Candle{
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
		Start:  time.UnixMilli(int64(openTime)),
	}, nil
}
