package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"polymarket-scanner/internal/config"
	"polymarket-scanner/internal/fetch"
	"polymarket-scanner/pkg/types"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeData struct {
	points    []types.PricePoint
	pointsErr error

	books   map[string]*types.BookSnapshot
	bookErr error

	buy      map[string]float64
	priceErr error

	historyCalls int
}

func (f *fakeData) Book(_ context.Context, tokenID string) (*types.BookSnapshot, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return f.books[tokenID], nil
}

func (f *fakeData) PriceHistory(_ context.Context, _, _ string, _ int) ([]types.PricePoint, error) {
	f.historyCalls++
	if f.pointsErr != nil {
		return nil, f.pointsErr
	}
	return f.points, nil
}

func (f *fakeData) BestPrices(_ context.Context, tokenID string) (float64, float64, error) {
	if f.priceErr != nil {
		return 0, 0, f.priceErr
	}
	p := f.buy[tokenID]
	return p, p, nil
}

type fakeMacro struct {
	symbol  string
	candles []types.Candle
}

func (f *fakeMacro) Klines(_ context.Context, symbol, _ string, _ int) ([]types.Candle, error) {
	f.symbol = symbol
	return f.candles, nil
}

func scannerConfig() config.ScannerConfig {
	return config.ScannerConfig{
		BaseEdgeThreshold: 0.05,
		Horizons: config.HorizonConfig{
			CryptoShort:       15,
			CryptoLong:        60,
			Default:           240,
			CryptoShortMaxMin: 90,
		},
	}
}

func testMarket() types.Market {
	return types.Market{
		ID:         "m1",
		Slug:       "will-x-win",
		Question:   "Will X win?",
		Category:   "politics",
		YesTokenID: "tok-yes",
		NoTokenID:  "tok-no",
		YesPrice:   0.50,
		NoPrice:    0.50,
		Liquidity:  10000,
		EndDate:    time.Now().Add(2 * time.Hour),
	}
}

// uptrendPoints is one price tick per minute, rising steadily.
func uptrendPoints(n int) []types.PricePoint {
	base := int64(1700000040)
	out := make([]types.PricePoint, n)
	for i := range out {
		out[i] = types.PricePoint{T: base + int64(i)*60, P: 0.40 + float64(i)*0.002}
	}
	return out
}

func bidHeavyBooks() map[string]*types.BookSnapshot {
	return map[string]*types.BookSnapshot{
		"tok-yes": {
			Bids: []types.PriceLevel{{Price: "0.50", Size: "2000"}},
			Asks: []types.PriceLevel{{Price: "0.52", Size: "100"}},
		},
		"tok-no": {
			Bids: []types.PriceLevel{{Price: "0.48", Size: "100"}},
			Asks: []types.PriceLevel{{Price: "0.50", Size: "2000"}},
		},
	}
}

func TestPollMissingTokenIDs(t *testing.T) {
	t.Parallel()
	m := testMarket()
	m.YesTokenID = ""
	p := New(m, &fakeData{}, nil, nil, nil, nil, scannerConfig(), discard())

	tick := p.Poll(context.Background())
	if tick.OK {
		t.Fatal("tick.OK = true, want false")
	}
	if tick.Reason != ReasonMissingTokenIDs {
		t.Errorf("reason = %q, want %q", tick.Reason, ReasonMissingTokenIDs)
	}

	// The failed tick is still cached for the engine.
	if last, ok := p.LastTick(); !ok || last.Reason != ReasonMissingTokenIDs {
		t.Errorf("lastTick = %+v/%v", last, ok)
	}
}

func TestPollFetchFailureReasons(t *testing.T) {
	t.Parallel()
	data := &fakeData{bookErr: errors.New("upstream 502")}
	p := New(testMarket(), data, nil, nil, nil, nil, scannerConfig(), discard())
	if tick := p.Poll(context.Background()); tick.Reason != ReasonFetchFailed {
		t.Errorf("reason = %q, want %q", tick.Reason, ReasonFetchFailed)
	}

	data = &fakeData{bookErr: fmt.Errorf("book: %w", fetch.ErrCircuitOpen)}
	p = New(testMarket(), data, nil, nil, nil, nil, scannerConfig(), discard())
	if tick := p.Poll(context.Background()); tick.Reason != ReasonCircuitOpen {
		t.Errorf("reason = %q, want %q", tick.Reason, ReasonCircuitOpen)
	}
}

func TestPollNoCandles(t *testing.T) {
	t.Parallel()
	data := &fakeData{books: bidHeavyBooks()}
	p := New(testMarket(), data, nil, nil, nil, nil, scannerConfig(), discard())

	if tick := p.Poll(context.Background()); tick.Reason != ReasonNoCandles {
		t.Errorf("reason = %q, want %q", tick.Reason, ReasonNoCandles)
	}
}

func TestPollEntersOnStrongUptrend(t *testing.T) {
	t.Parallel()
	data := &fakeData{
		points: uptrendPoints(60),
		books:  bidHeavyBooks(),
		buy:    map[string]float64{"tok-yes": 0.50, "tok-no": 0.50},
	}
	p := New(testMarket(), data, nil, nil, nil, nil, scannerConfig(), discard())

	tick := p.Poll(context.Background())
	if !tick.OK {
		t.Fatalf("tick not OK: reason %q", tick.Reason)
	}
	if tick.Rec.Action != types.ENTER || tick.Rec.Side != types.UP {
		t.Fatalf("rec = %+v, want ENTER UP", tick.Rec)
	}
	if tick.Signal != "BUY YES" {
		t.Errorf("signal = %q, want BUY YES", tick.Signal)
	}
	if tick.Edge.Up <= 0.05 {
		t.Errorf("edge = %v, want above base threshold", tick.Edge.Up)
	}
	if tick.Kelly.BetPct <= 0 {
		t.Errorf("betPct = %v, want positive sizing on a strong signal", tick.Kelly.BetPct)
	}
	if tick.Prices.Yes != 0.50 {
		t.Errorf("yes price = %v, want live 0.50", tick.Prices.Yes)
	}
	if tick.Regime.Regime != types.TrendUp {
		t.Errorf("regime = %v, want TREND_UP", tick.Regime.Regime)
	}
	if tick.CorrelationAdj != 1.0 {
		t.Errorf("corrAdj = %v, want 1.0 without a macro tracker", tick.CorrelationAdj)
	}
}

func TestPollFallsBackToGammaPrices(t *testing.T) {
	t.Parallel()
	data := &fakeData{
		points:   uptrendPoints(60),
		books:    bidHeavyBooks(),
		priceErr: errors.New("price endpoint down"),
	}
	m := testMarket()
	m.YesPrice, m.NoPrice = 0.42, 0.58
	p := New(m, data, nil, nil, nil, nil, scannerConfig(), discard())

	tick := p.Poll(context.Background())
	if !tick.OK {
		t.Fatalf("tick not OK: reason %q", tick.Reason)
	}
	if tick.Prices.Yes != 0.42 || tick.Prices.No != 0.58 {
		t.Errorf("prices = %v/%v, want the cached gamma prices", tick.Prices.Yes, tick.Prices.No)
	}
}

func TestPollCryptoMarketUsesKlines(t *testing.T) {
	t.Parallel()
	data := &fakeData{
		books: bidHeavyBooks(),
		buy:   map[string]float64{"tok-yes": 0.50, "tok-no": 0.50},
	}
	macro := &fakeMacro{candles: klineCandles(60)}
	m := testMarket()
	m.Category = "crypto"
	m.Question = "Will BTC be above $70k at 3pm?"
	p := New(m, data, macro, nil, nil, nil, scannerConfig(), discard())

	tick := p.Poll(context.Background())
	if !tick.OK {
		t.Fatalf("tick not OK: reason %q", tick.Reason)
	}
	if macro.symbol != "BTCUSDT" {
		t.Errorf("kline symbol = %q, want BTCUSDT", macro.symbol)
	}
	if data.historyCalls != 0 {
		t.Errorf("price history calls = %d, want 0 for a crypto market", data.historyCalls)
	}
}

func klineCandles(n int) []types.Candle {
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	out := make([]types.Candle, n)
	for i := range out {
		c := 70000 + float64(i)*20
		out[i] = types.Candle{
			Open: c - 10, High: c + 15, Low: c - 15, Close: c,
			Volume: 50,
			Start:  start.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestHorizonSelection(t *testing.T) {
	t.Parallel()
	cfg := scannerConfig()

	p := New(testMarket(), &fakeData{}, nil, nil, nil, nil, cfg, discard())
	if got := p.horizon(30); got != 240 {
		t.Errorf("non-crypto horizon = %v, want 240", got)
	}

	m := testMarket()
	m.Category = "crypto"
	p = New(m, &fakeData{}, nil, nil, nil, nil, cfg, discard())
	if got := p.horizon(30); got != 15 {
		t.Errorf("short-dated crypto horizon = %v, want 15", got)
	}
	if got := p.horizon(120); got != 60 {
		t.Errorf("long-dated crypto horizon = %v, want 60", got)
	}
}

func TestUnderlyingSymbol(t *testing.T) {
	t.Parallel()
	cases := []struct {
		question string
		want     string
	}{
		{"Will Bitcoin close above $70k?", "BTCUSDT"},
		{"BTC up or down today?", "BTCUSDT"},
		{"Will Ethereum reach $5k?", "ETHUSDT"},
		{"Will Solana flip ETH?", "ETHUSDT"}, // eth keyword wins by order
		{"Will SOL hit $300?", "SOLUSDT"},
		{"Will X win the election?", ""},
	}
	for _, tc := range cases {
		if got := underlyingSymbol(tc.question); got != tc.want {
			t.Errorf("underlyingSymbol(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}
