// Package poller runs the per-market pipeline: fetch candles and books,
// compute indicators, score, decide, enrich with flow/confidence/Kelly,
// and assemble one Tick per poll. Each market has exactly one Poller.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"polymarket-scanner/internal/config"
	"polymarket-scanner/internal/correlation"
	"polymarket-scanner/internal/fetch"
	"polymarket-scanner/internal/indicator"
	"polymarket-scanner/internal/regime"
	"polymarket-scanner/internal/scoring"
	"polymarket-scanner/pkg/types"
)

// ok=false tick reason codes.
const (
	ReasonMissingTokenIDs = "missing_token_ids"
	ReasonNoCandles       = "no_candles"
	ReasonFetchFailed     = "fetch_failed"
	ReasonCircuitOpen     = "circuit_open"
)

const (
	historyInterval = "1m"
	historyFidelity = 1
	klineLimit      = 120
	candleWidth     = time.Minute
)

// DataSource is the CLOB data surface the poller needs. Implemented by
// fetch.Client.
type DataSource interface {
	Book(ctx context.Context, tokenID string) (*types.BookSnapshot, error)
	PriceHistory(ctx context.Context, tokenID, interval string, fidelity int) ([]types.PricePoint, error)
	BestPrices(ctx context.Context, tokenID string) (buy, sell float64, err error)
}

// MacroSource supplies underlying-asset candles for crypto markets.
// Implemented by fetch.MacroClient.
type MacroSource interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
}

// ComboSource supplies the learned joint (vwap_position, rsi_zone)
// multiplier. Implemented by the learner.
type ComboSource interface {
	ComboMultiplier(vwapPos, rsiZone string) float64
}

// UnitCombo is the no-learning fallback combo source.
type UnitCombo struct{}

func (UnitCombo) ComboMultiplier(_, _ string) float64 { return 1.0 }

// Poller evaluates one market per poll.
type Poller struct {
	market  types.Market
	data    DataSource
	macro   MacroSource
	corr    *correlation.Tracker
	weights scoring.WeightSource
	combo   ComboSource
	regimes *regime.Tracker
	cfg     config.ScannerConfig
	log     *slog.Logger

	lastTick types.Tick
	hasTick  bool
}

// New creates a poller for one market. weights and combo may be nil, in
// which case unit multipliers apply.
func New(market types.Market, data DataSource, macro MacroSource, corr *correlation.Tracker,
	weights scoring.WeightSource, combo ComboSource, cfg config.ScannerConfig, log *slog.Logger) *Poller {
	if weights == nil {
		weights = scoring.UnitWeights{}
	}
	if combo == nil {
		combo = UnitCombo{}
	}
	return &Poller{
		market:  market,
		data:    data,
		macro:   macro,
		corr:    corr,
		weights: weights,
		combo:   combo,
		regimes: regime.NewTracker(),
		cfg:     cfg,
		log:     log.With("component", "poller", "market", market.Slug),
	}
}

// Market returns the market this poller evaluates.
func (p *Poller) Market() types.Market { return p.market }

// UpdateMarket refreshes catalog-derived attributes after rediscovery.
func (p *Poller) UpdateMarket(m types.Market) { p.market = m }

// LastTick returns the most recent tick, if any.
func (p *Poller) LastTick() (types.Tick, bool) { return p.lastTick, p.hasTick }

// Poll runs one full pipeline pass and returns the assembled tick.
func (p *Poller) Poll(ctx context.Context) types.Tick {
	now := time.Now()
	tick := types.Tick{
		MarketID: p.market.ID,
		Question: p.market.Question,
		Category: p.market.Category,
		Time:     now,
		Signal:   "NO TRADE",
	}

	if p.market.YesTokenID == "" || p.market.NoTokenID == "" {
		tick.Reason = ReasonMissingTokenIDs
		return p.finish(tick)
	}

	candles, yesBook, noBook, err := p.fetchAll(ctx)
	if err != nil {
		tick.Reason = ReasonFetchFailed
		if errors.Is(err, fetch.ErrCircuitOpen) {
			tick.Reason = ReasonCircuitOpen
		}
		p.log.Warn("poll fetch failed", "reason", tick.Reason, "error", err)
		return p.finish(tick)
	}
	if len(candles) == 0 {
		tick.Reason = ReasonNoCandles
		return p.finish(tick)
	}

	depth := indicator.SummarizeDepth(yesBook)
	snap := indicator.BuildSnapshot(candles, depth)
	tick.Indicators = snap

	// Regime and volatility gates.
	tick.Regime = p.regimes.Observe(regime.Classify(snap), now)
	vol, volMult := regime.ClassifyVol(snap.ATRPct, p.market.IsCrypto())
	tick.Volatility = vol

	// Score and shrink toward 0.5 by time decay.
	scored := scoring.Score(snap, p.weights, p.market.Category)
	remaining := p.market.SettlementMinutes(now)
	horizon := p.horizon(remaining)
	prob := scoring.TimeDecay(scored.RawUp, remaining, horizon)
	prob.Degenerate = scored.Degenerate
	tick.Prob = prob
	tick.SettlementMins = remaining

	// Live prices, with cached gamma prices as fallback.
	yesPrice, noPrice := p.livePrices(ctx)
	tick.Prices = types.Prices{Last: snap.LastClose, Yes: yesPrice, No: noPrice}
	tick.Liquidity = p.market.Liquidity

	// Raw edges, then correlation and learned-combo scaling.
	edges := types.Edges{
		Up:   prob.AdjustedUp - yesPrice,
		Down: prob.AdjustedDown - noPrice,
	}
	_, provisional := edges.Best()

	shortDated := remaining <= p.cfg.Horizons.CryptoShortMaxMin
	corrAdj := 1.0
	var macroState types.MacroState
	if p.corr != nil {
		macroState = p.corr.State(ctx)
		corrAdj = correlation.Adjust(p.market, provisional, macroState, shortDated)
	}
	comboMult := p.combo.ComboMultiplier(
		types.ClassifyVWAPPosition(snap.LastClose, snap.VWAP),
		types.ClassifyRSIZone(rsiOr50(snap)),
	)
	edges.Up *= corrAdj * comboMult
	edges.Down *= corrAdj * comboMult
	tick.Edge = edges
	tick.CorrelationAdj = corrAdj

	// Multi-timeframe confluence on the provisional side.
	aligned, conflicting := p.confluence(candles, provisional)

	rec := scoring.Decide(scoring.DecisionInput{
		Edges:          edges,
		BaseThreshold:  p.cfg.BaseEdgeThreshold,
		VolMultiplier:  volMult,
		ConfluenceMult: 1 + 0.1*float64(aligned),
		Regime:         tick.Regime.Regime,
		RemainingMins:  remaining,
		Horizon:        horizon,
	})
	tick.Rec = rec
	tick.Signal = types.SignalString(rec)

	flow := scoring.AnalyzeFlow(yesBook, noBook, rec.Side)
	tick.Flow = flow.Flow

	bestEdge, _ := edges.Best()
	conf := scoring.Compose(scoring.ConfidenceInput{
		Edge:       bestEdge,
		Scored:     scored,
		AlignedTF:  aligned,
		ConflictTF: conflicting,
		CorrAdj:    corrAdj,
		Volatility: vol,
		Flow:       flow,
		Decay:      prob.Decay,
		Regime:     tick.Regime.Regime,
		Side:       rec.Side,
	})
	tick.Confidence = conf

	sidePrice := yesPrice
	sideProb := prob.AdjustedUp
	if rec.Side == types.DOWN {
		sidePrice = noPrice
		sideProb = prob.AdjustedDown
	}
	tick.Kelly = scoring.Size(sideProb, sidePrice, conf.Tier)

	tick.OK = true
	return p.finish(tick)
}

func (p *Poller) finish(tick types.Tick) types.Tick {
	p.lastTick = tick
	p.hasTick = true
	return tick
}

// fetchAll pulls the candle series and both outcome books concurrently.
func (p *Poller) fetchAll(ctx context.Context) (candles []types.Candle, yesBook, noBook *types.BookSnapshot, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		candles, err = p.candles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		yesBook, err = p.data.Book(gctx, p.market.YesTokenID)
		return err
	})
	g.Go(func() error {
		var err error
		noBook, err = p.data.Book(gctx, p.market.NoTokenID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return candles, yesBook, noBook, nil
}

// candles returns underlying-asset klines for crypto markets, or synthetic
// candles bucketed from the YES token's price history otherwise.
func (p *Poller) candles(ctx context.Context) ([]types.Candle, error) {
	if p.market.IsCrypto() && p.macro != nil {
		if sym := underlyingSymbol(p.market.Question); sym != "" {
			return p.macro.Klines(ctx, sym, historyInterval, klineLimit)
		}
	}
	points, err := p.data.PriceHistory(ctx, p.market.YesTokenID, historyInterval, historyFidelity)
	if err != nil {
		return nil, err
	}
	return indicator.BucketTicks(points, candleWidth), nil
}

// livePrices fetches the current buy prices for both tokens, falling back
// to the cached gamma prices when the live endpoint is unavailable.
func (p *Poller) livePrices(ctx context.Context) (yes, no float64) {
	yes, no = p.market.YesPrice, p.market.NoPrice

	if buy, _, err := p.data.BestPrices(ctx, p.market.YesTokenID); err == nil && buy > 0 {
		yes = buy
	}
	if buy, _, err := p.data.BestPrices(ctx, p.market.NoTokenID); err == nil && buy > 0 {
		no = buy
	}
	return yes, no
}

// confluence rebuilds the indicator stack at 5m and 15m widths and counts
// how many of the three timeframes agree with the provisional side.
func (p *Poller) confluence(oneMin []types.Candle, side types.Side) (aligned, conflicting int) {
	for _, factor := range []int{1, 5, 15} {
		candles := indicator.Rebucket(oneMin, factor)
		if len(candles) < 2 {
			continue
		}
		vwaps := indicator.VWAPSeries(candles)
		last := candles[len(candles)-1].Close
		vwap := vwaps[len(vwaps)-1]
		slope := indicator.VWAPSlope(vwaps, indicator.SlopeLookback)

		var tf types.Side
		switch {
		case last > vwap && slope >= 0:
			tf = types.UP
		case last < vwap && slope <= 0:
			tf = types.DOWN
		default:
			continue // mixed timeframe, no vote
		}
		if tf == side {
			aligned++
		} else {
			conflicting++
		}
	}
	return aligned, conflicting
}

// horizon picks the indicator horizon H for this market.
func (p *Poller) horizon(remainingMins float64) float64 {
	h := p.cfg.Horizons
	if !p.market.IsCrypto() {
		return h.Default
	}
	if remainingMins <= h.CryptoShortMaxMin {
		return h.CryptoShort
	}
	return h.CryptoLong
}

func rsiOr50(snap types.IndicatorSnapshot) float64 {
	if snap.RSI != nil {
		return *snap.RSI
	}
	return 50
}

// underlyingSymbol maps a crypto market question to its kline symbol.
func underlyingSymbol(question string) string {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "bitcoin") || strings.Contains(q, "btc"):
		return "BTCUSDT"
	case strings.Contains(q, "ethereum") || strings.Contains(q, "eth"):
		return "ETHUSDT"
	case strings.Contains(q, "solana") || strings.Contains(q, "sol"):
		return "SOLUSDT"
	default:
		return ""
	}
}
