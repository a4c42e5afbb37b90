// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the scanner — market metadata,
// candles, order book snapshots, and the Tick record every poll produces.
// It has no dependencies on internal packages, so it can be imported by
// any layer.
package types

import (
	"time"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is the direction a signal recommends: UP (buy YES) or DOWN (buy NO).
type Side string

const (
	UP   Side = "UP"
	DOWN Side = "DOWN"
)

// Action is the decision outcome for one tick.
type Action string

const (
	ENTER Action = "ENTER"
	PASS  Action = "PASS"
)

// Strength classifies how compelling an ENTER signal is.
type Strength string

const (
	StrengthStrong Strength = "STRONG"
	StrengthGood   Strength = "GOOD"
	StrengthWeak   Strength = "WEAK"
)

// Phase encodes where in the market's window a signal fires.
type Phase string

const (
	PhaseEarly Phase = "EARLY"
	PhaseMid   Phase = "MID"
	PhaseLate  Phase = "LATE"
)

// Regime is the qualitative state of price action.
type Regime string

const (
	TrendUp   Regime = "TREND_UP"
	TrendDown Regime = "TREND_DOWN"
	Range     Regime = "RANGE"
	Chop      Regime = "CHOP"
)

// VolRegime classifies volatility against category-calibrated ATR% thresholds.
type VolRegime string

const (
	LowVol    VolRegime = "LOW_VOL"
	NormalVol VolRegime = "NORMAL_VOL"
	HighVol   VolRegime = "HIGH_VOL"
)

// FlowQuality summarizes how deep the order book is around the signal side.
type FlowQuality string

const (
	FlowDeep     FlowQuality = "DEEP"
	FlowModerate FlowQuality = "MODERATE"
	FlowThin     FlowQuality = "THIN"
)

// ConfidenceTier buckets the 0–100 confidence score.
type ConfidenceTier string

const (
	TierHigh    ConfidenceTier = "HIGH"
	TierMedium  ConfidenceTier = "MEDIUM"
	TierLow     ConfidenceTier = "LOW"
	TierVeryLow ConfidenceTier = "VERY_LOW"
)

// Outcome is the settlement result of a persisted signal.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomeVoid Outcome = "VOID"
)

// Bias is the macro market's directional lean.
type Bias string

const (
	BiasBullish  Bias = "BULLISH"
	BiasLeanBull Bias = "LEAN_BULL"
	BiasNeutral  Bias = "NEUTRAL"
	BiasLeanBear Bias = "LEAN_BEAR"
	BiasBearish  Bias = "BEARISH"
)

// HeikenColor is the color of a Heiken-Ashi candle.
type HeikenColor string

const (
	HeikenGreen HeikenColor = "green"
	HeikenRed   HeikenColor = "red"
)

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// Market is the internal representation of a binary prediction market.
// Populated from the Gamma API during discovery. A binary market has exactly
// two outcome tokens (YES and NO) whose prices always sum to ~$1.
type Market struct {
	ID       string // Gamma market ID
	Slug     string // human-readable URL slug
	Question string // the prediction question, e.g. "Will BTC be above $70k?"
	Category string // category tag, e.g. "crypto", "politics"

	YesLabel string // first outcome label, usually "Yes"
	NoLabel  string // second outcome label, usually "No"

	YesTokenID string // CLOB token ID for the YES outcome
	NoTokenID  string // CLOB token ID for the NO outcome

	YesPrice float64 // current gamma price for YES
	NoPrice  float64 // current gamma price for NO

	Liquidity float64   // total USD liquidity estimate
	EndDate   time.Time // settlement timestamp
	Closed    bool      // market has been resolved
	Tags      []string  // optional tag set from the catalog
}

// SettlementMinutes returns minutes until the market's settlement timestamp,
// clamped at zero once the end date has passed.
func (m Market) SettlementMinutes(now time.Time) float64 {
	mins := m.EndDate.Sub(now).Minutes()
	if mins < 0 {
		return 0
	}
	return mins
}

// IsCrypto reports whether the market carries the crypto category tag.
// Matching is case-sensitive on the literal "crypto" tag — the upstream
// catalog uses the lowercase form for the markets correlation applies to.
func (m Market) IsCrypto() bool {
	if m.Category == "crypto" {
		return true
	}
	for _, t := range m.Tags {
		if t == "crypto" {
			return true
		}
	}
	return false
}

// ————————————————————————————————————————————————————————————————————————
// Candles and order book
// ————————————————————————————————————————————————————————————————————————

// Candle is a fixed-width OHLCV bar. For crypto markets it comes from the
// upstream kline API; for CLOB markets it is synthesized by bucketing
// price-history ticks, in which case Volume counts ticks rather than USD.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Start  time.Time
}

// PricePoint is one entry of the CLOB price-history endpoint.
type PricePoint struct {
	T int64   `json:"t"` // unix seconds
	P float64 `json:"p"` // price in [0, 1]
}

// PriceLevel is a single bid or ask level in the order book.
// Price and Size are strings because the CLOB API returns them as strings
// to preserve decimal precision.
type PriceLevel struct {
	Price string `json:"price"` // e.g. "0.55"
	Size  string `json:"size"`  // e.g. "100.5"
}

// BookSnapshot is a point-in-time view of one token's order book.
type BookSnapshot struct {
	AssetID   string       `json:"asset_id"`
	Bids      []PriceLevel `json:"bids"` // sorted descending by price
	Asks      []PriceLevel `json:"asks"` // sorted ascending by price
	Timestamp time.Time    `json:"timestamp"`
}

// ————————————————————————————————————————————————————————————————————————
// Indicator snapshot
// ————————————————————————————————————————————————————————————————————————

// MACDResult holds the standard MACD triple plus the histogram delta.
// Degenerate means macd, signal and hist are all exactly zero — the series
// carries no momentum information (flat prices).
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Hist      float64 `json:"hist"`
	HistDelta float64 `json:"histDelta"`
}

// Degenerate reports whether the MACD carries no signal.
// The triple-zero check is literal — downstream behavior pivots on it.
func (m MACDResult) Degenerate() bool {
	return m.MACD == 0 && m.Signal == 0 && m.Hist == 0
}

// IndicatorSnapshot contains all derived numerics for one tick.
// Pointer fields are nil when the candle series is too short to compute them.
type IndicatorSnapshot struct {
	LastClose float64 `json:"lastClose"`

	VWAP      float64 `json:"vwap"`
	VWAPSlope float64 `json:"vwapSlope"`

	RSI      *float64 `json:"rsi"` // nil until period+1 closes exist
	RSISlope float64  `json:"rsiSlope"`

	MACD *MACDResult `json:"macd"`

	HeikenColor  HeikenColor `json:"heikenColor"`
	HeikenStreak int         `json:"heikenStreak"`

	ATR    float64 `json:"atr"`
	ATRPct float64 `json:"atrPct"`

	BollWidth float64 `json:"bollWidth"`
	Squeeze   bool    `json:"squeeze"` // width < 0.02

	VWAPCrossCount    int  `json:"vwapCrossCount"` // sign changes of close-vwap, last 20 bars
	FailedVWAPReclaim bool `json:"failedVwapReclaim"`

	RecentVolume float64 `json:"recentVolume"`
	AvgVolume    float64 `json:"avgVolume"`

	OBImbalance float64 `json:"orderbookImbalance"` // bid liquidity / ask liquidity
}

// RSIDegenerate reports whether RSI is pinned to an extreme (≥99 or ≤1),
// meaning the price series is effectively flat. Literal thresholds.
func (s IndicatorSnapshot) RSIDegenerate() bool {
	if s.RSI == nil {
		return false
	}
	return *s.RSI >= 99 || *s.RSI <= 1
}

// ————————————————————————————————————————————————————————————————————————
// Tick — the scanner's central record, one per poll per market
// ————————————————————————————————————————————————————————————————————————

// RegimeState is the regime classification attached to a tick.
type RegimeState struct {
	Regime            Regime  `json:"regime"`
	Reason            string  `json:"reason"`
	Stability         float64 `json:"stability"`         // 0–100
	RecentTransitions int     `json:"recentTransitions"` // transitions in last 60 min
}

// Probabilities are the model's directional forecasts for one tick.
type Probabilities struct {
	RawUp        float64 `json:"rawUp"`
	AdjustedUp   float64 `json:"adjustedUp"`
	AdjustedDown float64 `json:"adjustedDown"`
	Decay        float64 `json:"decay"`
	Degenerate   bool    `json:"degenerate"`
}

// Edges compare model probability to market price for each side.
type Edges struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// Best returns the larger edge and its side.
func (e Edges) Best() (float64, Side) {
	if e.Up >= e.Down {
		return e.Up, UP
	}
	return e.Down, DOWN
}

// Recommendation is the decision for one tick.
type Recommendation struct {
	Action   Action   `json:"action"`
	Side     Side     `json:"side"`
	Strength Strength `json:"strength"`
	Phase    Phase    `json:"phase"`
}

// OrderFlow summarizes microstructure around the signal side.
type OrderFlow struct {
	Pressure     float64     `json:"pressure"`     // signed, positive favors UP
	BidWalls     int         `json:"bidWalls"`     // large resting bid levels
	AskWalls     int         `json:"askWalls"`     // large resting ask levels
	Quality      FlowQuality `json:"quality"`      // DEEP / MODERATE / THIN
	SpreadQual   string      `json:"spreadQuality"`
	AlignedScore float64     `json:"alignedScore"` // 0–100, depth aligned with side
}

// ConfidenceBreakdown is the per-component contribution to the score.
type ConfidenceBreakdown struct {
	Edge        float64 `json:"edge"`        // max 20
	Agreement   float64 `json:"agreement"`   // max 20
	Confluence  float64 `json:"confluence"`  // max 15
	Correlation float64 `json:"correlation"` // max 10
	Volatility  float64 `json:"volatility"`  // max 10
	OrderFlow   float64 `json:"orderFlow"`   // max 15
	TimeDecay   float64 `json:"timeDecay"`   // max 5
	Regime      float64 `json:"regime"`      // max 5
}

// Confidence is the composed 0–100 score with tier and breakdown.
type Confidence struct {
	Score     float64             `json:"score"`
	Tier      ConfidenceTier      `json:"tier"`
	Breakdown ConfidenceBreakdown `json:"breakdown"`
}

// Kelly is the bet-sizing result.
type Kelly struct {
	BetPct float64 `json:"betPct"` // fraction of bankroll in [0, 0.05]
	Full   float64 `json:"kellyFull"`
	Odds   float64 `json:"odds"`
	Tier   string  `json:"tier"` // sizing tier derived from confidence
}

// Prices are the market prices the tick was evaluated against.
type Prices struct {
	Last float64 `json:"last"` // last close of the indicator series
	Yes  float64 `json:"up"`
	No   float64 `json:"down"`
}

// Tick is the unit of output per poll per market. OK=false ticks carry only
// identity and a reason code (e.g. "no_candles", "missing_token_ids").
type Tick struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`

	MarketID string    `json:"marketId"`
	Question string    `json:"question"`
	Category string    `json:"category"`
	Time     time.Time `json:"timestamp"`

	Signal string `json:"signal"` // "BUY YES", "BUY NO", "NO TRADE"

	Indicators IndicatorSnapshot `json:"indicators"`
	Regime     RegimeState       `json:"regime"`
	Volatility VolRegime         `json:"volatility"`

	Prob Probabilities  `json:"prob"`
	Edge Edges          `json:"edge"`
	Rec  Recommendation `json:"rec"`

	Flow       OrderFlow  `json:"orderFlow"`
	Confidence Confidence `json:"confidence"`
	Kelly      Kelly      `json:"kelly"`

	Prices         Prices  `json:"prices"`
	SettlementMins float64 `json:"settlementMinutesLeft"`
	CorrelationAdj float64 `json:"correlationAdj"`
	Liquidity      float64 `json:"liquidity"`
}

// SignalString maps a recommendation to the external signal label.
func SignalString(rec Recommendation) string {
	if rec.Action != ENTER {
		return "NO TRADE"
	}
	if rec.Side == UP {
		return "BUY YES"
	}
	return "BUY NO"
}

// MacroState is the correlation engine's view of a macro symbol.
type MacroState struct {
	Symbol       string    `json:"symbol"`
	LastPrice    float64   `json:"lastPrice"`
	RSI          float64   `json:"rsi"`
	VWAP         float64   `json:"vwap"`
	VWAPSlope    float64   `json:"vwapSlope"`
	MACDHist     float64   `json:"macdHist"`
	Bias         Bias      `json:"bias"`
	BiasStrength float64   `json:"biasStrength"` // [0, 1]
	UpdatedAt    time.Time `json:"updatedAt"`
}
