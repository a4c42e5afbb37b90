// Package store persists emitted ENTER signals and annotates them with
// settlement outcomes. Two implementations share the SignalStore interface:
// a Postgres store for real runs and an in-memory store for dry runs and
// tests. Writes are serialized through the interface; outcome updates are
// idempotent by signal id.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"polymarket-scanner/pkg/types"
)

// Signal is one persisted ENTER signal row.
type Signal struct {
	ID       string `db:"id" json:"id"`
	MarketID string `db:"market_id" json:"marketId"`
	Question string `db:"question" json:"question"`
	Category string `db:"category" json:"category"`

	Signal   string `db:"signal" json:"signal"` // "BUY YES" / "BUY NO"
	Side     string `db:"side" json:"side"`
	Strength string `db:"strength" json:"strength"`
	Phase    string `db:"phase" json:"phase"`
	Regime   string `db:"regime" json:"regime"`

	ModelUp           float64 `db:"model_up" json:"modelUp"`
	ModelDown         float64 `db:"model_down" json:"modelDown"`
	MarketYes         float64 `db:"market_yes" json:"marketYes"`
	MarketNo          float64 `db:"market_no" json:"marketNo"`
	Edge              float64 `db:"edge" json:"edge"`
	RSI               float64 `db:"rsi" json:"rsi"`
	OBImbalance       float64 `db:"orderbook_imbalance" json:"orderbookImbalance"`
	SettlementLeftMin float64 `db:"settlement_left_min" json:"settlementLeftMin"`
	Liquidity         float64 `db:"liquidity" json:"liquidity"`

	// Classified feature set — the weight learner's join keys.
	VWAPPosition string `db:"vwap_position" json:"vwapPosition"`
	VWAPSlopeDir string `db:"vwap_slope_dir" json:"vwapSlopeDir"`
	RSIZone      string `db:"rsi_zone" json:"rsiZone"`
	MACDState    string `db:"macd_state" json:"macdState"`
	HeikenColor  string `db:"heiken_color" json:"heikenColor"`
	OBZone       string `db:"ob_zone" json:"obZone"`
	VolRegime    string `db:"vol_regime" json:"volRegime"`
	Degenerate   bool   `db:"degenerate" json:"degenerate"`

	Confidence       float64 `db:"confidence" json:"confidence"`
	ConfidenceTier   string  `db:"confidence_tier" json:"confidenceTier"`
	KellyBetPct      float64 `db:"kelly_bet_pct" json:"kellyBetPct"`
	KellySizingTier  string  `db:"kelly_sizing_tier" json:"kellySizingTier"`
	FlowAlignedScore float64 `db:"flow_aligned_score" json:"flowAlignedScore"`
	FlowQuality      string  `db:"flow_quality" json:"flowQuality"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	// Settlement annotation, null until resolved.
	Outcome         *string    `db:"outcome" json:"outcome,omitempty"`
	OutcomePriceYes *float64   `db:"outcome_price_yes" json:"outcomePriceYes,omitempty"`
	OutcomePriceNo  *float64   `db:"outcome_price_no" json:"outcomePriceNo,omitempty"`
	SettledAt       *time.Time `db:"settled_at" json:"settledAt,omitempty"`
	PnlPct          *float64   `db:"pnl_pct" json:"pnlPct,omitempty"`
}

// Settled reports whether the signal has a terminal outcome.
func (s *Signal) Settled() bool { return s.Outcome != nil }

// SignalStore is the journaling interface every persistence backend implements.
type SignalStore interface {
	// Save inserts the signal. Saving the same (market_id, created_at)
	// twice is a silent no-op.
	Save(ctx context.Context, sig *Signal) error

	// Unresolved returns signals with no outcome yet.
	Unresolved(ctx context.Context) ([]Signal, error)

	// Settled returns all signals with a terminal outcome.
	Settled(ctx context.Context) ([]Signal, error)

	// RecordOutcome sets the outcome exactly once; a second call for the
	// same id leaves the row unchanged.
	RecordOutcome(ctx context.Context, id string, outcome types.Outcome, priceYes, priceNo, pnlPct float64, settledAt time.Time) error

	// Purge deletes signals created before the cutoff. Returns rows removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

// FromTick builds the persisted row from an ENTER tick, classifying the
// raw indicator numerics into the learner's feature vocabulary.
func FromTick(t types.Tick) *Signal {
	rsi := 50.0
	if t.Indicators.RSI != nil {
		rsi = *t.Indicators.RSI
	}

	macdState := "ZERO"
	if t.Indicators.MACD != nil {
		macdState = types.ClassifyMACDState(*t.Indicators.MACD)
	}

	return &Signal{
		ID:       uuid.NewString(),
		MarketID: t.MarketID,
		Question: t.Question,
		Category: t.Category,

		Signal:   t.Signal,
		Side:     string(t.Rec.Side),
		Strength: string(t.Rec.Strength),
		Phase:    string(t.Rec.Phase),
		Regime:   string(t.Regime.Regime),

		ModelUp:           t.Prob.AdjustedUp,
		ModelDown:         t.Prob.AdjustedDown,
		MarketYes:         t.Prices.Yes,
		MarketNo:          t.Prices.No,
		Edge:              bestEdge(t.Edge),
		RSI:               rsi,
		OBImbalance:       t.Indicators.OBImbalance,
		SettlementLeftMin: t.SettlementMins,
		Liquidity:         t.Liquidity,

		VWAPPosition: types.ClassifyVWAPPosition(t.Indicators.LastClose, t.Indicators.VWAP),
		VWAPSlopeDir: types.ClassifyVWAPSlope(t.Indicators.VWAPSlope),
		RSIZone:      types.ClassifyRSIZone(rsi),
		MACDState:    macdState,
		HeikenColor:  string(t.Indicators.HeikenColor),
		OBZone:       types.ClassifyOBZone(t.Indicators.OBImbalance),
		VolRegime:    string(t.Volatility),
		Degenerate:   t.Prob.Degenerate,

		Confidence:       t.Confidence.Score,
		ConfidenceTier:   string(t.Confidence.Tier),
		KellyBetPct:      t.Kelly.BetPct,
		KellySizingTier:  t.Kelly.Tier,
		FlowAlignedScore: t.Flow.AlignedScore,
		FlowQuality:      string(t.Flow.Quality),

		CreatedAt: t.Time,
	}
}

func bestEdge(e types.Edges) float64 {
	best, _ := e.Best()
	return best
}
