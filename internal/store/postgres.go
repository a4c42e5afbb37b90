package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"polymarket-scanner/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id                  TEXT PRIMARY KEY,
	market_id           TEXT NOT NULL,
	question            TEXT NOT NULL,
	category            TEXT NOT NULL,
	signal              TEXT NOT NULL,
	side                TEXT NOT NULL,
	strength            TEXT NOT NULL,
	phase               TEXT NOT NULL,
	regime              TEXT NOT NULL,
	model_up            DOUBLE PRECISION NOT NULL,
	model_down          DOUBLE PRECISION NOT NULL,
	market_yes          DOUBLE PRECISION NOT NULL,
	market_no           DOUBLE PRECISION NOT NULL,
	edge                DOUBLE PRECISION NOT NULL,
	rsi                 DOUBLE PRECISION NOT NULL,
	orderbook_imbalance DOUBLE PRECISION NOT NULL,
	settlement_left_min DOUBLE PRECISION NOT NULL,
	liquidity           DOUBLE PRECISION NOT NULL,
	vwap_position       TEXT NOT NULL,
	vwap_slope_dir      TEXT NOT NULL,
	rsi_zone            TEXT NOT NULL,
	macd_state          TEXT NOT NULL,
	heiken_color        TEXT NOT NULL,
	ob_zone             TEXT NOT NULL,
	vol_regime          TEXT NOT NULL,
	degenerate          BOOLEAN NOT NULL DEFAULT FALSE,
	confidence          DOUBLE PRECISION NOT NULL,
	confidence_tier     TEXT NOT NULL,
	kelly_bet_pct       DOUBLE PRECISION NOT NULL,
	kelly_sizing_tier   TEXT NOT NULL,
	flow_aligned_score  DOUBLE PRECISION NOT NULL,
	flow_quality        TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	outcome             TEXT,
	outcome_price_yes   DOUBLE PRECISION,
	outcome_price_no    DOUBLE PRECISION,
	settled_at          TIMESTAMPTZ,
	pnl_pct             DOUBLE PRECISION,
	CONSTRAINT signals_market_created_unique UNIQUE (market_id, created_at)
);
CREATE INDEX IF NOT EXISTS idx_signals_outcome_null ON signals (created_at) WHERE outcome IS NULL;
CREATE INDEX IF NOT EXISTS idx_signals_category ON signals (category);
`

const insertSignal = `
INSERT INTO signals (
	id, market_id, question, category, signal, side, strength, phase, regime,
	model_up, model_down, market_yes, market_no, edge, rsi, orderbook_imbalance,
	settlement_left_min, liquidity,
	vwap_position, vwap_slope_dir, rsi_zone, macd_state, heiken_color, ob_zone,
	vol_regime, degenerate,
	confidence, confidence_tier, kelly_bet_pct, kelly_sizing_tier,
	flow_aligned_score, flow_quality, created_at
) VALUES (
	:id, :market_id, :question, :category, :signal, :side, :strength, :phase, :regime,
	:model_up, :model_down, :market_yes, :market_no, :edge, :rsi, :orderbook_imbalance,
	:settlement_left_min, :liquidity,
	:vwap_position, :vwap_slope_dir, :rsi_zone, :macd_state, :heiken_color, :ob_zone,
	:vol_regime, :degenerate,
	:confidence, :confidence_tier, :kelly_bet_pct, :kelly_sizing_tier,
	:flow_aligned_score, :flow_quality, :created_at
)`

// Postgres is the sqlx-backed signal store.
type Postgres struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewPostgres connects, pings and ensures the schema.
func NewPostgres(dsn string, log *slog.Logger) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Postgres{db: db, log: log.With("component", "store")}, nil
}

// Save inserts the signal. A duplicate (market_id, created_at) violates the
// unique constraint and is treated as already-logged.
func (p *Postgres) Save(ctx context.Context, sig *Signal) error {
	_, err := p.db.NamedExecContext(ctx, insertSignal, sig)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			p.log.Debug("duplicate signal skipped", "market", sig.MarketID, "created_at", sig.CreatedAt)
			return nil
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (p *Postgres) Unresolved(ctx context.Context) ([]Signal, error) {
	var out []Signal
	err := p.db.SelectContext(ctx, &out,
		`SELECT * FROM signals WHERE outcome IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select unresolved: %w", err)
	}
	return out, nil
}

func (p *Postgres) Settled(ctx context.Context) ([]Signal, error) {
	var out []Signal
	err := p.db.SelectContext(ctx, &out,
		`SELECT * FROM signals WHERE outcome IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select settled: %w", err)
	}
	return out, nil
}

// RecordOutcome writes the terminal outcome. The WHERE outcome IS NULL
// guard makes repeated settlement attempts no-ops.
func (p *Postgres) RecordOutcome(ctx context.Context, id string, outcome types.Outcome, priceYes, priceNo, pnlPct float64, settledAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE signals
		SET outcome = $2, outcome_price_yes = $3, outcome_price_no = $4,
		    pnl_pct = $5, settled_at = $6
		WHERE id = $1 AND outcome IS NULL`,
		id, string(outcome), priceYes, priceNo, pnlPct, settledAt)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (p *Postgres) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM signals WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge signals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return n, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
