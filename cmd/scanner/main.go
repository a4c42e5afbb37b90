// Polymarket Signal Scanner — a real-time signal scanner for Polymarket
// binary prediction markets.
//
// Architecture:
//
//	main.go                 — entry point: loads config, runs engine, waits for SIGINT/SIGTERM
//	engine/engine.go        — orchestrator: discovery, staggered poll cycles, event fan-out
//	poller/poller.go        — per-market pipeline: fetch → indicators → score → decide → tick
//	indicator/              — VWAP, RSI, MACD, Heiken-Ashi, ATR, Bollinger, book depth
//	scoring/                — weighted probability vote, time decay, edge decision,
//	                          confidence composition, fractional Kelly sizing
//	regime/                 — trend/range/chop and volatility classification
//	correlation/            — BTC macro bias → edge multiplier for crypto markets
//	fetch/                  — Gamma/CLOB/kline clients with retry, rate limits,
//	                          circuit breakers and health metrics
//	store/                  — signal persistence (Postgres or memory) + outcome resolution
//	learner/                — per-indicator-state weight multipliers from settled outcomes
//	portfolio/portfolio.go  — virtual positions opened from ENTER signals
//	bus/bus.go              — in-process event fan-out with per-subscriber isolation
//
// The scanner never places orders. It emits ticks; a tick whose decision is
// ENTER becomes a persisted signal, tracked to settlement so the weight
// learner can measure which indicator states actually predict outcomes.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"polymarket-scanner/internal/config"
	"polymarket-scanner/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SCANNER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if cfg.Logging.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Logging.MetricsAddr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics exposed", "addr", cfg.Logging.MetricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	logger.Info("polymarket signal scanner starting",
		"poll_interval", cfg.Scanner.PollInterval,
		"max_markets", cfg.Scanner.MaxMarkets,
		"macro_symbol", cfg.Macro.Symbol,
	)

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("engine stopped", "error", err)
	}
	eng.Close()
	logger.Info("shutdown complete")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
