// Backtest — deterministic replay of historical OHLC candles through
// algorithmic trading policies.
//
// Architecture:
//
//	main.go              — entry point: loads config, assembles the dataset, runs the simulation
//	sim/sim.go           — driver: iterates the candle timeline, activates each agent per tick
//	agent/agent.go       — per-strategy ledger + order execution engine (market/limit fills, expiry, cancels)
//	strategy/dip.go      — reference activation policy (buy the dip, exit on take-profit)
//	feed/client.go       — Binance klines REST client with rate limiting and retry
//	feed/stream.go       — live kline WebSocket feed with auto-reconnect (dataset extension)
//	store/store.go       — JSON file cache for fetched candles (atomic writes)
//	report/report.go     — SQLite persistence for run summaries and executed orders
//
// The simulation itself is single-threaded and deterministic: identical
// candles and policies always reproduce identical results.
package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/vivalaakam/new-york-calculate/internal/agent"
	"github.com/vivalaakam/new-york-calculate/internal/config"
	"github.com/vivalaakam/new-york-calculate/internal/feed"
	"github.com/vivalaakam/new-york-calculate/internal/report"
	"github.com/vivalaakam/new-york-calculate/internal/sim"
	"github.com/vivalaakam/new-york-calculate/internal/store"
	"github.com/vivalaakam/new-york-calculate/internal/strategy"
	"github.com/vivalaakam/new-york-calculate/pkg/runid"
	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("NYC_CONFIG"); p != "" {
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

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	ctx := context.Background()

	// Assemble the dataset: cache first, exchange for the gaps.
	var cache *store.Cache
	if cfg.Data.CacheDir != "" {
		cache, err = store.Open(cfg.Data.CacheDir)
		if err != nil {
			logger.Error("failed to open candle cache", "error", err)
			os.Exit(1)
		}
	}

	symbols := make([]types.Symbol, len(cfg.Data.Symbols))
	for i, s := range cfg.Data.Symbols {
		symbols[i] = types.Symbol(s)
	}

	loader := feed.NewLoader(feed.NewClient(cfg.Data.BaseURL, logger), cache, logger)
	candles, err := loader.Load(ctx, symbols, cfg.Data.Interval, types.Timestamp(cfg.Data.Start), types.Timestamp(cfg.Data.End))
	if err != nil {
		logger.Error("failed to load candles", "error", err)
		os.Exit(1)
	}
	if len(candles) < 2 {
		logger.Error("dataset too small to replay", "ticks", len(candles))
		os.Exit(1)
	}

	// One agent per symbol, each with its own policy instance and ledger.
	policies := make(map[*agent.Agent]*strategy.Dip, len(symbols))
	agents := make([]*agent.Agent, 0, len(symbols))
	for _, symbol := range symbols {
		policy := strategy.NewDip(strategy.DipConfig{
			Symbol:     symbol,
			Stake:      cfg.Agent.Stake,
			EntryDip:   cfg.Agent.EntryDip,
			TakeProfit: cfg.Agent.TakeProfit,
			Expiration: types.Timestamp(cfg.Agent.Expiration),
		}, logger)
		ag := agent.New(cfg.Agent.InitialBalance, cfg.Agent.Commission, policy, logger)
		policies[ag] = policy
		agents = append(agents, ag)
	}

	simulation := sim.New(candles, agents, logger)

	logger.Info("backtest started",
		"symbols", cfg.Data.Symbols,
		"interval", cfg.Data.Interval,
		"ticks", len(simulation.Timeline()),
		"agents", len(agents),
	)

	simulation.RunToEnd()

	id := runid.RunID(
		cfg.Data.Interval,
		strconv.FormatUint(cfg.Data.Start, 10),
		strconv.FormatUint(cfg.Data.End, 10),
		cfg.Report.ModelID,
	)

	var recorder *report.Recorder
	if cfg.Report.DatabasePath != "" {
		recorder, err = report.Open(cfg.Report.DatabasePath)
		if err != nil {
			logger.Error("failed to open results db", "error", err)
			os.Exit(1)
		}
		defer recorder.Close()
	}

	for _, ag := range agents {
		result := ag.Result()
		logger.Info("agent finished",
			"agent", policies[ag].Name(),
			"balance", result.Balance,
			"min_balance", result.MinBalance,
			"opened_orders", result.OpenedOrders,
			"executed_orders", result.ExecutedOrders,
		)

		if err := recorder.SaveRun(id, policies[ag].Name(), result, ag.ExecutedOrders()); err != nil {
			logger.Error("failed to persist run", "error", err)
		}
	}

	logger.Info("backtest finished", "run_id", id)
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
