package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vivalaakam/new-york-calculate/internal/store"
	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

// Loader assembles the multi-symbol timeline a simulation replays. Each
// (symbol, interval, range) is served from the on-disk cache when present
// and backfilled from the REST client otherwise.
type Loader struct {
	client *Client
	cache  *store.Cache
	logger *slog.Logger
}

// NewLoader creates a loader. cache may be nil to always hit the network.
func NewLoader(client *Client, cache *store.Cache, logger *slog.Logger) *Loader {
	return &Loader{
		client: client,
		cache:  cache,
		logger: logger.With("component", "loader"),
	}
}

// Load fetches candles for every symbol over [start, end) and groups them
// by timestamp, ready for sim.New.
func (l *Loader) Load(ctx context.Context, symbols []types.Symbol, interval string, start, end types.Timestamp) (map[types.Timestamp][]types.Candle, error) {
	step, err := IntervalSeconds(interval)
	if err != nil {
		return nil, err
	}

	timeline := make(map[types.Timestamp][]types.Candle)
	for _, symbol := range symbols {
		bars, err := l.loadSymbol(ctx, symbol, interval, start, end, step)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", symbol, err)
		}
		for _, bar := range bars {
			timeline[bar.StartTime] = append(timeline[bar.StartTime], bar)
		}
	}
	return timeline, nil
}

func (l *Loader) loadSymbol(ctx context.Context, symbol types.Symbol, interval string, start, end, step types.Timestamp) ([]types.Bar, error) {
	if l.cache != nil {
		if bars, ok := l.cache.Load(symbol, interval, start, end); ok {
			l.logger.Debug("cache hit", "symbol", symbol, "bars", len(bars))
			return bars, nil
		}
	}

	var bars []types.Bar
	from := start
	for from < end {
		page, err := l.client.Klines(ctx, symbol, interval, from, klineLimit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, bar := range page {
			if bar.StartTime >= start && bar.StartTime < end {
				bars = append(bars, bar)
			}
		}

		next := page[len(page)-1].StartTime + step
		if next <= from {
			// The exchange stopped advancing; bail out rather than loop.
			break
		}
		from = next
	}

	l.logger.Info("backfilled candles", "symbol", symbol, "interval", interval, "bars", len(bars))

	if l.cache != nil && len(bars) > 0 {
		if err := l.cache.Save(symbol, interval, start, end, bars); err != nil {
			l.logger.Warn("cache write failed", "symbol", symbol, "error", err)
		}
	}
	return bars, nil
}
