// Package feed acquires OHLC candles from the Binance spot API.
//
// The REST client (Client) pages historical klines for the loader, and
// Stream maintains a WebSocket subscription that delivers closed candles as
// they form. Acquisition always completes before a simulation starts; the
// replay loop itself never touches the network.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

// klineLimit is the maximum rows Binance returns per klines request.
const klineLimit = 1000

// Client is the Binance spot REST client. Every request passes the shared
// weight bucket before going out, and 5xx responses are retried by resty.
type Client struct {
	http   *resty.Client
	rl     *TokenBucket
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:   httpClient,
		rl:     NewTokenBucket(1200, 20), // request weight: 6000/min hard limit, stay well under
		logger: logger.With("component", "feed"),
	}
}

// Klines fetches up to limit candles starting at startTime (seconds).
// Binance encodes OHLC as strings inside positional arrays and timestamps
// in milliseconds; both are normalized here.
func (c *Client) Klines(ctx context.Context, symbol types.Symbol, interval string, startTime types.Timestamp, limit int) ([]types.Bar, error) {
	if limit <= 0 || limit > klineLimit {
		limit = klineLimit
	}
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var rows [][]any
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", string(symbol)).
		SetQueryParam("interval", interval).
		SetQueryParam("startTime", strconv.FormatUint(uint64(startTime)*1000, 10)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&rows).
		Get("/api/v3/klines")
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get klines: status %d: %s", resp.StatusCode(), resp.String())
	}

	bars := make([]types.Bar, 0, len(rows))
	for _, row := range rows {
		bar, err := parseKline(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("parse kline for %s: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline converts one positional kline row:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(symbol types.Symbol, row []any) (types.Bar, error) {
	if len(row) < 5 {
		return types.Bar{}, fmt.Errorf("short kline row: %d fields", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return types.Bar{}, fmt.Errorf("open time is %T, want number", row[0])
	}

	prices := make([]float32, 4)
	for i := 0; i < 4; i++ {
		s, ok := row[i+1].(string)
		if !ok {
			return types.Bar{}, fmt.Errorf("field %d is %T, want string", i+1, row[i+1])
		}
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return types.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		prices[i] = float32(v)
	}

	return types.Bar{
		Symbol:    symbol,
		StartTime: types.Timestamp(openTime) / 1000,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
	}, nil
}

// IntervalSeconds maps a Binance interval key to its length in seconds.
func IntervalSeconds(interval string) (types.Timestamp, error) {
	switch interval {
	case "1m":
		return 60, nil
	case "5m":
		return 300, nil
	case "15m":
		return 900, nil
	case "1h":
		return 3600, nil
	case "4h":
		return 14400, nil
	case "1d":
		return 86400, nil
	default:
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
}
