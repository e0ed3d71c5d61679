// Package strategy ships the reference activation policy.
//
// Dip is deliberately simple: it exists to exercise the full policy
// contract (activation, order callbacks, round hooks) in integration tests
// and the CLI, not to make money. Strategy authors implement agent.Policy
// the same way and plug into the driver unchanged.
package strategy

import (
	"log/slog"

	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

// DipConfig tunes the reference policy.
//
//   - Stake:      quantity per entry order.
//   - EntryDip:   entry limit sits this fraction below the current open.
//   - TakeProfit: exit limit sits this fraction above the entry fill price.
//   - Expiration: how long an unfilled entry order stays alive, in the
//     timeline's timestamp units (seconds for exchange data); 0 = forever.
type DipConfig struct {
	Symbol     types.Symbol
	Stake      float32
	EntryDip   float32
	TakeProfit float32
	Expiration types.Timestamp
}

// Dip buys pullbacks with a buy-limit below the market and exits with a
// sell-limit above its cost basis. At most one order cycle is in flight.
type Dip struct {
	cfg       DipConfig
	lastEntry float32 // fill price of the most recent closed buy
	logger    *slog.Logger
}

// NewDip creates the policy.
func NewDip(cfg DipConfig, logger *slog.Logger) *Dip {
	return &Dip{
		cfg:    cfg,
		logger: logger.With("component", "strategy", "strategy", "dip"),
	}
}

// Name identifies the policy in persisted results.
func (d *Dip) Name() string {
	return "dip"
}

// Activate emits at most one command per tick: an entry when flat, an exit
// once the entry filled, nothing while an order is resting.
func (d *Dip) Activate(_ []types.Candle, prices map[types.Symbol]float32, result types.CalculateResult, open map[types.Symbol][]types.Order) []types.Command {
	if len(open[d.cfg.Symbol]) > 0 {
		return []types.Command{types.None()}
	}

	if held := result.AssetsAvailable[d.cfg.Symbol]; held > 0 && d.lastEntry > 0 {
		price := d.lastEntry * (1 + d.cfg.TakeProfit)
		return []types.Command{types.SellLimit(d.cfg.Symbol, held, price, nil)}
	}

	openPrice, ok := prices[d.cfg.Symbol]
	if !ok {
		return []types.Command{types.None()}
	}

	price := openPrice * (1 - d.cfg.EntryDip)
	if result.Balance < d.cfg.Stake*price {
		return []types.Command{types.None()}
	}

	var expiration *types.Timestamp
	if d.cfg.Expiration > 0 {
		exp := d.cfg.Expiration
		expiration = &exp
	}
	return []types.Command{types.BuyLimit(d.cfg.Symbol, d.cfg.Stake, price, expiration)}
}

// OnOrder tracks the cost basis of filled entries.
func (d *Dip) OnOrder(ts types.Timestamp, order types.Order) {
	if order.Side == types.Buy && order.Status == types.StatusClose {
		d.lastEntry = order.Price
	}
	d.logger.Debug("order event",
		"ts", ts,
		"id", order.ID,
		"side", order.Side,
		"status", order.Status,
		"price", order.Price,
	)
}

// OnEndRound is unused; the policy keeps no per-round state.
func (d *Dip) OnEndRound(types.Timestamp, types.CalculateResult, []types.Candle) {}

// OnEnd logs the final snapshot.
func (d *Dip) OnEnd(result types.CalculateResult) {
	d.logger.Info("run finished",
		"balance", result.Balance,
		"min_balance", result.MinBalance,
		"executed_orders", result.ExecutedOrders,
	)
}
