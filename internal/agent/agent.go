// Package agent implements the per-strategy ledger and order execution engine.
//
// An Agent pairs one activation policy with its accounting state:
//
//   - cash balance and its running minimum across completed ticks,
//   - per-symbol holdings split into available (spendable) and frozen
//     (reserved by an open sell-limit),
//   - the FIFO queue of open limit orders per symbol,
//   - the append-only list of executed (closed or cancelled) orders.
//
// Commands arrive through PerformOrder and are settled against the bar they
// were dispatched with; queued limits are evaluated against each new bar in
// PerformCandle. All arithmetic is float32 — result snapshots are compared
// against golden values that carry 32-bit precision drift, so widening any
// intermediate to float64 is an observable change.
package agent

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

// Policy is the contract between the engine and strategy code. The engine
// treats implementations as opaque: callbacks receive snapshots by value and
// must not assume they run on any particular goroutine beyond "one at a time".
type Policy interface {
	// Activate inspects the bars of the previous tick, the open prices of the
	// current tick, and the agent's state, and returns the commands to execute
	// against the current tick's bars.
	Activate(candles []types.Candle, prices map[types.Symbol]float32, result types.CalculateResult, open map[types.Symbol][]types.Order) []types.Command

	// OnOrder fires once when an order is created (status Open) and once more
	// when it reaches a terminal status (Close or Cancel).
	OnOrder(ts types.Timestamp, order types.Order)

	// OnEndRound fires after all commands and fills of a tick are settled.
	OnEndRound(ts types.Timestamp, result types.CalculateResult, candles []types.Candle)

	// OnEnd fires once after the timeline is exhausted.
	OnEnd(result types.CalculateResult)
}

// Agent owns the ledger for one strategy instance. It is not safe for
// concurrent use; the simulation driver calls it from a single goroutine.
type Agent struct {
	balance    float32
	commission float32 // flat rate applied to each fill's notional
	minBalance float32

	available map[types.Symbol]float32
	frozen    map[types.Symbol]float32

	// orders is the arena holding every order the agent ever created, keyed
	// by id. queue and executed reference into it, so moving an order between
	// the two is an id shuffle, never a copy.
	orders   map[types.OrderID]*types.Order
	queue    map[types.Symbol][]types.OrderID
	executed []types.OrderID

	policy Policy
	logger *slog.Logger
}

// New creates an agent with the given starting balance and commission rate.
func New(balance, commission float32, policy Policy, logger *slog.Logger) *Agent {
	return &Agent{
		balance:    balance,
		commission: commission,
		minBalance: balance,
		available:  make(map[types.Symbol]float32),
		frozen:     make(map[types.Symbol]float32),
		orders:     make(map[types.OrderID]*types.Order),
		queue:      make(map[types.Symbol][]types.OrderID),
		policy:     policy,
		logger:     logger.With("component", "agent"),
	}
}

// Activate asks the policy for the commands to run against the current tick.
func (a *Agent) Activate(candles []types.Candle, prices map[types.Symbol]float32) []types.Command {
	return a.policy.Activate(candles, prices, a.Result(), a.OpenOrders())
}

// PerformOrder dispatches one command against the bar it targets.
// Dispatch errors leave the ledger untouched.
func (a *Agent) PerformOrder(cmd types.Command, candle types.Candle) (*types.Order, error) {
	switch cmd.Type {
	case types.CommandBuyMarket:
		return a.buyOrder(candle, candle.GetOpen(), cmd.Stake, types.Market, nil)
	case types.CommandSellMarket:
		return a.sellOrder(candle, candle.GetOpen(), cmd.Stake, types.Market, nil)
	case types.CommandBuyLimit:
		return a.buyOrder(candle, cmd.Price, cmd.Stake, types.Limit, cmd.Expiration)
	case types.CommandSellLimit:
		return a.sellOrder(candle, cmd.Price, cmd.Stake, types.Limit, cmd.Expiration)
	case types.CommandCancel:
		a.cancelOrder(cmd.Symbol, cmd.OrderID, candle)
		return nil, nil
	case types.CommandNone, types.CommandUnknown:
		return nil, nil
	default:
		return nil, types.ErrUnknownCommand
	}
}

// buyOrder submits a buy. Cash for the full notional is taken immediately:
// market orders settle in the same call, limit reservations are refunded on
// cancel or expiry.
func (a *Agent) buyOrder(candle types.Candle, price, qty float32, orderType types.OrderType, expiration *types.Timestamp) (*types.Order, error) {
	orderSum := qty * price

	if a.balance < orderSum {
		return nil, &types.InsufficientBalanceError{Available: a.balance, Required: orderSum}
	}

	order := &types.Order{
		ID:         uuid.New(),
		Symbol:     candle.GetSymbol(),
		CreatedAt:  candle.GetStartTime(),
		Price:      price,
		Qty:        qty,
		Commission: orderSum * a.commission,
		Status:     types.StatusOpen,
		Side:       types.Buy,
		Type:       orderType,
		Expiration: expiration,
	}

	a.balance -= orderSum
	a.orders[order.ID] = order

	a.policy.OnOrder(candle.GetStartTime(), *order)

	switch orderType {
	case types.Market:
		a.closeBuy(order, candle)
		a.executed = append(a.executed, order.ID)
		a.policy.OnOrder(candle.GetStartTime(), *order)
	case types.Limit:
		a.queue[order.Symbol] = append(a.queue[order.Symbol], order.ID)
	}

	result := *order
	return &result, nil
}

// sellOrder submits a sell. The quantity moves from available to frozen at
// submission; market orders release it again in the same call.
func (a *Agent) sellOrder(candle types.Candle, price, qty float32, orderType types.OrderType, expiration *types.Timestamp) (*types.Order, error) {
	symbol := candle.GetSymbol()

	if qty > a.available[symbol] {
		return nil, &types.InsufficientAssetBalanceError{
			Symbol:    symbol,
			Available: a.available[symbol],
			Required:  qty,
		}
	}

	a.available[symbol] -= qty
	a.frozen[symbol] += qty

	orderSum := qty * price

	order := &types.Order{
		ID:         uuid.New(),
		Symbol:     symbol,
		CreatedAt:  candle.GetStartTime(),
		Price:      price,
		Qty:        qty,
		Commission: orderSum * a.commission,
		Status:     types.StatusOpen,
		Side:       types.Sell,
		Type:       orderType,
		Expiration: expiration,
	}

	a.orders[order.ID] = order

	a.policy.OnOrder(candle.GetStartTime(), *order)

	switch orderType {
	case types.Market:
		a.closeSell(order, candle)
		a.executed = append(a.executed, order.ID)
		a.policy.OnOrder(candle.GetStartTime(), *order)
	case types.Limit:
		a.queue[symbol] = append(a.queue[symbol], order.ID)
	}

	result := *order
	return &result, nil
}

// PerformCandle evaluates the queued limit orders on the bar's symbol in
// enqueue order: fills when the bar's range strictly crosses the order price,
// then expiry. Settled orders move to the executed list in encounter order.
func (a *Agent) PerformCandle(candle types.Candle) {
	symbol := candle.GetSymbol()
	ids := a.queue[symbol]
	if len(ids) == 0 {
		return
	}

	remaining := ids[:0]
	for _, id := range ids {
		order := a.orders[id]
		settled := false

		switch order.Side {
		case types.Buy:
			if order.Price > candle.GetLow() {
				a.closeBuy(order, candle)
				settled = true
			}
		case types.Sell:
			if order.Price < candle.GetHigh() {
				a.closeSell(order, candle)
				settled = true
			}
		}

		if !settled && order.Expiration != nil {
			if order.CreatedAt+*order.Expiration < candle.GetStartTime() {
				a.cancel(order, candle)
				settled = true
			}
		}

		if settled {
			a.executed = append(a.executed, id)
			a.policy.OnOrder(candle.GetStartTime(), *order)
		} else {
			remaining = append(remaining, id)
		}
	}
	a.queue[symbol] = remaining

	a.logger.Debug("perform_candle done",
		"symbol", symbol,
		"available", a.available[symbol],
		"frozen", a.frozen[symbol],
		"queued", len(remaining),
	)
}

// cancelOrder handles an explicit CancelLimit. Unknown ids are a silent
// no-op: they reflect stale policy state, not a programming error.
func (a *Agent) cancelOrder(symbol types.Symbol, id types.OrderID, candle types.Candle) {
	ids := a.queue[symbol]
	for i, queued := range ids {
		if queued != id {
			continue
		}
		order := a.orders[id]
		a.cancel(order, candle)
		a.queue[symbol] = append(ids[:i], ids[i+1:]...)
		a.executed = append(a.executed, id)
		a.policy.OnOrder(candle.GetStartTime(), *order)
		return
	}
	a.logger.Debug("cancel order not found", "symbol", symbol, "id", id)
}

// closeBuy settles a buy fill: the notional was already debited at
// submission, so only the holdings credit and the commission remain.
func (a *Agent) closeBuy(order *types.Order, candle types.Candle) {
	a.available[order.Symbol] += order.Qty
	a.balance -= order.Commission
	order.Status = types.StatusClose
	order.FinishedAt = candle.GetStartTime()
}

// closeSell settles a sell fill: credit the notional, release the frozen
// quantity, charge the commission.
func (a *Agent) closeSell(order *types.Order, candle types.Candle) {
	a.balance += order.Price * order.Qty
	a.balance -= order.Commission
	a.frozen[order.Symbol] -= order.Qty
	order.Status = types.StatusClose
	order.FinishedAt = candle.GetStartTime()
}

// cancel reverses a submission without commission: buy reservations return
// to cash, frozen sell quantities return to available.
func (a *Agent) cancel(order *types.Order, candle types.Candle) {
	switch order.Side {
	case types.Buy:
		a.balance += order.Price * order.Qty
	case types.Sell:
		a.frozen[order.Symbol] -= order.Qty
		a.available[order.Symbol] += order.Qty
	}
	order.Status = types.StatusCancel
	order.FinishedAt = candle.GetStartTime()
}

// Stats builds the per-bar mark-to-market view for the bar's symbol.
func (a *Agent) Stats(candle types.Candle) types.CalculateStats {
	count := a.available[candle.GetSymbol()]

	return types.CalculateStats{
		Balance:         a.balance,
		Orders:          len(a.queue[candle.GetSymbol()]),
		Count:           count,
		Real:            count * candle.GetOpen(),
		AssetsAvailable: copyHoldings(a.available),
		AssetsFrozen:    copyHoldings(a.frozen),
	}
}

// Result snapshots the ledger. Maps are copies, safe to hand to policies.
func (a *Agent) Result() types.CalculateResult {
	opened := 0
	for _, ids := range a.queue {
		opened += len(ids)
	}

	return types.CalculateResult{
		Balance:         a.balance,
		MinBalance:      a.minBalance,
		OpenedOrders:    opened,
		ExecutedOrders:  len(a.executed),
		AssetsAvailable: copyHoldings(a.available),
		AssetsFrozen:    copyHoldings(a.frozen),
	}
}

// OpenOrders returns a copy of the queued limit orders per symbol, in
// enqueue order.
func (a *Agent) OpenOrders() map[types.Symbol][]types.Order {
	open := make(map[types.Symbol][]types.Order, len(a.queue))
	for symbol, ids := range a.queue {
		if len(ids) == 0 {
			continue
		}
		orders := make([]types.Order, len(ids))
		for i, id := range ids {
			orders[i] = *a.orders[id]
		}
		open[symbol] = orders
	}
	return open
}

// ExecutedOrders returns a copy of all closed and cancelled orders in
// settlement order.
func (a *Agent) ExecutedOrders() []types.Order {
	orders := make([]types.Order, len(a.executed))
	for i, id := range a.executed {
		orders[i] = *a.orders[id]
	}
	return orders
}

// OnEndRound advances the min-balance watermark and notifies the policy.
// The driver calls it once per tick after all fills are settled.
func (a *Agent) OnEndRound(ts types.Timestamp, candles []types.Candle) {
	if a.balance < a.minBalance {
		a.minBalance = a.balance
	}
	a.policy.OnEndRound(ts, a.Result(), candles)
}

// OnEnd notifies the policy that the timeline is exhausted.
func (a *Agent) OnEnd() {
	a.policy.OnEnd(a.Result())
}

func copyHoldings(src map[types.Symbol]float32) map[types.Symbol]float32 {
	dst := make(map[types.Symbol]float32, len(src))
	for symbol, qty := range src {
		dst[symbol] = qty
	}
	return dst
}
