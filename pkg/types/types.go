// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the backtester — market bars,
// order records, policy commands, and result snapshots. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"github.com/google/uuid"
)

// Timestamp is a monotonic epoch value. The engine never interprets the
// unit beyond "larger is later", so seconds and minutes both work.
type Timestamp uint64

// Symbol identifies a traded instrument, e.g. "BTCUSDT".
type Symbol string

// OrderID uniquely identifies an order for its whole lifecycle.
type OrderID = uuid.UUID

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType enumerates the supported order lifecycles.
type OrderType string

const (
	Market OrderType = "MARKET" // executes against the current bar's open
	Limit  OrderType = "LIMIT"  // rests in the queue until the price crosses
)

// OrderStatus tracks where an order is in its lifecycle.
// An order is Open only while it sits in an agent's queue; everything in
// the executed list is Close or Cancel.
type OrderStatus string

const (
	StatusOpen   OrderStatus = "OPEN"
	StatusClose  OrderStatus = "CLOSE"
	StatusCancel OrderStatus = "CANCEL"
)

// ————————————————————————————————————————————————————————————————————————
// Market bars
// ————————————————————————————————————————————————————————————————————————

// Candle is the abstract accessor over one OHLC bar. The engine holds
// borrowed references only and never mutates a bar; callers may back the
// interface with richer types (cached klines, feature-augmented bars).
type Candle interface {
	GetSymbol() Symbol
	GetStartTime() Timestamp
	GetOpen() float32
	GetHigh() float32
	GetLow() float32
	GetClose() float32
}

// Bar is the plain value implementation of Candle used by the feed and
// the candle cache.
type Bar struct {
	Symbol    Symbol    `json:"symbol"`
	StartTime Timestamp `json:"start_time"`
	Open      float32   `json:"open"`
	High      float32   `json:"high"`
	Low       float32   `json:"low"`
	Close     float32   `json:"close"`
}

func (b Bar) GetSymbol() Symbol       { return b.Symbol }
func (b Bar) GetStartTime() Timestamp { return b.StartTime }
func (b Bar) GetOpen() float32        { return b.Open }
func (b Bar) GetHigh() float32        { return b.High }
func (b Bar) GetLow() float32         { return b.Low }
func (b Bar) GetClose() float32       { return b.Close }

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is the lifecycle record for one order. Prices, quantities and
// commissions are float32 on purpose: result snapshots are compared against
// golden values that carry 32-bit precision drift.
type Order struct {
	ID         OrderID
	Symbol     Symbol
	CreatedAt  Timestamp
	FinishedAt Timestamp // bar timestamp of the Close/Cancel transition, 0 while Open
	Price      float32
	Qty        float32
	Commission float32 // attached at submission, realized at fill
	Status     OrderStatus
	Side       Side
	Type       OrderType
	Expiration *Timestamp // limit orders only; nil = good-til-cancelled
}

// ————————————————————————————————————————————————————————————————————————
// Result snapshots
// ————————————————————————————————————————————————————————————————————————

// CalculateResult is a read-only projection of an agent's ledger taken at a
// consistent instant. Maps are copies; mutating them does not touch the agent.
type CalculateResult struct {
	Balance         float32
	MinBalance      float32
	OpenedOrders    int
	ExecutedOrders  int
	AssetsAvailable map[Symbol]float32
	AssetsFrozen    map[Symbol]float32
}

// CalculateStats is the per-bar view handed to policies that want a
// mark-to-market of their holdings on one symbol.
type CalculateStats struct {
	Balance         float32
	Orders          int     // open orders queued on the bar's symbol
	Count           float32 // available quantity of the bar's symbol
	Expected        float32
	Real            float32 // Count × bar open
	AssetsAvailable map[Symbol]float32
	AssetsFrozen    map[Symbol]float32
}
