package types

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned when a dispatched command carries a type
// the engine does not recognize.
var ErrUnknownCommand = errors.New("unknown command")

// InsufficientBalanceError is returned when a buy would spend more cash
// than the agent holds. The ledger is untouched when it is returned.
type InsufficientBalanceError struct {
	Available float32
	Required  float32
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %v, required %v", e.Available, e.Required)
}

// InsufficientAssetBalanceError is returned when a sell asks for more of an
// asset than is available (frozen quantities do not count).
type InsufficientAssetBalanceError struct {
	Symbol    Symbol
	Available float32
	Required  float32
}

func (e *InsufficientAssetBalanceError) Error() string {
	return fmt.Sprintf("insufficient asset balance for %s: available %v, required %v", e.Symbol, e.Available, e.Required)
}
