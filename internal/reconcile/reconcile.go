// Package reconcile decides how a market order mutates the trader's open
// position for a symbol: create it, scale it in, scale it out, or close it.
// The engine is pure; applying the outcome to storage is the caller's job.
package reconcile

import (
	"errors"
	"fmt"
	"math"

	"cryptoworld/internal/model"
	"cryptoworld/internal/pnl"
	"cryptoworld/internal/types"
)

// Epsilon absorbs float drift when comparing quantities. A remainder at or
// below it closes the position instead of leaving a dust row behind.
const Epsilon = 1e-12

var (
	ErrInvalidInput        = errors.New("invalid order input")
	ErrInvalidEntryPrice   = errors.New("invalid entry price, cannot create position")
	ErrNoPositionToClose   = errors.New("no open position to sell")
	ErrSellExceedsPosition = errors.New("sell quantity exceeds open position size")
	ErrLegacyShortPosition = errors.New("legacy short position must be closed before trading this symbol")
)

// Intent is one market order against a single symbol.
type Intent struct {
	Symbol   string
	Side     types.OrderSide
	Quantity float64
	Price    float64
	Leverage float64
}

// Outcome describes the position mutation the caller must persist.
// Position is nil for ReconcileDelete. RealizedPnl is non-zero only for
// reduce and delete modes.
type Outcome struct {
	Mode        types.ReconcileMode
	Position    *model.Position
	RealizedPnl float64
}

// Reconcile merges an order intent into the existing open position, or nil
// when there is none.
func Reconcile(existing *model.Position, intent Intent) (Outcome, error) {
	if err := validateIntent(intent); err != nil {
		return Outcome{}, err
	}

	if existing != nil && existing.Side != types.PositionSideLong {
		// Shorts predate the long-only design and can only be closed
		// out-of-band. Keep the guard rather than guessing at merge
		// semantics for them.
		return Outcome{}, fmt.Errorf("%w: %s", ErrLegacyShortPosition, intent.Symbol)
	}

	if intent.Side == types.OrderSideSell {
		if existing == nil {
			return Outcome{}, fmt.Errorf("%w: %s", ErrNoPositionToClose, intent.Symbol)
		}
		return reduce(existing, intent)
	}

	if existing != nil {
		return increase(existing, intent)
	}
	return open(intent)
}

func open(intent Intent) (Outcome, error) {
	margin := intent.Quantity * intent.Price / intent.Leverage
	pos := &model.Position{
		Symbol:         intent.Symbol,
		Side:           types.PositionSideLong,
		Quantity:       intent.Quantity,
		AvgEntry:       intent.Price,
		Leverage:       intent.Leverage,
		MarginRequired: math.Max(margin, 0),
		Status:         "open",
	}
	return Outcome{Mode: types.ReconcileInsert, Position: pos}, nil
}

func increase(existing *model.Position, intent Intent) (Outcome, error) {
	if !(existing.Quantity > 0) {
		return Outcome{}, fmt.Errorf("%w: existing quantity for %s is not positive", ErrInvalidInput, intent.Symbol)
	}
	if !isFinitePositive(existing.AvgEntry) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidEntryPrice, intent.Symbol)
	}

	newQty := existing.Quantity + intent.Quantity
	newAvg := (existing.Quantity*existing.AvgEntry + intent.Quantity*intent.Price) / newQty
	if !isFinitePositive(newAvg) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidEntryPrice, intent.Symbol)
	}

	addedMargin := math.Max(intent.Quantity*intent.Price/intent.Leverage, 0)
	pos := &model.Position{
		ID:             existing.ID,
		UserID:         existing.UserID,
		Symbol:         existing.Symbol,
		Side:           types.PositionSideLong,
		Quantity:       newQty,
		AvgEntry:       newAvg,
		Leverage:       intent.Leverage,
		MarginRequired: existing.MarginRequired + addedMargin,
		Status:         "open",
		OpenedAt:       existing.OpenedAt,
	}
	return Outcome{Mode: types.ReconcileUpdate, Position: pos}, nil
}

func reduce(existing *model.Position, intent Intent) (Outcome, error) {
	if !(existing.Quantity > 0) {
		return Outcome{}, fmt.Errorf("%w: existing quantity for %s is not positive", ErrInvalidInput, intent.Symbol)
	}
	if intent.Quantity > existing.Quantity+Epsilon {
		return Outcome{}, fmt.Errorf("%w: requested %v, open %v", ErrSellExceedsPosition, intent.Quantity, existing.Quantity)
	}
	if !isFinitePositive(existing.AvgEntry) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidEntryPrice, intent.Symbol)
	}

	// Realized PnL for the sold slice against the average entry.
	realized := pnl.Calculate(types.PositionSideLong, existing.AvgEntry, intent.Price, intent.Quantity).Abs

	remaining := existing.Quantity - intent.Quantity
	if remaining <= Epsilon {
		return Outcome{Mode: types.ReconcileDelete, RealizedPnl: realized}, nil
	}

	leverage := existing.Leverage
	if !(leverage > 0) {
		leverage = intent.Leverage
	}
	pos := &model.Position{
		ID:             existing.ID,
		UserID:         existing.UserID,
		Symbol:         existing.Symbol,
		Side:           types.PositionSideLong,
		Quantity:       remaining,
		AvgEntry:       existing.AvgEntry,
		Leverage:       leverage,
		MarginRequired: existing.MarginRequired * (remaining / existing.Quantity),
		Status:         "open",
		OpenedAt:       existing.OpenedAt,
	}
	return Outcome{Mode: types.ReconcileReduce, Position: pos, RealizedPnl: realized}, nil
}

func validateIntent(intent Intent) error {
	if intent.Side != types.OrderSideBuy && intent.Side != types.OrderSideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidInput, intent.Side)
	}
	if !isFinitePositive(intent.Quantity) {
		return fmt.Errorf("%w: quantity %v", ErrInvalidInput, intent.Quantity)
	}
	if !isFinitePositive(intent.Price) {
		return fmt.Errorf("%w: price %v", ErrInvalidInput, intent.Price)
	}
	if !isFinitePositive(intent.Leverage) {
		return fmt.Errorf("%w: leverage %v", ErrInvalidInput, intent.Leverage)
	}
	return nil
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
