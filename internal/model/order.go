package model

import (
	"errors"
	"strings"
	"time"

	"cryptoworld/internal/types"
)

// Order is an immutable ledger row for one executed trade event. Pnl is
// only present on sell events that reduced or closed a position.
type Order struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Symbol    string            `json:"symbol"`
	Side      types.OrderSide   `json:"side"`
	Quantity  float64           `json:"quantity"`
	Price     float64           `json:"price"`
	Leverage  float64           `json:"leverage"`
	Type      types.OrderType   `json:"type"`
	Status    types.OrderStatus `json:"status"`
	Total     float64           `json:"total"`
	Pnl       *float64          `json:"pnl,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// OrderTotal returns the stored total, falling back to quantity×price for
// rows written before the total column existed.
func (o Order) OrderTotal() float64 {
	if o.Total > 0 {
		return o.Total
	}
	return o.Quantity * o.Price
}

var ErrInvalidSide = errors.New("invalid side value, must be buy or sell")

// NormalizeOrderSide accepts buy/long and sell/short in any case.
func NormalizeOrderSide(raw string) (types.OrderSide, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return types.OrderSideBuy, nil
	case "sell", "short":
		return types.OrderSideSell, nil
	default:
		return "", ErrInvalidSide
	}
}
