// Package margin sizes required margin and derives the per-account margin
// snapshot used to admit new orders.
package margin

import (
	"errors"
	"fmt"
	"math"

	"cryptoworld/internal/model"
)

var (
	ErrInvalidMargin      = errors.New("calculated margin is invalid")
	ErrInsufficientMargin = errors.New("insufficient free margin")
)

// Required returns the cash reserved for a new exposure slice:
// notional divided by leverage.
func Required(quantity, price, leverage float64) (float64, error) {
	m := quantity * price / leverage
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return 0, fmt.Errorf("%w: quantity %v price %v leverage %v", ErrInvalidMargin, quantity, price, leverage)
	}
	return m, nil
}

// Snapshot is the account's margin state at one instant. Equity equals the
// cash balance: unrealized PnL never feeds equity in this design, only
// realized PnL moves cash.
type Snapshot struct {
	CashBalance float64
	UsedMargin  float64
	FreeMargin  float64
	Equity      float64
}

// NewSnapshot derives the snapshot from the cash balance and all open
// positions.
func NewSnapshot(cashBalance float64, positions []model.Position) Snapshot {
	var used float64
	for _, p := range positions {
		used += p.MarginRequired
	}
	return Snapshot{
		CashBalance: cashBalance,
		UsedMargin:  used,
		FreeMargin:  math.Max(cashBalance-used, 0),
		Equity:      cashBalance,
	}
}

// AdmitBuy rejects a buy that would reserve more than the free margin.
// Sells release margin and are never gated.
func (s Snapshot) AdmitBuy(required float64) error {
	if required > s.FreeMargin {
		return fmt.Errorf("%w: required %.2f, available %.2f", ErrInsufficientMargin, required, s.FreeMargin)
	}
	return nil
}
