// Package pnl computes profit and loss on notional quantity×price deltas.
// Leverage never enters these formulas; it only sizes margin.
package pnl

import (
	"math"

	"cryptoworld/internal/types"
)

// Result holds absolute and percentage PnL for one exposure slice.
type Result struct {
	Abs float64
	Pct float64
}

// Calculate returns the PnL of quantity units entered at entryPrice and
// marked at currentPrice. Any non-finite or non-positive input yields a
// zero Result, so display paths can feed half-loaded rows through without
// guarding every field themselves.
func Calculate(side types.PositionSide, entryPrice, currentPrice, quantity float64) Result {
	if !isPositive(entryPrice) || !isPositive(currentPrice) || !isPositive(quantity) {
		return Result{}
	}

	var abs float64
	if side == types.PositionSideShort {
		abs = (entryPrice - currentPrice) * quantity
	} else {
		abs = (currentPrice - entryPrice) * quantity
	}

	base := entryPrice * quantity
	var pct float64
	if base > 0 {
		pct = abs / base * 100
	}
	return Result{Abs: abs, Pct: pct}
}

func isPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
