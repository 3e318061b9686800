package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cryptoworld/internal/types"
)

func TestFromRowCurrentSchema(t *testing.T) {
	p := FromRow(map[string]any{
		"id": "p1", "user_id": "u1", "symbol": "BTCUSDT",
		"side": "BUY", "size": 1.5, "avg_entry": 20000.0,
		"leverage": 10.0, "margin_required": 3000.0, "status": "open",
		"opened_at": "2024-05-01T10:00:00Z",
	})
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, types.PositionSideLong, p.Side)
	assert.Equal(t, 1.5, p.Quantity)
	assert.Equal(t, 20000.0, p.AvgEntry)
	assert.Equal(t, 10.0, p.Leverage)
	assert.Equal(t, 3000.0, p.MarginRequired)
	assert.True(t, p.IsOpen())
	assert.Equal(t, 2024, p.OpenedAt.Year())
}

func TestFromRowLegacyFallbacks(t *testing.T) {
	p := FromRow(map[string]any{
		"id": "p2", "user_id": "u1", "symbol": "ETHUSDT",
		"entry_price": "1800.5", "quantity": "2",
	})
	assert.Equal(t, 1800.5, p.AvgEntry, "entry_price stands in for avg_entry")
	assert.Equal(t, 2.0, p.Quantity, "quantity stands in for size")
	assert.Equal(t, float64(DefaultLeverage), p.Leverage)
	assert.Equal(t, 0.0, p.MarginRequired, "missing margin clamps to zero")
	assert.Equal(t, types.PositionSideLong, p.Side, "missing side defaults to long")
	assert.True(t, p.IsOpen(), "rows without a status column count as open")
}

func TestFromRowPrefersCanonicalColumns(t *testing.T) {
	p := FromRow(map[string]any{
		"avg_entry": 100.0, "entry_price": 90.0,
		"size": 3.0, "quantity": 1.0,
	})
	assert.Equal(t, 100.0, p.AvgEntry)
	assert.Equal(t, 3.0, p.Quantity)
}

func TestFromRowNegativeMarginClamps(t *testing.T) {
	p := FromRow(map[string]any{"margin_required": -42.0})
	assert.Equal(t, 0.0, p.MarginRequired)
}

func TestNormalizePositionSide(t *testing.T) {
	assert.Equal(t, types.PositionSideShort, NormalizePositionSide("SELL"))
	assert.Equal(t, types.PositionSideShort, NormalizePositionSide("short"))
	assert.Equal(t, types.PositionSideLong, NormalizePositionSide("BUY"))
	assert.Equal(t, types.PositionSideLong, NormalizePositionSide(""))
	assert.Equal(t, types.PositionSideLong, NormalizePositionSide("garbage"))
}

func TestNormalizeOrderSide(t *testing.T) {
	for raw, want := range map[string]types.OrderSide{
		"buy": types.OrderSideBuy, "LONG": types.OrderSideBuy,
		"sell": types.OrderSideSell, "Short": types.OrderSideSell,
	} {
		got, err := NormalizeOrderSide(raw)
		assert.NoError(t, err)
		assert.Equal(t, want, got, raw)
	}
	_, err := NormalizeOrderSide("hodl")
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestIsOpen(t *testing.T) {
	assert.True(t, Position{Status: "open"}.IsOpen())
	assert.True(t, Position{}.IsOpen())
	assert.False(t, Position{Status: "closed"}.IsOpen())
}
