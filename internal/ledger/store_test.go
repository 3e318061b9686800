package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoworld/internal/logger"
	"cryptoworld/internal/model"
	"cryptoworld/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, _, err := logger.New("error")
	require.NoError(t, err)
	return NewStore(nil, log)
}

func undefinedColumn(col string) error {
	return fmt.Errorf("exec: %w", &pgconn.PgError{
		Code:    "42703",
		Message: fmt.Sprintf("column %q of relation \"orders\" does not exist", col),
	})
}

func TestWriteColumnsFullRow(t *testing.T) {
	s := newTestStore(t)
	pnl := 123.45
	o := &model.Order{
		UserID:   "u1",
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideSell,
		Quantity: 0.5,
		Price:    24000,
		Leverage: 10,
		Type:     types.OrderTypeMarket,
		Status:   types.OrderStatusFilled,
		Total:    12000,
		Pnl:      &pnl,
	}

	cols, vals := s.writeColumns(o)
	assert.Equal(t, []string{"user_id", "symbol", "side", "quantity", "price", "status", "total", "leverage", "type", "pnl"}, cols)
	assert.Len(t, vals, len(cols))
}

func TestWriteColumnsSkipsEmptyOptionals(t *testing.T) {
	s := newTestStore(t)
	o := &model.Order{
		UserID:   "u1",
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Quantity: 1,
		Price:    20000,
		Status:   types.OrderStatusFilled,
	}

	cols, _ := s.writeColumns(o)
	assert.NotContains(t, cols, "pnl")
	assert.NotContains(t, cols, "leverage")
	assert.NotContains(t, cols, "type")
	assert.NotContains(t, cols, "created_at")
}

func TestDropMissingOptional(t *testing.T) {
	s := newTestStore(t)

	retry, fatal := s.dropMissing(undefinedColumn("pnl"))
	require.NoError(t, fatal)
	assert.True(t, retry)

	pnl := 1.0
	cols, _ := s.writeColumns(&model.Order{Pnl: &pnl, Leverage: 5})
	assert.NotContains(t, cols, "pnl")
	assert.Contains(t, cols, "leverage")
}

func TestDropMissingRequiredIsSchemaDrift(t *testing.T) {
	s := newTestStore(t)

	retry, fatal := s.dropMissing(undefinedColumn("price"))
	assert.False(t, retry)
	assert.ErrorIs(t, fatal, ErrSchemaDrift)
}

func TestDropMissingIgnoresOtherErrors(t *testing.T) {
	s := newTestStore(t)

	retry, fatal := s.dropMissing(errors.New("network down"))
	assert.False(t, retry)
	assert.NoError(t, fatal)
}

func TestDecodeRow(t *testing.T) {
	raw := []byte(`{
		"id":"o1","user_id":"u1","symbol":"ETHUSDT","side":"sell",
		"quantity":2,"price":1800,"total":3600,"leverage":10,
		"type":"MARKET","status":"weird","pnl":-120.5,
		"created_at":"2024-05-01T10:00:00Z"
	}`)
	o, err := decodeRow(raw)
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, types.OrderSideSell, o.Side)
	assert.Equal(t, types.OrderStatusFilled, o.Status)
	require.NotNil(t, o.Pnl)
	assert.Equal(t, -120.5, *o.Pnl)
	assert.Equal(t, 2024, o.CreatedAt.Year())
	assert.Equal(t, 3600.0, o.OrderTotal())
}

func TestDecodeRowLegacyNoTotal(t *testing.T) {
	raw := []byte(`{"id":"o2","user_id":"u1","symbol":"BTCUSDT","side":"buy","quantity":0.5,"price":40000}`)
	o, err := decodeRow(raw)
	require.NoError(t, err)
	assert.Nil(t, o.Pnl)
	assert.Equal(t, 20000.0, o.OrderTotal())
	assert.Equal(t, types.OrderStatusFilled, o.Status)
}
