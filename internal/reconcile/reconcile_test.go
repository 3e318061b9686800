package reconcile

import (
	"math"
	"testing"

	"cryptoworld/internal/model"
	"cryptoworld/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buy(qty, price, leverage float64) Intent {
	return Intent{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Quantity: qty, Price: price, Leverage: leverage}
}

func sell(qty, price float64) Intent {
	return Intent{Symbol: "BTCUSDT", Side: types.OrderSideSell, Quantity: qty, Price: price, Leverage: model.DefaultLeverage}
}

func TestOpenNewLong(t *testing.T) {
	out, err := Reconcile(nil, buy(1.0, 20000, 10))
	require.NoError(t, err)

	assert.Equal(t, types.ReconcileInsert, out.Mode)
	assert.Zero(t, out.RealizedPnl)
	require.NotNil(t, out.Position)
	assert.Equal(t, types.PositionSideLong, out.Position.Side)
	assert.InDelta(t, 1.0, out.Position.Quantity, Epsilon)
	assert.InDelta(t, 20000, out.Position.AvgEntry, Epsilon)
	assert.InDelta(t, 2000, out.Position.MarginRequired, Epsilon)
}

func TestSellWithoutPosition(t *testing.T) {
	_, err := Reconcile(nil, sell(1.0, 20000))
	assert.ErrorIs(t, err, ErrNoPositionToClose)
}

func TestIncreaseRecomputesAverageEntry(t *testing.T) {
	existing := &model.Position{
		ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideLong,
		Quantity: 1.0, AvgEntry: 20000, Leverage: 10, MarginRequired: 2000,
	}
	out, err := Reconcile(existing, buy(1.0, 22000, 10))
	require.NoError(t, err)

	assert.Equal(t, types.ReconcileUpdate, out.Mode)
	assert.Zero(t, out.RealizedPnl)
	assert.InDelta(t, 2.0, out.Position.Quantity, Epsilon)
	assert.InDelta(t, 21000, out.Position.AvgEntry, Epsilon)
	assert.InDelta(t, 4200, out.Position.MarginRequired, Epsilon)
}

func TestReduceKeepsAverageEntryAndProRatesMargin(t *testing.T) {
	existing := &model.Position{
		ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideLong,
		Quantity: 2.0, AvgEntry: 21000, Leverage: 10, MarginRequired: 4200,
	}
	out, err := Reconcile(existing, sell(0.5, 24000))
	require.NoError(t, err)

	assert.Equal(t, types.ReconcileReduce, out.Mode)
	assert.InDelta(t, 1500, out.RealizedPnl, 1e-9)
	assert.InDelta(t, 1.5, out.Position.Quantity, Epsilon)
	assert.InDelta(t, 21000, out.Position.AvgEntry, Epsilon)
	assert.InDelta(t, 4200*1.5/2.0, out.Position.MarginRequired, 1e-9)
}

func TestCloseRealizesLoss(t *testing.T) {
	existing := &model.Position{
		ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideLong,
		Quantity: 1.5, AvgEntry: 21000, Leverage: 10, MarginRequired: 3150,
	}
	out, err := Reconcile(existing, sell(1.5, 19000))
	require.NoError(t, err)

	assert.Equal(t, types.ReconcileDelete, out.Mode)
	assert.Nil(t, out.Position)
	assert.InDelta(t, -3000, out.RealizedPnl, 1e-9)
}

func TestCloseToleratesFloatRemainder(t *testing.T) {
	existing := &model.Position{
		ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideLong,
		Quantity: 0.3, AvgEntry: 100, Leverage: 5, MarginRequired: 6,
	}
	// 0.1+0.1+0.1 != 0.3 exactly in float64; the remainder must still close.
	out, err := Reconcile(existing, sell(0.1+0.1+0.1, 110))
	require.NoError(t, err)
	assert.Equal(t, types.ReconcileDelete, out.Mode)
}

func TestSellExceedsPosition(t *testing.T) {
	existing := &model.Position{
		ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideLong,
		Quantity: 1.0, AvgEntry: 20000, Leverage: 10, MarginRequired: 2000,
	}
	_, err := Reconcile(existing, sell(1.1, 20000))
	assert.ErrorIs(t, err, ErrSellExceedsPosition)
}

func TestLegacyShortBlocksBothSides(t *testing.T) {
	existing := &model.Position{
		ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideShort,
		Quantity: 1.0, AvgEntry: 20000, Leverage: 10, MarginRequired: 2000,
	}
	_, err := Reconcile(existing, buy(1.0, 20000, 10))
	assert.ErrorIs(t, err, ErrLegacyShortPosition)

	_, err = Reconcile(existing, sell(1.0, 20000))
	assert.ErrorIs(t, err, ErrLegacyShortPosition)
}

func TestInvalidIntentRejectedBeforeStoreWork(t *testing.T) {
	cases := []Intent{
		{Symbol: "BTCUSDT", Side: "hold", Quantity: 1, Price: 1, Leverage: 1},
		buy(0, 20000, 10),
		buy(-1, 20000, 10),
		buy(1, 0, 10),
		buy(1, math.NaN(), 10),
		buy(1, 20000, 0),
		buy(1, math.Inf(1), 10),
	}
	for _, intent := range cases {
		_, err := Reconcile(nil, intent)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestInvalidEntryPriceOnIncrease(t *testing.T) {
	existing := &model.Position{
		ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideLong,
		Quantity: 1.0, AvgEntry: math.NaN(), Leverage: 10,
	}
	_, err := Reconcile(existing, buy(1.0, 20000, 10))
	assert.ErrorIs(t, err, ErrInvalidEntryPrice)
}

// Quantity conservation over an arbitrary buy/sell sequence: position
// quantity always equals buys-so-far minus sells-so-far, and disappears
// once the remainder is at or below Epsilon.
func TestQuantityConservation(t *testing.T) {
	type step struct {
		side types.OrderSide
		qty  float64
	}
	steps := []step{
		{types.OrderSideBuy, 1.0},
		{types.OrderSideBuy, 0.25},
		{types.OrderSideSell, 0.4},
		{types.OrderSideBuy, 0.15},
		{types.OrderSideSell, 0.5},
		{types.OrderSideSell, 0.5},
	}

	var current *model.Position
	var bought, sold float64
	for i, s := range steps {
		intent := Intent{Symbol: "ETHUSDT", Side: s.side, Quantity: s.qty, Price: 2000, Leverage: 10}
		out, err := Reconcile(current, intent)
		require.NoError(t, err, "step %d", i)

		if s.side == types.OrderSideBuy {
			bought += s.qty
		} else {
			sold += s.qty
		}

		current = out.Position
		expected := bought - sold
		if expected <= Epsilon {
			assert.Nil(t, current, "step %d", i)
		} else {
			require.NotNil(t, current, "step %d", i)
			assert.InDelta(t, expected, current.Quantity, 1e-9, "step %d", i)
			assert.GreaterOrEqual(t, current.Quantity, 0.0, "step %d", i)
		}
	}
	assert.Nil(t, current)
}

// The full worked example: open, scale in, partial close, full close.
func TestRoundTripExample(t *testing.T) {
	out, err := Reconcile(nil, buy(1.0, 20000, 10))
	require.NoError(t, err)
	require.Equal(t, types.ReconcileInsert, out.Mode)

	out, err = Reconcile(out.Position, buy(1.0, 22000, 10))
	require.NoError(t, err)
	require.Equal(t, types.ReconcileUpdate, out.Mode)
	assert.InDelta(t, 21000, out.Position.AvgEntry, Epsilon)
	assert.InDelta(t, 4200, out.Position.MarginRequired, Epsilon)

	out, err = Reconcile(out.Position, sell(0.5, 24000))
	require.NoError(t, err)
	require.Equal(t, types.ReconcileReduce, out.Mode)
	assert.InDelta(t, 1500, out.RealizedPnl, 1e-9)
	assert.InDelta(t, 1.5, out.Position.Quantity, Epsilon)
	assert.InDelta(t, 21000, out.Position.AvgEntry, Epsilon)
	assert.InDelta(t, 3150, out.Position.MarginRequired, 1e-9)

	out, err = Reconcile(out.Position, sell(1.5, 19000))
	require.NoError(t, err)
	assert.Equal(t, types.ReconcileDelete, out.Mode)
	assert.InDelta(t, -3000, out.RealizedPnl, 1e-9)
}
