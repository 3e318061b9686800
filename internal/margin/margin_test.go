package margin

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoworld/internal/model"
)

func TestRequired(t *testing.T) {
	m, err := Required(2.0, 21000, 10)
	require.NoError(t, err)
	assert.InDelta(t, 4200.0, m, 1e-9)
}

func TestRequiredInvalid(t *testing.T) {
	cases := []struct {
		name     string
		qty, px  float64
		leverage float64
	}{
		{"zero quantity", 0, 100, 10},
		{"zero leverage", 1, 100, 0},
		{"nan price", 1, math.NaN(), 10},
		{"negative price", 1, -100, 10},
		{"infinite leverage ratio", 1, math.Inf(1), 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Required(tc.qty, tc.px, tc.leverage)
			assert.ErrorIs(t, err, ErrInvalidMargin)
		})
	}
}

func TestNewSnapshot(t *testing.T) {
	positions := []model.Position{
		{MarginRequired: 4200},
		{MarginRequired: 800},
	}
	s := NewSnapshot(10000, positions)
	assert.Equal(t, 10000.0, s.CashBalance)
	assert.InDelta(t, 5000.0, s.UsedMargin, 1e-9)
	assert.InDelta(t, 5000.0, s.FreeMargin, 1e-9)
	assert.Equal(t, 10000.0, s.Equity)
}

func TestNewSnapshotFreeMarginFloorsAtZero(t *testing.T) {
	s := NewSnapshot(1000, []model.Position{{MarginRequired: 2500}})
	assert.Equal(t, 0.0, s.FreeMargin)
	assert.Equal(t, 1000.0, s.Equity)
}

func TestAdmitBuy(t *testing.T) {
	s := NewSnapshot(10000, nil)
	assert.NoError(t, s.AdmitBuy(10000))
	assert.ErrorIs(t, s.AdmitBuy(10000.01), ErrInsufficientMargin)
}
