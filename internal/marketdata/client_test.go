package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoworld/internal/logger"
)

func newTestLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, _, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, newTestLogger(t))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPrice(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"42000.50"}`))
	}))

	p, err := c.Price(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 42000.50, p, 1e-9)
}

func TestPriceRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"100"}`))
	}))

	p, err := c.Price(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPriceExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Price(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPrices(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","price":"42000"},
			{"symbol":"ETHUSDT","price":"2500"},
			{"symbol":"ETHBTC","price":"0.06"}
		]`))
	}))

	got, err := c.Prices(context.Background(), []string{"BTCUSDT", "ETHUSDT", "NOPEUSDT"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSDT": 42000, "ETHUSDT": 2500}, got)
}

func TestKlines(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			[1700000000000,"100","110","90","105","12.5",1700003599999],
			[1700003600000,"105","120","104","118","8.25",1700007199999]
		]`))
	}))

	got, err := c.Klines(context.Background(), "BTCUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1700000000000), got[0].Time)
	assert.Equal(t, 105.0, got[0].Close)
	assert.Equal(t, 8.25, got[1].Volume)
	assert.Equal(t, int64(1700007199999), got[1].CloseTime)
}

func TestQuotesCache(t *testing.T) {
	q := NewQuotes()
	_, ok := q.Get("BTCUSDT")
	assert.False(t, ok)

	q.SetAll(map[string]float64{"BTCUSDT": 42000})
	quote, ok := q.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 42000.0, quote.Price)
	assert.False(t, quote.At.IsZero())
}
