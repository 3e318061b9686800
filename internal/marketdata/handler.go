package marketdata

import (
	"net/http"
	"strconv"
	"strings"

	"cryptoworld/internal/httputil"
)

type Handler struct {
	client *Client
	quotes *Quotes
}

func NewHandler(client *Client, quotes *Quotes) *Handler {
	return &Handler{client: client, quotes: quotes}
}

// Price serves the latest price for one symbol, falling back to the cached
// quote when the upstream fetch fails.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "symbol is required"})
		return
	}

	price, err := h.client.Price(r.Context(), symbol)
	if err != nil {
		if quote, ok := h.quotes.Get(symbol); ok {
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"symbol": symbol, "price": quote.Price, "stale": true, "at": quote.At,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "price unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "price": price})
}

// Tickers serves the markets page lists: top by volume, gainers, losers.
func (h *Handler) Tickers(w http.ResponseWriter, r *http.Request) {
	all, err := h.client.Tickers24h(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "tickers unavailable"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var out []Ticker24h
	switch strings.ToLower(r.URL.Query().Get("sort")) {
	case "gainers":
		if limit <= 0 {
			limit = 20
		}
		out = TopGainers(all, limit)
	case "losers":
		if limit <= 0 {
			limit = 20
		}
		out = TopLosers(all, limit)
	default:
		if limit <= 0 {
			limit = 30
		}
		out = TopByVolume(all, limit)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// Klines serves candlestick data for the chart.
func (h *Handler) Klines(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	interval := strings.TrimSpace(r.URL.Query().Get("interval"))
	if interval == "" {
		interval = "1h"
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	klines, err := h.client.Klines(r.Context(), symbol, interval, limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "klines unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, klines)
}
