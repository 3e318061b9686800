// Package marketdata talks to the Binance public REST API and fans live
// quotes out to websocket subscribers.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"cryptoworld/internal/logger"
)

const (
	_pricePath   = "/api/v3/ticker/price"
	_ticker24h   = "/api/v3/ticker/24hr"
	_klinesPath  = "/api/v3/klines"
	_maxAttempts = 3

	_attemptTimeout = 10 * time.Second
)

// ErrFetchFailed is returned after every retry attempt was exhausted.
var ErrFetchFailed = errors.New("failed to fetch market data")

type Client struct {
	c       *resty.Client
	limiter ratelimit.Limiter

	logger logger.Logger
}

func NewClient(baseURL string, log logger.Logger) *Client {
	client := resty.New().
		SetLogger(log).
		SetBaseURL(baseURL).
		SetTimeout(_attemptTimeout)

	return &Client{
		c: client,
		// Binance allows 1200 request weight per minute, stay well under it
		limiter: ratelimit.New(10),
		logger:  log,
	}
}

func (c *Client) Close() error {
	return c.c.Close()
}

// get performs one rate-limited GET with up to three attempts and a linear
// 1s, 2s backoff between them, returning the raw response body.
func (c *Client) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= _maxAttempts; attempt++ {
		c.limiter.Take()

		resp, err := c.c.R().
			SetContext(ctx).
			SetQueryParams(query).
			Get(path)
		if err == nil && resp.IsSuccess() {
			return resp.Bytes(), nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("http %s", resp.Status())
		}
		c.logger.Warnf("binance %s attempt %d failed: %v", path, attempt, lastErr)

		if attempt == _maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, path, lastErr)
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Price fetches the latest trade price for one symbol.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	body, err := c.get(ctx, _pricePath, map[string]string{"symbol": symbol})
	if err != nil {
		return 0, err
	}
	var tp tickerPrice
	if err := sonic.Unmarshal(body, &tp); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	p, err := strconv.ParseFloat(tp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", tp.Price, err)
	}
	return p, nil
}

// Prices fetches the full price list once and returns the subset for the
// requested symbols. Symbols Binance does not know are simply absent from
// the result.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	all, err := c.AllPrices(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p, ok := all[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

// AllPrices fetches the latest price for every listed symbol.
func (c *Client) AllPrices(ctx context.Context) (map[string]float64, error) {
	body, err := c.get(ctx, _pricePath, nil)
	if err != nil {
		return nil, err
	}
	var list []tickerPrice
	if err := sonic.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode price list: %w", err)
	}
	out := make(map[string]float64, len(list))
	for _, tp := range list {
		p, err := strconv.ParseFloat(tp.Price, 64)
		if err != nil {
			continue
		}
		out[tp.Symbol] = p
	}
	return out, nil
}

// Ticker24h is one row of the 24hr rolling window statistics.
type Ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	QuoteVolume        string `json:"quoteVolume"`
}

// Tickers24h fetches the 24hr statistics for every listed symbol.
func (c *Client) Tickers24h(ctx context.Context) ([]Ticker24h, error) {
	body, err := c.get(ctx, _ticker24h, nil)
	if err != nil {
		return nil, err
	}
	var list []Ticker24h
	if err := sonic.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode tickers: %w", err)
	}
	return list, nil
}

// Kline is one candlestick.
type Kline struct {
	Time      int64   `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"`
}

// Klines fetches candlesticks for symbol at the given interval.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if limit <= 0 {
		limit = 200
	}
	body, err := c.get(ctx, _klinesPath, map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	// Binance encodes klines as mixed-type arrays.
	var raw [][]any
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	out := make([]Kline, 0, len(raw))
	for _, k := range raw {
		if len(k) < 7 {
			continue
		}
		out = append(out, Kline{
			Time:      asMillis(k[0]),
			Open:      asPrice(k[1]),
			High:      asPrice(k[2]),
			Low:       asPrice(k[3]),
			Close:     asPrice(k[4]),
			Volume:    asPrice(k[5]),
			CloseTime: asMillis(k[6]),
		})
	}
	return out, nil
}

func asMillis(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	default:
		return 0
	}
}

func asPrice(v any) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return p
}
