package marketdata

import (
	"sync"
	"time"
)

// Quote is the last price seen for a symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
}

// Quotes caches the last-known price per symbol so open-position views can
// still render when the upstream API is briefly unreachable.
type Quotes struct {
	mu    sync.RWMutex
	bySym map[string]Quote
}

func NewQuotes() *Quotes {
	return &Quotes{bySym: make(map[string]Quote)}
}

func (q *Quotes) Set(symbol string, price float64) {
	q.mu.Lock()
	q.bySym[symbol] = Quote{Symbol: symbol, Price: price, At: time.Now()}
	q.mu.Unlock()
}

func (q *Quotes) SetAll(prices map[string]float64) {
	now := time.Now()
	q.mu.Lock()
	for sym, p := range prices {
		q.bySym[sym] = Quote{Symbol: sym, Price: p, At: now}
	}
	q.mu.Unlock()
}

// Get returns the last-known quote for symbol, if any.
func (q *Quotes) Get(symbol string) (Quote, bool) {
	q.mu.RLock()
	quote, ok := q.bySym[symbol]
	q.mu.RUnlock()
	return quote, ok
}
