package marketdata

import (
	"context"
	"time"

	"cryptoworld/internal/logger"
)

// QuoteUpdate is the per-tick payload published on the bus.
type QuoteUpdate struct {
	Prices map[string]float64 `json:"prices"`
	TS     int64              `json:"ts"`
}

// Poller refreshes the quote cache on a fixed interval and publishes the
// prices of the currently watched symbols.
type Poller struct {
	client *Client
	bus    *Bus
	quotes *Quotes
	every  time.Duration
	logger logger.Logger

	watch *WatchList
}

func NewPoller(client *Client, bus *Bus, quotes *Quotes, watch *WatchList, every time.Duration, log logger.Logger) *Poller {
	return &Poller{
		client: client,
		bus:    bus,
		quotes: quotes,
		watch:  watch,
		every:  every,
		logger: log,
	}
}

// Run blocks until ctx is cancelled. One failed tick is logged and skipped,
// the cache keeps serving the previous quotes.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.every*6)
	defer cancel()

	all, err := p.client.AllPrices(ctx)
	if err != nil {
		p.logger.Warnf("price poll failed: %v", err)
		return
	}
	p.quotes.SetAll(all)

	symbols := p.watch.Symbols()
	if len(symbols) == 0 {
		return
	}
	update := QuoteUpdate{Prices: make(map[string]float64, len(symbols)), TS: time.Now().UnixMilli()}
	for _, sym := range symbols {
		if price, ok := all[sym]; ok {
			update.Prices[sym] = price
		}
	}
	p.bus.Publish(Event{Type: "quote", Data: update})
}
