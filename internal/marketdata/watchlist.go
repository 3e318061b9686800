package marketdata

import (
	"sort"
	"strings"
	"sync"
)

// DefaultWatch seeds the stream with the pairs the dashboard shows before
// any position exists.
var DefaultWatch = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"}

// WatchList is the set of symbols the poller publishes quotes for. Opening
// a position adds its symbol so the stream always covers open exposure.
type WatchList struct {
	mu   sync.RWMutex
	syms map[string]struct{}
}

func NewWatchList(seed ...string) *WatchList {
	w := &WatchList{syms: make(map[string]struct{}, len(seed))}
	for _, s := range seed {
		w.add(s)
	}
	return w
}

func (w *WatchList) Add(symbols ...string) {
	w.mu.Lock()
	for _, s := range symbols {
		w.add(s)
	}
	w.mu.Unlock()
}

func (w *WatchList) add(symbol string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol != "" {
		w.syms[symbol] = struct{}{}
	}
}

func (w *WatchList) Symbols() []string {
	w.mu.RLock()
	out := make([]string, 0, len(w.syms))
	for s := range w.syms {
		out = append(out, s)
	}
	w.mu.RUnlock()
	sort.Strings(out)
	return out
}
