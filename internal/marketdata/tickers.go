package marketdata

import (
	"sort"
	"strconv"
	"strings"
)

// FilterUSDTPairs keeps USDT-quoted spot pairs and drops leveraged tokens.
func FilterUSDTPairs(tickers []Ticker24h) []Ticker24h {
	out := make([]Ticker24h, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		if isLeveragedToken(t.Symbol) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isLeveragedToken(symbol string) bool {
	base := strings.ToUpper(strings.TrimSuffix(symbol, "USDT"))
	for _, suffix := range []string{"UP", "DOWN", "BULL", "BEAR"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// SortByVolume orders tickers by 24h quote volume, highest first.
func SortByVolume(tickers []Ticker24h) []Ticker24h {
	out := append([]Ticker24h(nil), tickers...)
	sort.SliceStable(out, func(i, j int) bool {
		return parseF(out[i].QuoteVolume) > parseF(out[j].QuoteVolume)
	})
	return out
}

// SortByChange orders tickers by 24h percent change, descending unless asc.
func SortByChange(tickers []Ticker24h, asc bool) []Ticker24h {
	out := append([]Ticker24h(nil), tickers...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := parseF(out[i].PriceChangePercent), parseF(out[j].PriceChangePercent)
		if asc {
			return a < b
		}
		return a > b
	})
	return out
}

func TopByVolume(tickers []Ticker24h, n int) []Ticker24h {
	return head(SortByVolume(FilterUSDTPairs(tickers)), n)
}

func TopGainers(tickers []Ticker24h, n int) []Ticker24h {
	return head(SortByChange(FilterUSDTPairs(tickers), false), n)
}

func TopLosers(tickers []Ticker24h, n int) []Ticker24h {
	return head(SortByChange(FilterUSDTPairs(tickers), true), n)
}

func head(tickers []Ticker24h, n int) []Ticker24h {
	if n <= 0 || n >= len(tickers) {
		return tickers
	}
	return tickers[:n]
}

func parseF(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
