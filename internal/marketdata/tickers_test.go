package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tickersFixture() []Ticker24h {
	return []Ticker24h{
		{Symbol: "BTCUSDT", PriceChangePercent: "2.5", QuoteVolume: "900000"},
		{Symbol: "ETHUSDT", PriceChangePercent: "-1.2", QuoteVolume: "500000"},
		{Symbol: "ETHBTC", PriceChangePercent: "9.9", QuoteVolume: "800000"},
		{Symbol: "BTCUPUSDT", PriceChangePercent: "12.0", QuoteVolume: "700000"},
		{Symbol: "ADADOWNUSDT", PriceChangePercent: "-15.0", QuoteVolume: "600000"},
		{Symbol: "DOGEUSDT", PriceChangePercent: "7.0", QuoteVolume: "100000"},
	}
}

func TestFilterUSDTPairs(t *testing.T) {
	got := FilterUSDTPairs(tickersFixture())
	syms := make([]string, 0, len(got))
	for _, tk := range got {
		syms = append(syms, tk.Symbol)
	}
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT", "DOGEUSDT"}, syms)
}

func TestIsLeveragedToken(t *testing.T) {
	assert.True(t, isLeveragedToken("BTCUPUSDT"))
	assert.True(t, isLeveragedToken("ADADOWNUSDT"))
	assert.True(t, isLeveragedToken("EOSBULLUSDT"))
	assert.True(t, isLeveragedToken("EOSBEARUSDT"))
	assert.False(t, isLeveragedToken("BTCUSDT"))
	assert.False(t, isLeveragedToken("SUPERUSDT"))
}

func TestTopByVolume(t *testing.T) {
	got := TopByVolume(tickersFixture(), 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, "ETHUSDT", got[1].Symbol)
}

func TestTopGainersAndLosers(t *testing.T) {
	gainers := TopGainers(tickersFixture(), 1)
	assert.Equal(t, "DOGEUSDT", gainers[0].Symbol)

	losers := TopLosers(tickersFixture(), 1)
	assert.Equal(t, "ETHUSDT", losers[0].Symbol)
}

func TestHeadShorterThanN(t *testing.T) {
	got := TopByVolume(tickersFixture(), 50)
	assert.Len(t, got, 3)
}
