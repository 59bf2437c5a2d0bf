package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/papertrade/core"
)

func TestTelegram_TradeOwnerRoutesToOwningSender(t *testing.T) {
	bot := &telegram{settings: Settings{Users: []int64{111, 222}}}

	owner, ok := bot.tradeOwner(core.Trade{UserID: "222"})
	require.True(t, ok)
	assert.Equal(t, int64(222), owner.ID)

	// Authorized users never receive another sender's trades
	_, ok = bot.tradeOwner(core.Trade{UserID: "333"})
	assert.False(t, ok)

	// Wallet ids not tied to a Telegram sender fall back to broadcast
	_, ok = bot.tradeOwner(core.Trade{UserID: "default"})
	assert.False(t, ok)
}

func TestFormatTradeMessage(t *testing.T) {
	pnl := 12.3456
	sell := core.Trade{
		UserID:         "111",
		Type:           core.TradeTypeSell,
		Symbol:         "btc",
		Quantity:       0.5,
		PriceUsd:       50000,
		FeeUsd:         25,
		RealizedPnlUsd: &pnl,
	}

	message := formatTradeMessage(sell)
	assert.Contains(t, message, "🔴 SELL - BTC")
	assert.Contains(t, message, "Profit: `12.3456`")

	buy := core.Trade{Type: core.TradeTypeBuy, Symbol: "eth", Quantity: 1, PriceUsd: 3000, FeeUsd: 3}
	message = formatTradeMessage(buy)
	assert.Contains(t, message, "🟢 BUY - ETH")
	assert.NotContains(t, message, "Profit")
}

func TestExtractCommandParams(t *testing.T) {
	match := buyRegexp.FindStringSubmatch("/buy BTC 100.5")
	require.NotEmpty(t, match)

	command := extractCommandParams(buyRegexp, match)
	assert.Equal(t, "BTC", command["symbol"])
	assert.Equal(t, "100.5", command["amount"])

	match = sellRegexp.FindStringSubmatch("/sell eth 50%")
	require.NotEmpty(t, match)

	command = extractCommandParams(sellRegexp, match)
	assert.Equal(t, "eth", command["symbol"])
	assert.Equal(t, "50", command["amount"])
	assert.Equal(t, "%", command["percent"])
}
