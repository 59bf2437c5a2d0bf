package wallet

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/papertrade/core"
	"github.com/raykavin/papertrade/engine"
	adapter "github.com/raykavin/papertrade/logger/zerolog"
	"github.com/raykavin/papertrade/oracle"
	"github.com/raykavin/papertrade/storage"
)

func testLogger() core.Logger {
	logger := zerolog.Nop()
	return adapter.NewAdapter(&logger)
}

// minDraw pins the slippage draw at its lower bound for exact assertions
func minDraw() float64 { return 0 }

func newTestService(t *testing.T, prices map[string]float64, options ...Option) (*Service, *oracle.Static) {
	t.Helper()

	db, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	priceOracle := oracle.NewStatic(prices)
	tradeEngine := engine.New(engine.WithSlippageDraw(minDraw))

	return NewService(tradeEngine, priceOracle, db, testLogger(), options...), priceOracle
}

func TestService_CreatesWalletOnFirstUse(t *testing.T) {
	service, _ := newTestService(t, nil)

	wallet, err := service.Wallet(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, DefaultInitialBalance, wallet.BalanceUsd)
	assert.Empty(t, wallet.Positions)
}

func TestService_BuyPersistsBalanceAndPosition(t *testing.T) {
	service, _ := newTestService(t, map[string]float64{"btc": 50000})
	ctx := context.Background()

	result, err := service.Buy(ctx, "alice", "bitcoin", "btc", "Bitcoin", 1000)
	require.NoError(t, err)
	require.True(t, result.Success)

	// Slippage pinned at 0.01%: executed price 50005, fee $1, total $1001
	assert.InDelta(t, 50005.0, result.ExecutedPrice, 1e-9)
	assert.InDelta(t, 1.0, result.FeeUsd, 1e-9)

	wallet, err := service.Wallet(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 8999.0, wallet.BalanceUsd, 1e-9)

	position := wallet.Position("bitcoin")
	require.NotNil(t, position)
	assert.InDelta(t, 1000.0/50005.0, position.Quantity, 1e-12)
	assert.InDelta(t, 50005.0, position.AvgBuyPriceUsd, 1e-9)

	trades, err := service.Trades(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].IsBuy())
	assert.Equal(t, 1000.0, trades[0].UsdAmount)
	assert.Nil(t, trades[0].RealizedPnlUsd)
}

func TestService_SellRecordsRealizedProfit(t *testing.T) {
	service, priceOracle := newTestService(t, map[string]float64{"btc": 50000})
	ctx := context.Background()

	_, err := service.Buy(ctx, "alice", "bitcoin", "btc", "Bitcoin", 1000)
	require.NoError(t, err)

	priceOracle.SetPrice("btc", 60000)

	wallet, err := service.Wallet(ctx, "alice")
	require.NoError(t, err)
	quantity := wallet.Position("bitcoin").Quantity

	result, err := service.Sell(ctx, "alice", "bitcoin", "btc", "Bitcoin", quantity)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.RealizedPnl)
	assert.Positive(t, *result.RealizedPnl)

	wallet, err = service.Wallet(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, wallet.Position("bitcoin"))

	trades, err := service.Trades(ctx, "alice", core.WithTradeType(core.TradeTypeSell))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.NotNil(t, trades[0].RealizedPnlUsd)
	assert.InDelta(t, *result.RealizedPnl, *trades[0].RealizedPnlUsd, 1e-9)
	assert.Equal(t, result.TotalCostUsd, trades[0].UsdAmount)
}

func TestService_RejectedTradeLeavesWalletUntouched(t *testing.T) {
	service, _ := newTestService(t, map[string]float64{"btc": 50000})
	ctx := context.Background()

	result, err := service.Buy(ctx, "alice", "bitcoin", "btc", "Bitcoin", 20000)
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.ErrorIs(t, result.Err, core.ErrInsufficientBalance)

	wallet, err := service.Wallet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, DefaultInitialBalance, wallet.BalanceUsd)
	assert.Empty(t, wallet.Positions)

	trades, err := service.Trades(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestService_PriceUnavailableIsAnError(t *testing.T) {
	service, _ := newTestService(t, nil)

	_, err := service.Buy(context.Background(), "alice", "bitcoin", "btc", "Bitcoin", 100)
	require.ErrorIs(t, err, core.ErrPriceUnavailable)
}

func TestService_ResetRestoresInitialBalanceAndKeepsHistory(t *testing.T) {
	service, _ := newTestService(t, map[string]float64{"btc": 50000}, WithInitialBalance(5000))
	ctx := context.Background()

	_, err := service.Buy(ctx, "alice", "bitcoin", "btc", "Bitcoin", 1000)
	require.NoError(t, err)

	wallet, err := service.Reset(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, wallet.BalanceUsd)
	assert.Empty(t, wallet.Positions)

	trades, err := service.Trades(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestService_EquityMarksPositionsAtLatestQuote(t *testing.T) {
	service, priceOracle := newTestService(t, map[string]float64{"btc": 50000})
	ctx := context.Background()

	_, err := service.Buy(ctx, "alice", "bitcoin", "btc", "Bitcoin", 1000)
	require.NoError(t, err)

	priceOracle.SetPrice("btc", 100000)

	equity, err := service.Equity(ctx, "alice")
	require.NoError(t, err)

	// Balance 8999 plus quantity (1000/50005) marked at 100000
	expected := 8999.0 + (1000.0/50005.0)*100000.0
	assert.InDelta(t, expected, equity, 1e-6)
}

func TestService_PublishesExecutedTradesToFeed(t *testing.T) {
	feed := NewTradeFeed()
	received := make(chan core.Trade, 1)
	feed.Subscribe("alice", func(trade core.Trade) {
		received <- trade
	})
	feed.Start()
	defer feed.Stop()

	service, _ := newTestService(t, map[string]float64{"btc": 50000}, WithFeed(feed))

	_, err := service.Buy(context.Background(), "alice", "bitcoin", "btc", "Bitcoin", 500)
	require.NoError(t, err)

	trade := <-received
	assert.Equal(t, "alice", trade.UserID)
	assert.Equal(t, core.TradeTypeBuy, trade.Type)
	assert.Equal(t, 500.0, trade.UsdAmount)
}

func TestService_SummaryAggregatesHistory(t *testing.T) {
	service, priceOracle := newTestService(t, map[string]float64{"btc": 50000, "eth": 3000})
	ctx := context.Background()

	_, err := service.Buy(ctx, "alice", "bitcoin", "btc", "Bitcoin", 1000)
	require.NoError(t, err)
	_, err = service.Buy(ctx, "alice", "ethereum", "eth", "Ethereum", 600)
	require.NoError(t, err)

	priceOracle.SetPrice("btc", 55000)
	wallet, err := service.Wallet(ctx, "alice")
	require.NoError(t, err)
	_, err = service.Sell(ctx, "alice", "bitcoin", "btc", "Bitcoin", wallet.Position("bitcoin").Quantity)
	require.NoError(t, err)

	summary, err := service.Summary(ctx, "alice")
	require.NoError(t, err)

	require.Len(t, summary.Assets, 2)
	assert.Equal(t, "bitcoin", summary.Assets[0].AssetID)
	assert.Equal(t, 2, summary.Assets[0].TradeCount)
	assert.Equal(t, 1, summary.Assets[0].SellCount)
	assert.Equal(t, "ethereum", summary.Assets[1].AssetID)

	assert.Len(t, summary.RealizedPnl, 1)
	assert.Positive(t, summary.Profit())
	assert.Equal(t, 1.0, summary.WinRate())
	assert.NotEmpty(t, summary.String())
}
