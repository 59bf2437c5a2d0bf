package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raykavin/papertrade/core"
)

func newSQLTestStorage(t *testing.T) *SQLStorage {
	t.Helper()

	db, err := NewFromSQLite(":memory:", DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestSQLStorage_WalletRoundTrip(t *testing.T) {
	db := newSQLTestStorage(t)
	ctx := context.Background()

	_, err := db.Wallet(ctx, "alice")
	require.ErrorIs(t, err, core.ErrWalletNotFound)

	wallet := core.NewWallet("alice", 10000)
	wallet.SetPosition(&core.Position{
		AssetID:        "bitcoin",
		Symbol:         "btc",
		Name:           "Bitcoin",
		Quantity:       0.5,
		AvgBuyPriceUsd: 48000,
	})
	require.NoError(t, db.SaveWallet(ctx, wallet))

	loaded, err := db.Wallet(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 10000.0, loaded.BalanceUsd)
	require.Len(t, loaded.Positions, 1)
	require.Equal(t, 48000.0, loaded.Position("bitcoin").AvgBuyPriceUsd)
}

func TestSQLStorage_SaveWalletReplacesSnapshot(t *testing.T) {
	db := newSQLTestStorage(t)
	ctx := context.Background()

	wallet := core.NewWallet("bob", 10000)
	wallet.SetPosition(&core.Position{AssetID: "ethereum", Symbol: "eth", Quantity: 2, AvgBuyPriceUsd: 3000})
	require.NoError(t, db.SaveWallet(ctx, wallet))

	wallet.BalanceUsd = 4000
	wallet.SetPosition(&core.Position{AssetID: "ethereum", Symbol: "eth", Quantity: 0, AvgBuyPriceUsd: 0})
	require.NoError(t, db.SaveWallet(ctx, wallet))

	loaded, err := db.Wallet(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 4000.0, loaded.BalanceUsd)
	require.Empty(t, loaded.Positions)
}

func TestSQLStorage_TradesFilters(t *testing.T) {
	db := newSQLTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	trades := []*core.Trade{
		{UserID: "alice", Type: core.TradeTypeBuy, AssetID: "bitcoin", Symbol: "btc", Quantity: 0.1, PriceUsd: 50000, CreatedAt: now},
		{UserID: "alice", Type: core.TradeTypeSell, AssetID: "bitcoin", Symbol: "btc", Quantity: 0.05, PriceUsd: 51000, CreatedAt: now.Add(time.Minute)},
		{UserID: "bob", Type: core.TradeTypeBuy, AssetID: "ethereum", Symbol: "eth", Quantity: 1, PriceUsd: 3000, CreatedAt: now.Add(2 * time.Minute)},
	}
	for _, trade := range trades {
		require.NoError(t, db.CreateTrade(ctx, trade))
	}

	all, err := db.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	aliceTrades, err := db.Trades(ctx, core.WithUser("alice"))
	require.NoError(t, err)
	require.Len(t, aliceTrades, 2)

	sells, err := db.Trades(ctx, core.WithUser("alice"), core.WithTradeType(core.TradeTypeSell))
	require.NoError(t, err)
	require.Len(t, sells, 1)
	require.Equal(t, 51000.0, sells[0].PriceUsd)

	early, err := db.Trades(ctx, core.WithCreatedAtBeforeOrEqual(now))
	require.NoError(t, err)
	require.Len(t, early, 1)
}

func TestSQLStorage_AssignsTradeIDs(t *testing.T) {
	db := newSQLTestStorage(t)
	ctx := context.Background()

	first := &core.Trade{UserID: "alice", Type: core.TradeTypeBuy, AssetID: "bitcoin", CreatedAt: time.Now()}
	second := &core.Trade{UserID: "alice", Type: core.TradeTypeBuy, AssetID: "bitcoin", CreatedAt: time.Now()}

	require.NoError(t, db.CreateTrade(ctx, first))
	require.NoError(t, db.CreateTrade(ctx, second))
	require.NotZero(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
}
