package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/papertrade/core"
	adapter "github.com/raykavin/papertrade/logger/zerolog"
)

func testLogger() core.Logger {
	logger := zerolog.Nop()
	return adapter.NewAdapter(&logger)
}

func TestStatic_LastQuote(t *testing.T) {
	priceOracle := NewStatic(map[string]float64{"BTC": 50000})

	price, err := priceOracle.LastQuote(context.Background(), "BTC")
	require.NoError(t, err)
	require.Equal(t, 50000.0, price)

	_, err = priceOracle.LastQuote(context.Background(), "ETH")
	require.ErrorIs(t, err, core.ErrPriceUnavailable)

	priceOracle.SetPrice("ETH", 3000)
	price, err = priceOracle.LastQuote(context.Background(), "ETH")
	require.NoError(t, err)
	require.Equal(t, 3000.0, price)
}

func TestStatic_PriceHistory(t *testing.T) {
	priceOracle := NewStatic(nil)
	priceOracle.SetPrice("BTC", 50000)
	priceOracle.SetPrice("BTC", 51000)

	points, err := priceOracle.PriceHistory(context.Background(), "BTC", "1m",
		time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, 51000.0, points[1].PriceUsd)

	_, err = priceOracle.PriceHistory(context.Background(), "ETH", "1m", time.Time{}, time.Now())
	require.ErrorIs(t, err, core.ErrPriceUnavailable)
}

func TestFeedSubscription_PublishesToConsumers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	priceOracle := NewStatic(map[string]float64{"BTC": 50000})
	feed := NewFeedSubscription(priceOracle, testLogger())

	received := make(chan core.PricePoint, 1)
	feed.Subscribe("BTC", func(point core.PricePoint) {
		received <- point
	})

	feed.Start(ctx, false)
	priceOracle.SetPrice("BTC", 52000)

	select {
	case point := <-received:
		require.Equal(t, "BTC", point.Symbol)
		require.Equal(t, 52000.0, point.PriceUsd)
	case <-time.After(time.Second):
		t.Fatal("no price update received")
	}
}
