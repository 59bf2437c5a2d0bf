package oracle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/require"
)

func TestBinance_PriceSubscriptionStopsStreamBeforeClosingChannels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	stop := make(chan struct{})
	handlers := make(chan binance.WsKlineHandler, 1)

	// Mirrors the websocket contract: done closes only after the stream is
	// stopped and every in-flight callback has returned
	var callbacks sync.WaitGroup
	priceOracle := &Binance{
		quote: "USDT",
		log:   testLogger(),
		serveKlines: func(symbol, interval string,
			wsHandler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {

			handlers <- wsHandler
			go func() {
				<-stop
				callbacks.Wait()
				close(done)
			}()
			return done, stop, nil
		},
	}

	priceChan, errChan := priceOracle.PriceSubscription(ctx, "btc")

	var handler binance.WsKlineHandler
	select {
	case handler = <-handlers:
	case <-time.After(time.Second):
		t.Fatal("stream was never opened")
	}

	callbacks.Add(1)
	go func() {
		defer callbacks.Done()
		handler(&binance.WsKlineEvent{Time: 1700000000000, Kline: binance.WsKline{Close: "50000"}})
	}()

	point := <-priceChan
	require.Equal(t, "btc", point.Symbol)
	require.Equal(t, 50000.0, point.PriceUsd)

	// A callback caught mid-send during shutdown must unblock cleanly
	callbacks.Add(1)
	go func() {
		defer callbacks.Done()
		handler(&binance.WsKlineEvent{Kline: binance.WsKline{Close: "51000"}})
	}()

	cancel()

	// Both channels close without a send-on-closed-channel panic
	drained := make(chan struct{})
	go func() {
		for range priceChan {
		}
		for range errChan {
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("subscription channels never closed")
	}

	select {
	case <-stop:
	default:
		t.Fatal("stream was not stopped")
	}
}
