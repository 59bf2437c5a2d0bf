package oracle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"

	"github.com/raykavin/papertrade/core"
)

// subscription interval used for live price updates
const liveInterval = "1m"

// klineServe opens a kline websocket stream, returning its done and stop
// channels. Matches binance.WsKlineServe.
type klineServe func(symbol, interval string,
	wsHandler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error)

// Binance is a price oracle backed by the Binance spot market. Asset symbols
// are quoted against a single quote currency (USDT by default).
type Binance struct {
	ctx         context.Context
	client      *binance.Client
	quote       string
	log         core.Logger
	serveKlines klineServe
}

// BinanceOption defines an option function to configure the Binance oracle
type BinanceOption func(*Binance)

// WithBinanceCredentials sets the API credentials. Public market data
// endpoints work without them.
func WithBinanceCredentials(apiKey, secretKey string) BinanceOption {
	return func(b *Binance) {
		b.client = binance.NewClient(apiKey, secretKey)
	}
}

// WithBinanceTestNet enables the Binance testnet
func WithBinanceTestNet() BinanceOption {
	return func(_ *Binance) {
		binance.UseTestnet = true
	}
}

// WithQuoteCurrency sets the quote currency used to build trading pairs
func WithQuoteCurrency(quote string) BinanceOption {
	return func(b *Binance) {
		b.quote = strings.ToUpper(quote)
	}
}

// NewBinance creates a new Binance price oracle and checks connectivity
func NewBinance(ctx context.Context, log core.Logger, options ...BinanceOption) (*Binance, error) {
	binance.WebsocketKeepalive = true

	oracle := &Binance{
		ctx:         ctx,
		client:      binance.NewClient("", ""),
		quote:       "USDT",
		log:         log,
		serveKlines: binance.WsKlineServe,
	}

	for _, option := range options {
		option(oracle)
	}

	if err := oracle.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	return oracle, nil
}

// pairFor builds the Binance trading pair for an asset symbol
func (b *Binance) pairFor(symbol string) string {
	return strings.ToUpper(symbol) + b.quote
}

// LastQuote returns the most recent traded price for a symbol
func (b *Binance) LastQuote(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(b.pairFor(symbol)).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
	}

	if len(prices) == 0 {
		return 0, core.ErrPriceUnavailable
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", prices[0].Price, err)
	}

	return price, nil
}

// PriceHistory returns close prices of klines within the given time range
func (b *Binance) PriceHistory(ctx context.Context, symbol, interval string,
	start, end time.Time) ([]core.PricePoint, error) {

	data, err := b.client.NewKlinesService().
		Symbol(b.pairFor(symbol)).
		Interval(interval).
		StartTime(start.UnixNano() / int64(time.Millisecond)).
		EndTime(end.UnixNano() / int64(time.Millisecond)).
		Do(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}

	points := make([]core.PricePoint, 0, len(data))
	for _, kline := range data {
		closePrice, err := strconv.ParseFloat(kline.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse close price %q: %w", kline.Close, err)
		}

		points = append(points, core.PricePoint{
			Symbol:   symbol,
			Time:     time.Unix(0, kline.CloseTime*int64(time.Millisecond)),
			PriceUsd: closePrice,
		})
	}

	return points, nil
}

// PriceSubscription streams live price updates for a symbol. The websocket
// connection is re-established with exponential backoff when it drops.
func (b *Binance) PriceSubscription(ctx context.Context, symbol string) (chan core.PricePoint, chan error) {
	priceChan := make(chan core.PricePoint)
	errChan := make(chan error)
	retry := setupBackoffRetry()

	sendErr := func(err error) {
		select {
		case errChan <- err:
		case <-ctx.Done():
		}
	}

	go func() {
		defer func() {
			close(errChan)
			close(priceChan)
		}()

		for {
			done, stop, err := b.serveKlines(b.pairFor(symbol), liveInterval,
				func(event *binance.WsKlineEvent) {
					retry.Reset()

					closePrice, err := strconv.ParseFloat(event.Kline.Close, 64)
					if err != nil {
						sendErr(fmt.Errorf("failed to parse close price %q: %w", event.Kline.Close, err))
						return
					}

					select {
					case priceChan <- core.PricePoint{
						Symbol:   symbol,
						Time:     time.Unix(0, event.Time*int64(time.Millisecond)),
						PriceUsd: closePrice,
					}:
					case <-ctx.Done():
					}
				}, sendErr)

			if err != nil {
				sendErr(err)
				return
			}

			select {
			case <-ctx.Done():
				// Stop the stream and wait for its callbacks to finish
				// before the deferred close of the channels
				close(stop)
				<-done
				return
			case <-done:
				wait := retry.Duration()
				b.log.Warnf("price stream for %s dropped, reconnecting in %s", symbol, wait)
				time.Sleep(wait)
			}
		}
	}()

	return priceChan, errChan
}

// setupBackoffRetry creates a backoff with sensible defaults
func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    1 * time.Minute,
		Factor: 2,
		Jitter: true,
	}
}
