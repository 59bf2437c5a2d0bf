// Package oracle provides reference market prices for the trading simulator,
// either from a live exchange feed or from fixed values, and distributes
// live price updates to subscribed consumers.
package oracle

import (
	"context"
	"sync"

	"github.com/StudioSol/set"
	"github.com/raykavin/papertrade/core"
)

// PriceConsumer is a function type that processes price updates
type PriceConsumer func(core.PricePoint)

// priceFeed represents a price feed with channels for updates and errors
type priceFeed struct {
	Data chan core.PricePoint
	Err  chan error
}

// FeedSubscription manages consumer subscriptions to live price feeds
type FeedSubscription struct {
	oracle                core.PriceOracle
	symbols               *set.LinkedHashSetString
	feeds                 map[string]*priceFeed
	subscriptionsBySymbol map[string][]PriceConsumer
	log                   core.Logger
	mu                    sync.RWMutex
}

// NewFeedSubscription creates a new instance of FeedSubscription
func NewFeedSubscription(oracle core.PriceOracle, log core.Logger) *FeedSubscription {
	return &FeedSubscription{
		oracle:                oracle,
		symbols:               set.NewLinkedHashSetString(),
		feeds:                 make(map[string]*priceFeed),
		subscriptionsBySymbol: make(map[string][]PriceConsumer),
		log:                   log,
	}
}

// Subscribe adds a new price consumer for a symbol
func (f *FeedSubscription) Subscribe(symbol string, consumer PriceConsumer) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.symbols.Add(symbol)
	f.subscriptionsBySymbol[symbol] = append(f.subscriptionsBySymbol[symbol], consumer)
}

// Connect opens a price subscription for every registered symbol
func (f *FeedSubscription) Connect(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.Infof("Connecting to the price oracle.")

	for symbol := range f.symbols.Iter() {
		priceChan, errChan := f.oracle.PriceSubscription(ctx, symbol)
		f.feeds[symbol] = &priceFeed{
			Data: priceChan,
			Err:  errChan,
		}
	}
}

// Start begins processing all feeds
func (f *FeedSubscription) Start(ctx context.Context, waitForCompletion bool) {
	f.Connect(ctx)

	var wg sync.WaitGroup

	f.mu.RLock()
	for symbol, feed := range f.feeds {
		wg.Add(1)
		go f.processFeed(ctx, symbol, feed, &wg)
	}
	f.mu.RUnlock()

	f.log.Infof("Price feed connected.")

	if waitForCompletion {
		wg.Wait()
	}
}

// processFeed forwards price updates from one feed to its consumers
func (f *FeedSubscription) processFeed(ctx context.Context, symbol string, feed *priceFeed, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case price, ok := <-feed.Data:
			if !ok {
				return
			}

			f.publish(symbol, price)

		case err, ok := <-feed.Err:
			if !ok {
				return
			}

			if err != nil {
				f.log.Error("feedSubscription/processFeed: ", err)
			}
		}
	}
}

// publish sends a price update to all consumers subscribed to the symbol
func (f *FeedSubscription) publish(symbol string, price core.PricePoint) {
	f.mu.RLock()
	consumers := f.subscriptionsBySymbol[symbol]
	f.mu.RUnlock()

	for _, consumer := range consumers {
		consumer(price)
	}
}
