package wallet

import (
	"sync"

	"github.com/raykavin/papertrade/core"
)

// FeedConsumer is a function type that processes executed trade events
type FeedConsumer func(trade core.Trade)

// DataFeed represents channels for trade data and errors
type DataFeed struct {
	Data chan core.Trade
	Err  chan error
}

// Subscription represents a consumer subscription to trade updates
type Subscription struct {
	consumer FeedConsumer
}

// Feed manages executed-trade feeds and subscriptions, keyed by user
type Feed struct {
	mu                  sync.RWMutex
	TradeFeeds          map[string]*DataFeed
	SubscriptionsByUser map[string][]Subscription
}

// NewTradeFeed creates a new trade feed manager
func NewTradeFeed() *Feed {
	return &Feed{
		TradeFeeds:          make(map[string]*DataFeed),
		SubscriptionsByUser: make(map[string][]Subscription),
	}
}

// Subscribe registers a consumer to receive trade updates for a specific user
func (f *Feed) Subscribe(userID string, consumer FeedConsumer) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.TradeFeeds[userID]; !ok {
		f.TradeFeeds[userID] = &DataFeed{
			Data: make(chan core.Trade, 100), // Buffered channel to prevent blocking
			Err:  make(chan error, 100),
		}
	}

	f.SubscriptionsByUser[userID] = append(f.SubscriptionsByUser[userID], Subscription{
		consumer: consumer,
	})
}

// Publish sends a trade update to all subscribers for the user
func (f *Feed) Publish(trade core.Trade) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if feed, ok := f.TradeFeeds[trade.UserID]; ok {
		// Non-blocking send - drop updates if no one is listening
		select {
		case feed.Data <- trade:
		default:
		}
	}
}

// Start begins processing trade updates for all registered feeds
func (f *Feed) Start() {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for userID, feed := range f.TradeFeeds {
		go f.processTradesForUser(userID, feed)
	}
}

// processTradesForUser handles trade updates for a specific user
func (f *Feed) processTradesForUser(userID string, feed *DataFeed) {
	for trade := range feed.Data {
		f.mu.RLock()
		subscriptions := f.SubscriptionsByUser[userID]
		f.mu.RUnlock()

		for _, subscription := range subscriptions {
			subscription.consumer(trade)
		}
	}
}

// Stop gracefully shuts down all feed channels
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for userID, feed := range f.TradeFeeds {
		close(feed.Data)
		close(feed.Err)
		delete(f.TradeFeeds, userID)
	}

	f.SubscriptionsByUser = make(map[string][]Subscription)
}
