package core

import (
	"context"
	"time"
)

// PricePoint is a single observed market price for an asset
type PricePoint struct {
	Symbol   string
	Time     time.Time
	PriceUsd float64
}

// PriceOracle supplies reference market prices for assets. The trade engine
// trusts these values completely and performs no staleness checking.
type PriceOracle interface {
	// LastQuote returns the most recent known USD price for a symbol
	LastQuote(ctx context.Context, symbol string) (float64, error)
	// PriceHistory returns historical prices within a period, sampled at the given interval. eg: 1m, 1h, 1d
	PriceHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]PricePoint, error)
	// PriceSubscription returns a channel of live price updates for a symbol
	PriceSubscription(ctx context.Context, symbol string) (chan PricePoint, chan error)
}

// WalletStorage persists wallet snapshots
type WalletStorage interface {
	// Wallet retrieves the wallet of a user, ErrWalletNotFound when absent
	Wallet(ctx context.Context, userID string) (*Wallet, error)

	// SaveWallet stores the full wallet snapshot, replacing any previous one
	SaveWallet(ctx context.Context, wallet *Wallet) error
}

// TradeStorage persists the trade history
type TradeStorage interface {
	// CreateTrade stores a new trade record
	CreateTrade(ctx context.Context, trade *Trade) error

	// Trades retrieves trade records based on provided filters
	Trades(ctx context.Context, filters ...TradeFilter) ([]*Trade, error)
}

// Storage combines wallet and trade history persistence
type Storage interface {
	WalletStorage
	TradeStorage
}

type Notifier interface {
	Notify(string)
	OnTrade(trade Trade)
	OnError(err error)
}

type NotifierWithStart interface {
	Notifier
	Start()
}
