// Package wallet coordinates the paper trading wallet: it loads the user's
// snapshot, asks the oracle for a reference price, runs the trade engine and
// persists the resulting balance, positions and trade history.
package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raykavin/papertrade/core"
	"github.com/raykavin/papertrade/engine"
)

// DefaultInitialBalance is the free USD balance granted to new wallets
const DefaultInitialBalance = 10000.0

// Service executes paper trades against persisted wallet snapshots.
// All trade execution is serialized behind a mutex so a wallet is never
// read and written concurrently.
type Service struct {
	mu             sync.Mutex
	engine         *engine.Engine
	oracle         core.PriceOracle
	storage        core.Storage
	log            core.Logger
	feed           *Feed
	notifier       core.Notifier
	initialBalance float64
}

// Option defines an option function to configure the Service
type Option func(*Service)

// WithInitialBalance sets the free USD balance granted to new wallets
func WithInitialBalance(balanceUsd float64) Option {
	return func(service *Service) {
		service.initialBalance = balanceUsd
	}
}

// WithNotifier attaches a notifier that receives executed trades and errors
func WithNotifier(notifier core.Notifier) Option {
	return func(service *Service) {
		service.notifier = notifier
	}
}

// WithFeed attaches a trade feed that receives executed trade records
func WithFeed(feed *Feed) Option {
	return func(service *Service) {
		service.feed = feed
	}
}

// NewService creates the wallet service
func NewService(
	tradeEngine *engine.Engine,
	oracle core.PriceOracle,
	storage core.Storage,
	log core.Logger,
	options ...Option,
) *Service {
	service := &Service{
		engine:         tradeEngine,
		oracle:         oracle,
		storage:        storage,
		log:            log,
		initialBalance: DefaultInitialBalance,
	}

	for _, option := range options {
		option(service)
	}

	return service
}

// SetNotifier attaches a notifier after construction. Needed when the
// notifier itself issues trades through the service.
func (s *Service) SetNotifier(notifier core.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
}

// Buy spends usdAmount of the wallet's free balance on the asset
func (s *Service) Buy(ctx context.Context, userID, assetID, symbol, name string, usdAmount float64) (core.TradeResult, error) {
	return s.ExecuteTrade(ctx, userID, core.TradeRequest{
		Type:    core.TradeTypeBuy,
		AssetID: assetID,
		Symbol:  symbol,
		Name:    name,
		Amount:  usdAmount,
	})
}

// Sell liquidates quantity units of the asset back into USD
func (s *Service) Sell(ctx context.Context, userID, assetID, symbol, name string, quantity float64) (core.TradeResult, error) {
	return s.ExecuteTrade(ctx, userID, core.TradeRequest{
		Type:    core.TradeTypeSell,
		AssetID: assetID,
		Symbol:  symbol,
		Name:    name,
		Amount:  quantity,
	})
}

// ExecuteTrade runs a trade request end to end: price lookup, engine
// execution and persistence. A rejected trade (insufficient funds, invalid
// request) is returned with Success false and a nil error; the error return
// is reserved for infrastructure failures.
func (s *Service) ExecuteTrade(ctx context.Context, userID string, request core.TradeRequest) (core.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, err := s.loadOrCreateWallet(ctx, userID)
	if err != nil {
		s.notifyError(err)
		return core.TradeResult{}, err
	}

	targetPrice, err := s.oracle.LastQuote(ctx, request.Symbol)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", core.ErrPriceUnavailable, request.Symbol, err)
		s.notifyError(err)
		return core.TradeResult{}, err
	}

	result := s.engine.ExecuteTrade(wallet.BalanceUsd, wallet.Position(request.AssetID), targetPrice, request)
	if !result.Success {
		s.log.WithFields(map[string]any{
			"user":  userID,
			"asset": request.AssetID,
			"side":  request.Type,
		}).Warn(result.Error)
		return result, nil
	}

	wallet.BalanceUsd = result.NewBalance
	wallet.SetPosition(result.NewPosition)
	wallet.UpdatedAt = time.Now().UTC()

	if err := s.storage.SaveWallet(ctx, wallet); err != nil {
		err = fmt.Errorf("failed to save wallet: %w", err)
		s.notifyError(err)
		return core.TradeResult{}, err
	}

	trade := buildTradeRecord(userID, request, result)
	if err := s.storage.CreateTrade(ctx, trade); err != nil {
		err = fmt.Errorf("failed to record trade: %w", err)
		s.notifyError(err)
		return core.TradeResult{}, err
	}

	s.logTrade(userID, *trade, result)

	if s.feed != nil {
		s.feed.Publish(*trade)
	}

	if s.notifier != nil {
		s.notifier.OnTrade(*trade)
	}

	return result, nil
}

// Wallet returns the wallet snapshot of a user, creating it when absent
func (s *Service) Wallet(ctx context.Context, userID string) (*core.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadOrCreateWallet(ctx, userID)
}

// Trades returns the persisted trade history of a user, oldest first
func (s *Service) Trades(ctx context.Context, userID string, filters ...core.TradeFilter) ([]*core.Trade, error) {
	allFilters := append([]core.TradeFilter{core.WithUser(userID)}, filters...)
	return s.storage.Trades(ctx, allFilters...)
}

// Reset discards the user's positions and restores the initial balance.
// Trade history is kept.
func (s *Service) Reset(ctx context.Context, userID string) (*core.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet := core.NewWallet(userID, s.initialBalance)
	if err := s.storage.SaveWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to reset wallet: %w", err)
	}

	s.log.WithField("user", userID).Infof("wallet reset to $%.2f", s.initialBalance)
	return wallet, nil
}

// Equity returns the total wallet value in USD: free balance plus open
// positions marked at the oracle's latest quotes. A position whose price
// cannot be fetched is valued at cost basis.
func (s *Service) Equity(ctx context.Context, userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, err := s.loadOrCreateWallet(ctx, userID)
	if err != nil {
		return 0, err
	}

	prices := make(map[string]float64, len(wallet.Positions))
	for assetID, position := range wallet.Positions {
		price, err := s.oracle.LastQuote(ctx, position.Symbol)
		if err != nil {
			s.log.WithError(err).Warnf("no quote for %s, valuing at cost basis", position.Symbol)
			continue
		}
		prices[assetID] = price
	}

	return wallet.Equity(prices), nil
}

// Summary aggregates the wallet's trade history into a performance report
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	wallet, err := s.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	trades, err := s.Trades(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	equity, err := s.Equity(ctx, userID)
	if err != nil {
		return nil, err
	}

	return NewSummary(wallet, trades, equity), nil
}

// loadOrCreateWallet fetches the persisted wallet or bootstraps a fresh one
// with the initial balance. Caller must hold the mutex.
func (s *Service) loadOrCreateWallet(ctx context.Context, userID string) (*core.Wallet, error) {
	wallet, err := s.storage.Wallet(ctx, userID)
	if err == nil {
		return wallet, nil
	}

	if err != core.ErrWalletNotFound {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	wallet = core.NewWallet(userID, s.initialBalance)
	if err := s.storage.SaveWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	s.log.WithField("user", userID).Infof("created wallet with $%.2f", s.initialBalance)
	return wallet, nil
}

// buildTradeRecord converts an executed trade into its history record.
// UsdAmount is the gross USD spent on a BUY and the net proceeds of a SELL.
func buildTradeRecord(userID string, request core.TradeRequest, result core.TradeResult) *core.Trade {
	trade := &core.Trade{
		UserID:         userID,
		Type:           request.Type,
		AssetID:        request.AssetID,
		Symbol:         request.Symbol,
		Name:           request.Name,
		Quantity:       result.Quantity,
		PriceUsd:       result.ExecutedPrice,
		FeeUsd:         result.FeeUsd,
		RealizedPnlUsd: result.RealizedPnl,
		CreatedAt:      time.Now().UTC(),
	}

	if request.Type == core.TradeTypeBuy {
		trade.UsdAmount = request.Amount
	} else {
		trade.UsdAmount = result.TotalCostUsd
	}

	return trade
}

func (s *Service) logTrade(userID string, trade core.Trade, result core.TradeResult) {
	log := s.log.WithFields(map[string]any{
		"user":  userID,
		"asset": trade.AssetID,
	})

	if result.RealizedPnl != nil {
		log.Infof("[SELL] %f x $%.2f | fee $%.4f | PROFIT = %.4f",
			trade.Quantity, trade.PriceUsd, trade.FeeUsd, *result.RealizedPnl)
		return
	}

	log.Infof("[BUY] %f x $%.2f | fee $%.4f | balance $%.2f",
		trade.Quantity, trade.PriceUsd, trade.FeeUsd, result.NewBalance)
}

func (s *Service) notifyError(err error) {
	s.log.Error(err)
	if s.notifier != nil {
		s.notifier.OnError(err)
	}
}
