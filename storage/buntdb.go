// Package storage provides persistence backends for wallet snapshots and
// trade history.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/raykavin/papertrade/core"
	"github.com/tidwall/buntdb"
)

const (
	walletKeyPrefix = "wallet:"
	tradeKeyPrefix  = "trade:"

	// TradeIndexName is the index used for trade history retrieval
	TradeIndexName = "trade_created_at"
)

// BuntStorage implements the core.Storage interface using BuntDB
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB
type BuntConfig struct {
	// SyncPolicy determines how often data is synchronized to disk
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig returns the default configuration for BuntDB
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{
		SyncPolicy: buntdb.Never,
	}
}

// NewFromMemory creates an in-memory storage with default configuration
func NewFromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig())
}

// NewFromFile creates a file-based storage with default configuration
func NewFromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file, DefaultBuntConfig())
}

// NewBuntStorage creates a new BuntDB storage instance with the specified configuration
func NewBuntStorage(sourceFile string, config BuntConfig) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: config.SyncPolicy,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	// Index trade records by creation timestamp for ordered history reads
	if err := db.CreateIndex(TradeIndexName, tradeKeyPrefix+"*", buntdb.IndexJSON("created_at")); err != nil {
		return nil, fmt.Errorf("failed to create trade index: %w", err)
	}

	storage := &BuntStorage{
		db: db,
	}

	if err := storage.loadLastID(); err != nil {
		return nil, fmt.Errorf("failed to restore trade id counter: %w", err)
	}

	return storage, nil
}

// loadLastID restores the ID counter from persisted trade keys, so a
// reopened file-backed store never re-issues IDs of existing records
func (b *BuntStorage) loadLastID() error {
	return b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(tradeKeyPrefix+"*", func(key, _ string) bool {
			id, err := strconv.ParseInt(strings.TrimPrefix(key, tradeKeyPrefix), 10, 64)
			if err == nil && id > b.lastID {
				b.lastID = id
			}
			return true
		})
	})
}

// getID generates a unique ID for trade records
func (b *BuntStorage) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

// Wallet retrieves the wallet snapshot of a user
func (b *BuntStorage) Wallet(_ context.Context, userID string) (*core.Wallet, error) {
	var wallet core.Wallet

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(walletKeyPrefix + userID)
		if err != nil {
			if err == buntdb.ErrNotFound {
				return core.ErrWalletNotFound
			}
			return fmt.Errorf("failed to read wallet: %w", err)
		}

		if err := json.Unmarshal([]byte(value), &wallet); err != nil {
			return fmt.Errorf("failed to unmarshal wallet: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if wallet.Positions == nil {
		wallet.Positions = make(map[string]*core.Position)
	}

	return &wallet, nil
}

// SaveWallet stores the full wallet snapshot, replacing any previous one
func (b *BuntStorage) SaveWallet(_ context.Context, wallet *core.Wallet) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		content, err := json.Marshal(wallet)
		if err != nil {
			return fmt.Errorf("failed to marshal wallet: %w", err)
		}

		if _, _, err := tx.Set(walletKeyPrefix+wallet.UserID, string(content), nil); err != nil {
			return fmt.Errorf("failed to store wallet: %w", err)
		}

		return nil
	})
}

// CreateTrade stores a new trade record in the database
func (b *BuntStorage) CreateTrade(_ context.Context, trade *core.Trade) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if trade.ID == 0 {
			trade.ID = b.getID()
		}

		content, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}

		key := tradeKeyPrefix + strconv.FormatInt(trade.ID, 10)
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store trade: %w", err)
		}

		return nil
	})
}

// Trades retrieves trade records from the database based on provided filters
func (b *BuntStorage) Trades(_ context.Context, filters ...core.TradeFilter) ([]*core.Trade, error) {
	trades := make([]*core.Trade, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(TradeIndexName, func(key, value string) bool {
			var trade core.Trade
			if err := json.Unmarshal([]byte(value), &trade); err != nil {
				return true // Skip unreadable records and continue iteration
			}

			for _, filter := range filters {
				if !filter(trade) {
					return true
				}
			}

			trades = append(trades, &trade)
			return true
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}

	return trades, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
