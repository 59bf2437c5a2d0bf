package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/papertrade/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLStorage implements the core.Storage interface using a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the configuration for SQL database connections
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default configuration for SQL connections
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// walletRecord is the database row for a wallet's free balance
type walletRecord struct {
	UserID     string `gorm:"primaryKey"`
	BalanceUsd float64
	UpdatedAt  time.Time
}

// positionRecord is the database row for one open position
type positionRecord struct {
	UserID         string `gorm:"primaryKey"`
	AssetID        string `gorm:"primaryKey"`
	Symbol         string
	Name           string
	Quantity       float64
	AvgBuyPriceUsd float64
}

// NewFromSQLite creates a new SQLite storage instance
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (*SQLStorage, error) {
	dialect := sqlite.Open(dbPath)
	return newFromSQL(dialect, config, opts...)
}

// newFromSQL creates a new SQL storage instance with the specified configuration
func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err = db.AutoMigrate(&walletRecord{}, &positionRecord{}, &core.Trade{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// Wallet retrieves the wallet snapshot of a user
func (s *SQLStorage) Wallet(ctx context.Context, userID string) (*core.Wallet, error) {
	tx := s.db.WithContext(ctx)

	var record walletRecord
	if result := tx.First(&record, "user_id = ?", userID); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, core.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to fetch wallet: %w", result.Error)
	}

	var positions []positionRecord
	if result := tx.Find(&positions, "user_id = ?", userID); result.Error != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", result.Error)
	}

	wallet := &core.Wallet{
		UserID:     record.UserID,
		BalanceUsd: record.BalanceUsd,
		Positions:  make(map[string]*core.Position, len(positions)),
		UpdatedAt:  record.UpdatedAt,
	}

	for _, position := range positions {
		wallet.Positions[position.AssetID] = &core.Position{
			AssetID:        position.AssetID,
			Symbol:         position.Symbol,
			Name:           position.Name,
			Quantity:       position.Quantity,
			AvgBuyPriceUsd: position.AvgBuyPriceUsd,
		}
	}

	return wallet, nil
}

// SaveWallet stores the full wallet snapshot, replacing any previous one
func (s *SQLStorage) SaveWallet(ctx context.Context, wallet *core.Wallet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := walletRecord{
			UserID:     wallet.UserID,
			BalanceUsd: wallet.BalanceUsd,
			UpdatedAt:  wallet.UpdatedAt,
		}

		if result := tx.Save(&record); result.Error != nil {
			return fmt.Errorf("failed to store wallet: %w", result.Error)
		}

		// Positions are replaced wholesale; the snapshot is the source of truth
		if result := tx.Delete(&positionRecord{}, "user_id = ?", wallet.UserID); result.Error != nil {
			return fmt.Errorf("failed to clear positions: %w", result.Error)
		}

		for _, position := range wallet.Positions {
			row := positionRecord{
				UserID:         wallet.UserID,
				AssetID:        position.AssetID,
				Symbol:         position.Symbol,
				Name:           position.Name,
				Quantity:       position.Quantity,
				AvgBuyPriceUsd: position.AvgBuyPriceUsd,
			}

			if result := tx.Create(&row); result.Error != nil {
				return fmt.Errorf("failed to store position: %w", result.Error)
			}
		}

		return nil
	})
}

// CreateTrade creates a new trade record in the SQL database
func (s *SQLStorage) CreateTrade(ctx context.Context, trade *core.Trade) error {
	tx := s.db.WithContext(ctx)
	if result := tx.Create(trade); result.Error != nil {
		return fmt.Errorf("failed to create trade: %w", result.Error)
	}
	return nil
}

// Trades retrieves trade records from the SQL database based on provided filters
func (s *SQLStorage) Trades(ctx context.Context, filters ...core.TradeFilter) ([]*core.Trade, error) {
	tx := s.db.WithContext(ctx)

	var trades []*core.Trade
	if result := tx.Order("created_at").Find(&trades); result.Error != nil &&
		!errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch trades: %w", result.Error)
	}

	// Apply filters in memory
	if len(filters) > 0 {
		trades = lo.Filter(trades, func(trade *core.Trade, _ int) bool {
			for _, filter := range filters {
				if !filter(*trade) {
					return false
				}
			}
			return true
		})
	}

	return trades, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
