// Package config handles application configuration management using Viper
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Constants for configuration defaults
const (
	DefaultStoragePath     = "./papertrade.db"
	DefaultStorageBackend  = "buntdb"
	DefaultInitialBalance  = 10000.0
	DefaultFeeRate         = 0.001
	DefaultMinSlippage     = 0.0001
	DefaultMaxSlippage     = 0.0005
	DefaultQuoteCurrency   = "USDT"
	DefaultRefreshInterval = "1m"
	DefaultLogLevel        = "info"
)

// AppConfig holds the application configuration
type AppConfig struct {
	Binance  BinanceConfig
	Telegram TelegramConfig
	Storage  StorageConfig
	Market   MarketConfig
	Log      LogConfig
}

// BinanceConfig holds Binance price oracle configuration
type BinanceConfig struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	// QuoteCurrency is appended to asset symbols to form exchange pairs
	QuoteCurrency string
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled bool
	Token   string
	Users   []int64
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	// Backend selects the persistence engine: "buntdb", "sqlite" or "memory"
	Backend string
	Path    string
}

// MarketConfig holds the market simulation parameters
type MarketConfig struct {
	InitialBalance  float64
	FeeRate         float64
	MinSlippage     float64
	MaxSlippage     float64
	RefreshInterval time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	JSONFormat bool
}

// LoadAppConfig loads application configuration using Viper
func LoadAppConfig() (*AppConfig, error) {
	viper.AutomaticEnv()

	viper.SetDefault("STORAGE_BACKEND", DefaultStorageBackend)
	viper.SetDefault("STORAGE_PATH", DefaultStoragePath)
	viper.SetDefault("BINANCE_USE_TESTNET", false)
	viper.SetDefault("BINANCE_QUOTE_CURRENCY", DefaultQuoteCurrency)
	viper.SetDefault("TELEGRAM_ENABLED", false)
	viper.SetDefault("INITIAL_BALANCE", DefaultInitialBalance)
	viper.SetDefault("FEE_RATE", DefaultFeeRate)
	viper.SetDefault("MIN_SLIPPAGE", DefaultMinSlippage)
	viper.SetDefault("MAX_SLIPPAGE", DefaultMaxSlippage)
	viper.SetDefault("PRICE_REFRESH_INTERVAL", DefaultRefreshInterval)
	viper.SetDefault("LOG_LEVEL", DefaultLogLevel)
	viper.SetDefault("LOG_JSON", false)

	refreshInterval, err := str2duration.ParseDuration(viper.GetString("PRICE_REFRESH_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_REFRESH_INTERVAL: %w", err)
	}

	config := &AppConfig{
		Binance: BinanceConfig{
			APIKey:        viper.GetString("BINANCE_API_KEY"),
			SecretKey:     viper.GetString("BINANCE_SECRET_KEY"),
			UseTestnet:    viper.GetBool("BINANCE_USE_TESTNET"),
			QuoteCurrency: viper.GetString("BINANCE_QUOTE_CURRENCY"),
		},
		Telegram: TelegramConfig{
			Enabled: viper.GetBool("TELEGRAM_ENABLED"),
			Token:   viper.GetString("TELEGRAM_TOKEN"),
			Users:   toInt64Slice(viper.GetIntSlice("TELEGRAM_USERS")),
		},
		Storage: StorageConfig{
			Backend: viper.GetString("STORAGE_BACKEND"),
			Path:    viper.GetString("STORAGE_PATH"),
		},
		Market: MarketConfig{
			InitialBalance:  viper.GetFloat64("INITIAL_BALANCE"),
			FeeRate:         viper.GetFloat64("FEE_RATE"),
			MinSlippage:     viper.GetFloat64("MIN_SLIPPAGE"),
			MaxSlippage:     viper.GetFloat64("MAX_SLIPPAGE"),
			RefreshInterval: refreshInterval,
		},
		Log: LogConfig{
			Level:      viper.GetString("LOG_LEVEL"),
			JSONFormat: viper.GetBool("LOG_JSON"),
		},
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks the configuration for inconsistent simulation parameters
func validate(config *AppConfig) error {
	market := config.Market

	if market.InitialBalance <= 0 {
		return fmt.Errorf("INITIAL_BALANCE must be positive, got %v", market.InitialBalance)
	}

	if market.FeeRate < 0 || market.FeeRate >= 1 {
		return fmt.Errorf("FEE_RATE must be in [0, 1), got %v", market.FeeRate)
	}

	if market.MinSlippage < 0 || market.MaxSlippage < market.MinSlippage {
		return fmt.Errorf("slippage bounds must satisfy 0 <= min <= max, got [%v, %v]",
			market.MinSlippage, market.MaxSlippage)
	}

	if config.Telegram.Enabled && config.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required when TELEGRAM_ENABLED is set")
	}

	return nil
}

func toInt64Slice(values []int) []int64 {
	result := make([]int64, 0, len(values))
	for _, value := range values {
		result = append(result, int64(value))
	}
	return result
}
