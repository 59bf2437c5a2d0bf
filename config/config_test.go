package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppConfig_Defaults(t *testing.T) {
	config, err := LoadAppConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultStorageBackend, config.Storage.Backend)
	assert.Equal(t, DefaultInitialBalance, config.Market.InitialBalance)
	assert.Equal(t, DefaultFeeRate, config.Market.FeeRate)
	assert.Equal(t, DefaultMinSlippage, config.Market.MinSlippage)
	assert.Equal(t, DefaultMaxSlippage, config.Market.MaxSlippage)
	assert.Equal(t, time.Minute, config.Market.RefreshInterval)
	assert.Equal(t, DefaultQuoteCurrency, config.Binance.QuoteCurrency)
	assert.False(t, config.Telegram.Enabled)
}

func TestLoadAppConfig_ParsesRefreshInterval(t *testing.T) {
	t.Setenv("PRICE_REFRESH_INTERVAL", "1h30m")

	config, err := LoadAppConfig()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, config.Market.RefreshInterval)
}

func TestLoadAppConfig_RejectsBadInterval(t *testing.T) {
	t.Setenv("PRICE_REFRESH_INTERVAL", "soon")

	_, err := LoadAppConfig()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *AppConfig {
		return &AppConfig{
			Market: MarketConfig{
				InitialBalance: 10000,
				FeeRate:        0.001,
				MinSlippage:    0.0001,
				MaxSlippage:    0.0005,
			},
		}
	}

	require.NoError(t, validate(base()))

	negativeBalance := base()
	negativeBalance.Market.InitialBalance = -1
	assert.Error(t, validate(negativeBalance))

	invertedSlippage := base()
	invertedSlippage.Market.MinSlippage = 0.01
	invertedSlippage.Market.MaxSlippage = 0.001
	assert.Error(t, validate(invertedSlippage))

	telegramWithoutToken := base()
	telegramWithoutToken.Telegram.Enabled = true
	assert.Error(t, validate(telegramWithoutToken))
}
