package core

import (
	"fmt"
	"time"
)

// TradeType represents the direction of a trade (BUY or SELL)
type TradeType string

// Trade direction constants
const (
	TradeTypeBuy  TradeType = "BUY"
	TradeTypeSell TradeType = "SELL"
)

// TradeRequest is an instruction to execute a trade for one asset
type TradeRequest struct {
	Type    TradeType
	AssetID string
	Symbol  string
	Name    string

	// Amount is a USD value to spend for BUY requests
	// and an asset quantity to liquidate for SELL requests
	Amount float64
}

// TradeResult contains the outcome of a single engine invocation.
// When Success is false the wallet must not be mutated; Error carries a
// user-facing reason and Err the matching sentinel error.
type TradeResult struct {
	Success       bool
	Error         string
	Err           error
	ExecutedPrice float64
	Quantity      float64
	FeeUsd        float64
	TotalCostUsd  float64
	NewBalance    float64
	NewPosition   *Position

	// RealizedPnl is set only for successful SELL trades
	RealizedPnl *float64
}

// Trade is a persisted record of an executed trade
type Trade struct {
	ID       int64     `db:"id" json:"id" gorm:"primaryKey;autoIncrement"`
	UserID   string    `db:"user_id" json:"user_id"`
	Type     TradeType `db:"type" json:"type"`
	AssetID  string    `db:"asset_id" json:"asset_id"`
	Symbol   string    `db:"symbol" json:"symbol"`
	Name     string    `db:"name" json:"name"`
	Quantity float64   `db:"quantity" json:"quantity"`

	// UsdAmount is the gross USD spent for BUY trades
	// and the net USD proceeds for SELL trades
	UsdAmount float64 `db:"usd_amount" json:"usd_amount"`
	PriceUsd  float64 `db:"price_usd" json:"price_usd"`
	FeeUsd    float64 `db:"fee_usd" json:"fee_usd"`

	RealizedPnlUsd *float64 `db:"realized_pnl_usd" json:"realized_pnl_usd"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsBuy returns true if the trade is a buy
func (t Trade) IsBuy() bool {
	return t.Type == TradeTypeBuy
}

// IsSell returns true if the trade is a sell
func (t Trade) IsSell() bool {
	return t.Type == TradeTypeSell
}

// GetValue returns the gross USD value of the trade (price * quantity)
func (t Trade) GetValue() float64 {
	return t.PriceUsd * t.Quantity
}

// String returns a human-readable representation of the trade
func (t Trade) String() string {
	return fmt.Sprintf("[%s] %s | ID: %d, %f x $%f (~$%.2f)",
		t.Type, t.Symbol, t.ID, t.Quantity, t.PriceUsd, t.Quantity*t.PriceUsd)
}
