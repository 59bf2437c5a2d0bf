package core

import "time"

// Wallet is a full snapshot of one user's simulated funds: the free USD
// balance plus all open positions keyed by asset id
type Wallet struct {
	UserID     string               `json:"user_id"`
	BalanceUsd float64              `json:"balance_usd"`
	Positions  map[string]*Position `json:"positions"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// NewWallet creates a wallet with the given starting balance and no positions
func NewWallet(userID string, balanceUsd float64) *Wallet {
	return &Wallet{
		UserID:     userID,
		BalanceUsd: balanceUsd,
		Positions:  make(map[string]*Position),
		UpdatedAt:  time.Now().UTC(),
	}
}

// Position returns the position held for an asset, or nil when there is none
func (w *Wallet) Position(assetID string) *Position {
	return w.Positions[assetID]
}

// SetPosition stores a position in the wallet. A closed position is removed
// instead of being stored with zero quantity.
func (w *Wallet) SetPosition(position *Position) {
	if position == nil {
		return
	}

	if position.IsClosed() {
		delete(w.Positions, position.AssetID)
		return
	}

	w.Positions[position.AssetID] = position
}

// Equity returns the total USD value of the wallet: the free balance plus
// every position valued at the given prices (keyed by asset id). Positions
// without a known price are valued at their cost basis.
func (w *Wallet) Equity(pricesUsd map[string]float64) float64 {
	total := w.BalanceUsd

	for assetID, position := range w.Positions {
		price, ok := pricesUsd[assetID]
		if !ok {
			total += position.CostBasis()
			continue
		}
		total += position.MarketValue(price)
	}

	return total
}
