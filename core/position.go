package core

// Position represents a holding of one asset by one wallet.
// A wallet with no holding of an asset carries no Position record at all;
// a zero-quantity position is never persisted.
type Position struct {
	AssetID        string  `json:"asset_id"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	AvgBuyPriceUsd float64 `json:"avg_buy_price_usd"`
}

// CostBasis returns the total USD cost of the holding at its average buy price
func (p Position) CostBasis() float64 {
	return p.Quantity * p.AvgBuyPriceUsd
}

// MarketValue returns the USD value of the holding at the given price
func (p Position) MarketValue(priceUsd float64) float64 {
	return p.Quantity * priceUsd
}

// UnrealizedPnl returns the paper gain or loss of the holding at the given price
func (p Position) UnrealizedPnl(priceUsd float64) float64 {
	return (priceUsd - p.AvgBuyPriceUsd) * p.Quantity
}

// IsClosed returns true when the position holds nothing
func (p Position) IsClosed() bool {
	return p.Quantity == 0
}
