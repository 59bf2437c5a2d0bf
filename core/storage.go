package core

import "time"

// TradeFilter defines a function type for filtering trade records
type TradeFilter func(trade Trade) bool

func WithUser(userID string) TradeFilter {
	return func(trade Trade) bool {
		return trade.UserID == userID
	}
}

func WithAsset(assetID string) TradeFilter {
	return func(trade Trade) bool {
		return trade.AssetID == assetID
	}
}

func WithTradeType(tradeType TradeType) TradeFilter {
	return func(trade Trade) bool {
		return trade.Type == tradeType
	}
}

func WithCreatedAtBeforeOrEqual(time time.Time) TradeFilter {
	return func(trade Trade) bool {
		return !trade.CreatedAt.After(time)
	}
}
