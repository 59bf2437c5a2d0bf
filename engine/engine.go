// Package engine implements the virtual trade execution engine: it computes
// the slippage-adjusted execution price, transaction fee, weighted-average
// cost basis and realized profit of simulated BUY and SELL trades.
package engine

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/raykavin/papertrade/core"
)

// Default market simulation parameters
const (
	DefaultFeeRate     = 0.001  // 0.1% flat fee on the gross USD value
	DefaultMinSlippage = 0.0001 // 0.01%
	DefaultMaxSlippage = 0.0005 // 0.05%
)

// Engine executes trades against a simulated market with bounded adverse
// slippage and a flat percentage fee. It holds no wallet state; the caller
// supplies a full snapshot and receives a full new snapshot back.
type Engine struct {
	feeRate     float64
	minSlippage float64
	maxSlippage float64
	draw        func() float64
}

// Option defines an option function to configure the Engine
type Option func(*Engine)

// WithFeeRate sets the flat transaction fee rate
func WithFeeRate(rate float64) Option {
	return func(engine *Engine) {
		engine.feeRate = rate
	}
}

// WithSlippageRange sets the bounds of the uniform slippage draw
func WithSlippageRange(minSlippage, maxSlippage float64) Option {
	return func(engine *Engine) {
		engine.minSlippage = minSlippage
		engine.maxSlippage = maxSlippage
	}
}

// WithSlippageDraw replaces the randomness source of the slippage draw.
// The function must return values in [0, 1); tests use this to pin exact
// execution prices.
func WithSlippageDraw(draw func() float64) Option {
	return func(engine *Engine) {
		engine.draw = draw
	}
}

// WithRand draws slippage from the given random generator
func WithRand(rnd *rand.Rand) Option {
	return WithSlippageDraw(rnd.Float64)
}

// New creates a trade execution engine
func New(options ...Option) *Engine {
	engine := &Engine{
		feeRate:     DefaultFeeRate,
		minSlippage: DefaultMinSlippage,
		maxSlippage: DefaultMaxSlippage,
		draw:        rand.Float64,
	}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// ExecuteTrade computes the economically consistent outcome of executing the
// request against the given wallet snapshot. currentPosition may be nil when
// the wallet holds none of the asset. Rejected trades return Success false
// with balance and position untouched; the method never panics and performs
// no I/O.
func (e *Engine) ExecuteTrade(
	currentBalance float64,
	currentPosition *core.Position,
	targetPrice float64,
	request core.TradeRequest,
) core.TradeResult {
	if !isFinite(request.Amount) || request.Amount <= 0 {
		return reject(
			core.ErrInvalidAmount,
			fmt.Sprintf("Invalid trade amount: %v", request.Amount),
			currentBalance, currentPosition,
		)
	}

	if !isFinite(targetPrice) || targetPrice <= 0 {
		return reject(
			core.ErrInvalidPrice,
			fmt.Sprintf("Invalid reference price: %v", targetPrice),
			currentBalance, currentPosition,
		)
	}

	// Slippage is one-sided market impact: buyers pay a slightly higher
	// price, sellers receive a slightly lower one. Never favorable.
	slippage := e.minSlippage + e.draw()*(e.maxSlippage-e.minSlippage)

	if request.Type == core.TradeTypeSell {
		executedPrice := targetPrice * (1 - slippage)
		return e.executeSell(currentBalance, currentPosition, executedPrice, request)
	}

	executedPrice := targetPrice * (1 + slippage)
	return e.executeBuy(currentBalance, currentPosition, executedPrice, request)
}

// executeBuy spends request.Amount USD on the asset at the executed price
func (e *Engine) executeBuy(
	currentBalance float64,
	currentPosition *core.Position,
	executedPrice float64,
	request core.TradeRequest,
) core.TradeResult {
	usdToSpend := request.Amount
	feeUsd := usdToSpend * e.feeRate
	totalCostUsd := usdToSpend + feeUsd

	if totalCostUsd > currentBalance {
		return core.TradeResult{
			Success: false,
			Err:     core.ErrInsufficientBalance,
			Error: fmt.Sprintf("Insufficient balance. Required: $%.2f (including $%.2f fee)",
				totalCostUsd, feeUsd),
			ExecutedPrice: executedPrice,
			FeeUsd:        feeUsd,
			TotalCostUsd:  totalCostUsd,
			NewBalance:    currentBalance,
			NewPosition:   currentPosition,
		}
	}

	quantityBought := usdToSpend / executedPrice

	var oldQuantity, oldAvgPrice float64
	if currentPosition != nil {
		oldQuantity = currentPosition.Quantity
		oldAvgPrice = currentPosition.AvgBuyPriceUsd
	}

	newQuantity := oldQuantity + quantityBought
	newAvgPrice := weightedAverage(oldAvgPrice, oldQuantity, executedPrice, quantityBought)

	return core.TradeResult{
		Success:       true,
		ExecutedPrice: executedPrice,
		Quantity:      quantityBought,
		FeeUsd:        feeUsd,
		TotalCostUsd:  totalCostUsd,
		NewBalance:    currentBalance - totalCostUsd,
		NewPosition: &core.Position{
			AssetID:        request.AssetID,
			Symbol:         request.Symbol,
			Name:           request.Name,
			Quantity:       newQuantity,
			AvgBuyPriceUsd: newAvgPrice,
		},
	}
}

// executeSell liquidates request.Amount units of the asset at the executed price
func (e *Engine) executeSell(
	currentBalance float64,
	currentPosition *core.Position,
	executedPrice float64,
	request core.TradeRequest,
) core.TradeResult {
	quantityToSell := request.Amount

	var currentQuantity, avgBuyPrice float64
	if currentPosition != nil {
		currentQuantity = currentPosition.Quantity
		avgBuyPrice = currentPosition.AvgBuyPriceUsd
	}

	if quantityToSell > currentQuantity {
		return core.TradeResult{
			Success: false,
			Err:     core.ErrInsufficientQuantity,
			Error: fmt.Sprintf("Insufficient %s quantity. Available: %.8f",
				strings.ToUpper(request.Symbol), currentQuantity),
			ExecutedPrice: executedPrice,
			NewBalance:    currentBalance,
			NewPosition:   currentPosition,
		}
	}

	grossProceeds := quantityToSell * executedPrice
	feeUsd := grossProceeds * e.feeRate
	netProceeds := grossProceeds - feeUsd

	// The fee reduces the realized gain or deepens the realized loss
	costOfQuantitySold := quantityToSell * avgBuyPrice
	realizedPnl := grossProceeds - costOfQuantitySold - feeUsd

	newQuantity := currentQuantity - quantityToSell

	// The average buy price of the remaining quantity is unchanged by a
	// partial sale; a full liquidation closes the position
	newAvgPrice := avgBuyPrice
	if newQuantity == 0 {
		newAvgPrice = 0
	}

	return core.TradeResult{
		Success:       true,
		ExecutedPrice: executedPrice,
		Quantity:      quantityToSell,
		FeeUsd:        feeUsd,
		TotalCostUsd:  netProceeds,
		NewBalance:    currentBalance + netProceeds,
		RealizedPnl:   &realizedPnl,
		NewPosition: &core.Position{
			AssetID:        request.AssetID,
			Symbol:         request.Symbol,
			Name:           request.Name,
			Quantity:       newQuantity,
			AvgBuyPriceUsd: newAvgPrice,
		},
	}
}

// reject builds a validation failure result that leaves the wallet untouched
func reject(err error, message string, currentBalance float64, currentPosition *core.Position) core.TradeResult {
	return core.TradeResult{
		Success:     false,
		Err:         err,
		Error:       message,
		NewBalance:  currentBalance,
		NewPosition: currentPosition,
	}
}

// weightedAverage computes the weighted average of two price-quantity pairs
func weightedAverage(price1, quantity1, price2, quantity2 float64) float64 {
	return (price1*quantity1 + price2*quantity2) / (quantity1 + quantity2)
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
