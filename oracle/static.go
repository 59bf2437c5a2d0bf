package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/raykavin/papertrade/core"
)

// Static is an in-memory price oracle with fixed, manually updated prices.
// Used for tests and offline runs.
type Static struct {
	mu          sync.RWMutex
	prices      map[string]float64
	history     map[string][]core.PricePoint
	subscribers map[string][]chan core.PricePoint
}

// NewStatic creates a static oracle seeded with the given prices (keyed by symbol)
func NewStatic(prices map[string]float64) *Static {
	if prices == nil {
		prices = make(map[string]float64)
	}

	return &Static{
		prices:      prices,
		history:     make(map[string][]core.PricePoint),
		subscribers: make(map[string][]chan core.PricePoint),
	}
}

// SetPrice updates the price of a symbol and publishes the update to subscribers
func (s *Static) SetPrice(symbol string, priceUsd float64) {
	point := core.PricePoint{
		Symbol:   symbol,
		Time:     time.Now().UTC(),
		PriceUsd: priceUsd,
	}

	s.mu.Lock()
	s.prices[symbol] = priceUsd
	s.history[symbol] = append(s.history[symbol], point)
	subscribers := s.subscribers[symbol]
	s.mu.Unlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- point:
		default: // drop the update when no one is listening
		}
	}
}

// LastQuote returns the stored price for a symbol
func (s *Static) LastQuote(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[symbol]
	if !ok {
		return 0, core.ErrPriceUnavailable
	}

	return price, nil
}

// PriceHistory returns the recorded price updates within the time range.
// The interval parameter is ignored; updates are returned as recorded.
func (s *Static) PriceHistory(_ context.Context, symbol, _ string,
	start, end time.Time) ([]core.PricePoint, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	recorded, ok := s.history[symbol]
	if !ok {
		return nil, core.ErrPriceUnavailable
	}

	points := make([]core.PricePoint, 0, len(recorded))
	for _, point := range recorded {
		if point.Time.Before(start) || point.Time.After(end) {
			continue
		}
		points = append(points, point)
	}

	return points, nil
}

// PriceSubscription returns a channel fed by subsequent SetPrice calls
func (s *Static) PriceSubscription(ctx context.Context, symbol string) (chan core.PricePoint, chan error) {
	priceChan := make(chan core.PricePoint, 100)
	errChan := make(chan error, 1)

	s.mu.Lock()
	s.subscribers[symbol] = append(s.subscribers[symbol], priceChan)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()

		s.mu.Lock()
		subscribers := s.subscribers[symbol]
		for i, subscriber := range subscribers {
			if subscriber == priceChan {
				s.subscribers[symbol] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()

		close(priceChan)
		close(errChan)
	}()

	return priceChan, errChan
}
