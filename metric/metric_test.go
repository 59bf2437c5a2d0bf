package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	require.Zero(t, Mean(nil))
	require.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestWinRate(t *testing.T) {
	require.Zero(t, WinRate(nil))
	require.Equal(t, 0.75, WinRate([]float64{10, 5, -3, 1}))
}

func TestPayoff(t *testing.T) {
	require.Equal(t, 10.0, Payoff([]float64{1, 2, 3}))
	require.Equal(t, 2.0, Payoff([]float64{4, -2}))
}

func TestProfitFactor(t *testing.T) {
	require.Equal(t, 10.0, ProfitFactor([]float64{1, 2}))
	require.Equal(t, 3.0, ProfitFactor([]float64{6, -2}))
}
