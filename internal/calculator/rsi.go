package calculator

import (
	"errors"

	"github.com/guregu/null/v6"
)

// ErrFlatWindow is returned when the price did not move inside the RSI window.
var ErrFlatWindow = errors.New("no price change in RSI window")

// RSISeries computes RSI from simple trailing means of gains and losses.
// Position i uses the period price changes ending at i, so the first period
// positions are invalid. A window with gains but no losses yields 100; a
// window with neither is invalid.
func RSISeries(prices []float64, period int) []null.Float {
	out := make([]null.Float, len(prices))
	if period <= 0 {
		return out
	}
	for i := period; i < len(prices); i++ {
		if rsi, ok := rsiWindow(prices[i-period : i+1]); ok {
			out[i] = null.FloatFrom(rsi)
		}
	}
	return out
}

// CalculateRSI returns the RSI at the last price. Requires at least period+1 prices.
func CalculateRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 0, errors.New("not enough data for RSI calculation")
	}
	rsi, ok := rsiWindow(prices[len(prices)-period-1:])
	if !ok {
		return 0, ErrFlatWindow
	}
	return rsi, nil
}

// rsiWindow expects len(window) = period+1. ok is false for a flat window.
func rsiWindow(window []float64) (rsi float64, ok bool) {
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	n := float64(len(window) - 1)
	avgGain, avgLoss := gain/n, loss/n

	switch {
	case avgLoss == 0 && avgGain == 0:
		return 0, false
	case avgLoss == 0:
		return 100.0, true
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), true
}
