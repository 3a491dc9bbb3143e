package calculator

import (
	"errors"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"MarketPulse/internal/model"
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	return stat.Mean(prices[len(prices)-period:], nil), nil
}

// SMASeries returns the trailing simple moving average at every position.
// The first period-1 positions are invalid.
func SMASeries(prices []float64, period int) []null.Float {
	out := make([]null.Float, len(prices))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(prices); i++ {
		out[i] = null.FloatFrom(floats.Sum(prices[i-period+1:i+1]) / float64(period))
	}
	return out
}

// EMASeries returns the exponential moving average with alpha = 2/(period+1),
// seeded with the first price. Every position has a value.
func EMASeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 || period <= 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = alpha*prices[i] + (1-alpha)*out[i-1]
	}
	return out
}

// CalculateEMA returns the latest EMA value of prices.
func CalculateEMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) == 0 {
		return 0, errors.New("not enough data for EMA calculation")
	}
	s := EMASeries(prices, period)
	return s[len(s)-1], nil
}

// ExtractCloses returns the close of every bar, in order.
func ExtractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
