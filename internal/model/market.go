package model

import "time"

// DateLayout is the calendar date layout used for trading and forecast dates.
const DateLayout = "2006-01-02"

// OHLCV represents a single daily candlestick as returned by a market-data source.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// PriceBar is one persisted trading day for a symbol, keyed by (Symbol, Date).
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`

	IndicatorSnapshot
}

// ClosePoint is a persisted close price read back for forecasting.
type ClosePoint struct {
	Date  time.Time
	Close float64
}

// Closes extracts the close series from points, preserving order.
func Closes(points []ClosePoint) []float64 {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	return closes
}

// TruncateDate drops the clock part of t, keeping its calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
