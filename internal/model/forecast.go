package model

import "time"

// ForecastPoint is one predicted close, keyed by (Symbol, ForecastDate).
type ForecastPoint struct {
	Symbol         string    `json:"symbol"`
	ForecastDate   time.Time `json:"forecast_date"`
	PredictedPrice float64   `json:"predicted_price"`
	ModelVersion   string    `json:"model_version"`
	CreatedAt      time.Time `json:"created_at"`
}
