package model

import "github.com/guregu/null/v6"

// IndicatorSnapshot holds the technical indicators attached to a PriceBar.
// A field is invalid (null) while the trailing window is still too short.
type IndicatorSnapshot struct {
	SMA20 null.Float `json:"sma_20"`
	EMA20 null.Float `json:"ema_20"`
	RSI14 null.Float `json:"rsi_14"`
}
