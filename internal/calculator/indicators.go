package calculator

import (
	"github.com/guregu/null/v6"

	"MarketPulse/internal/model"
)

// Indicator windows.
const (
	SMAPeriod     = 20
	EMAPeriod     = 20
	RSIPeriod     = 14
	LongSMAPeriod = 50
)

// Compute derives one IndicatorSnapshot per close. closes must be in ascending
// date order; position i only uses closes[0..i].
func Compute(closes []float64) []model.IndicatorSnapshot {
	sma := SMASeries(closes, SMAPeriod)
	ema := EMASeries(closes, EMAPeriod)
	rsi := RSISeries(closes, RSIPeriod)

	out := make([]model.IndicatorSnapshot, len(closes))
	for i := range closes {
		out[i].SMA20 = sma[i]
		out[i].EMA20 = null.FloatFrom(ema[i])
		out[i].RSI14 = rsi[i]
	}
	return out
}
