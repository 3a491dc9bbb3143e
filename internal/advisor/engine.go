package advisor

import (
	"math"
	"time"

	"github.com/guregu/null/v6"

	"MarketPulse/internal/calculator"
	"MarketPulse/internal/model"
)

// MinObservations is the history needed for every indicator the advisor reads.
const MinObservations = 50

// Verdict is the fixed outcome of one (trend, rsi status) cell.
type Verdict struct {
	Sentiment model.Sentiment
	Score     int
	Title     string
	Message   string
}

type cell struct {
	Trend  model.Trend
	Status model.RSIStatus
}

var sideways = Verdict{
	Sentiment: model.SentimentNeutral,
	Score:     50,
	Title:     "Market Observation",
	Message:   "Signals are mixed at the moment. Patience is advised until a clearer direction emerges.",
}

// Table maps every (trend, rsi status) pair to its verdict.
var Table = map[cell]Verdict{
	{model.TrendBullish, model.RSIOversold}: {
		Sentiment: model.SentimentStrongBuy, Score: 90,
		Title:   "Prime Accumulation Zone",
		Message: "A strong uptrend is trading at a temporary discount. The setup favours accumulation.",
	},
	{model.TrendBullish, model.RSINeutral}: {
		Sentiment: model.SentimentBuy, Score: 75,
		Title:   "Steady Growth Trajectory",
		Message: "Price is holding a healthy upward path. Adding exposure at these levels looks reasonable.",
	},
	{model.TrendBullish, model.RSIOverbought}: {
		Sentiment: model.SentimentHold, Score: 65,
		Title:   "Momentum is High",
		Message: "The trend is intact but price is stretched. Hold existing positions rather than chase.",
	},
	{model.TrendSideways, model.RSIOversold}:   sideways,
	{model.TrendSideways, model.RSINeutral}:    sideways,
	{model.TrendSideways, model.RSIOverbought}: sideways,
	{model.TrendBearish, model.RSIOversold}: {
		Sentiment: model.SentimentWatchlist, Score: 40,
		Title:   "Potential Reversal Forming",
		Message: "The stock is heavily discounted. Still risky, but worth watching for a reversal entry.",
	},
	{model.TrendBearish, model.RSINeutral}: {
		Sentiment: model.SentimentSell, Score: 25,
		Title:   "Negative Outlook",
		Message: "The prevailing trend is down. New entries are not recommended and exposure should be reduced.",
	},
	{model.TrendBearish, model.RSIOverbought}: {
		Sentiment: model.SentimentStrongSell, Score: 10,
		Title:   "Capital Preservation Advised",
		Message: "Structure is weakening while price remains elevated. Reducing positions preserves capital.",
	},
}

// Insufficient is returned when there is not enough history to judge.
var Insufficient = Verdict{
	Sentiment: model.SentimentNeutral,
	Score:     50,
	Title:     "Insufficient Data",
	Message:   "More market history is being collected before an assessment can be made.",
}

// Lookup returns the verdict for a cell. Unknown labels fall back to the sideways verdict.
func Lookup(trend model.Trend, status model.RSIStatus) Verdict {
	if v, ok := Table[cell{trend, status}]; ok {
		return v
	}
	return sideways
}

// ClassifyTrend compares price with its 50-day SMA and 20-day EMA.
func ClassifyTrend(price, sma50, ema20 float64) model.Trend {
	switch {
	case price > sma50 && price > ema20:
		return model.TrendBullish
	case price < sma50 && price < ema20:
		return model.TrendBearish
	default:
		return model.TrendSideways
	}
}

// ClassifyRSI buckets an RSI value.
func ClassifyRSI(rsi float64) model.RSIStatus {
	switch {
	case rsi > 70:
		return model.RSIOverbought
	case rsi < 30:
		return model.RSIOversold
	default:
		return model.RSINeutral
	}
}

// Evaluate produces the insight for symbol from its ascending close history.
// The last close is the current price.
func Evaluate(symbol string, closes []float64, now time.Time) *model.AdvisorInsight {
	if len(closes) < MinObservations {
		return newInsight(symbol, Insufficient, nil, now)
	}

	price := closes[len(closes)-1]
	// Lengths are checked above, so these cannot fail.
	ema20, _ := calculator.CalculateEMA(closes, calculator.EMAPeriod)
	sma50, _ := calculator.CalculateSMA(closes, calculator.LongSMAPeriod)

	// A flat RSI window carries no momentum signal and reads as neutral.
	status := model.RSINeutral
	var rsiVal null.Float
	if rsi, err := calculator.CalculateRSI(closes, calculator.RSIPeriod); err == nil {
		status = ClassifyRSI(rsi)
		rsiVal = null.FloatFrom(round2(rsi))
	}

	trend := ClassifyTrend(price, sma50, ema20)
	v := Lookup(trend, status)

	return newInsight(symbol, v, &model.InsightIndicators{
		RSI:   rsiVal,
		EMA20: round2(ema20),
		Trend: trend,
	}, now)
}

func newInsight(symbol string, v Verdict, ind *model.InsightIndicators, now time.Time) *model.AdvisorInsight {
	return &model.AdvisorInsight{
		Symbol:     symbol,
		Sentiment:  v.Sentiment,
		Score:      v.Score,
		Title:      v.Title,
		Message:    v.Message,
		Indicators: ind,
		UpdatedAt:  now,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
