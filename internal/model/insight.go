package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// Sentiment is the advisory verdict label.
type Sentiment string

const (
	SentimentStrongBuy  Sentiment = "STRONG BUY"
	SentimentBuy        Sentiment = "BUY"
	SentimentHold       Sentiment = "HOLD"
	SentimentNeutral    Sentiment = "NEUTRAL"
	SentimentWatchlist  Sentiment = "WATCHLIST"
	SentimentSell       Sentiment = "SELL"
	SentimentStrongSell Sentiment = "STRONG SELL"
)

// Trend classifies the latest price against its moving averages.
type Trend string

const (
	TrendBullish  Trend = "Bullish"
	TrendSideways Trend = "Sideways"
	TrendBearish  Trend = "Bearish"
)

// RSIStatus buckets the latest RSI value.
type RSIStatus string

const (
	RSIOversold   RSIStatus = "Oversold"
	RSINeutral    RSIStatus = "Neutral"
	RSIOverbought RSIStatus = "Overbought"
)

// InsightIndicators is the indicator snapshot an insight was derived from.
type InsightIndicators struct {
	RSI   null.Float `json:"rsi"` // invalid when the RSI window is flat
	EMA20 float64    `json:"ema_20"`
	Trend Trend      `json:"trend"`
}

// AdvisorInsight is the current advisory verdict for a symbol, keyed by Symbol.
type AdvisorInsight struct {
	Symbol     string             `json:"symbol"`
	Sentiment  Sentiment          `json:"sentiment"`
	Score      int                `json:"score"`
	Title      string             `json:"title"`
	Message    string             `json:"message"`
	Indicators *InsightIndicators `json:"indicators,omitempty"` // nil when history is insufficient
	UpdatedAt  time.Time          `json:"updated_at"`
}
