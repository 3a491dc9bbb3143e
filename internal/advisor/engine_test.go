package advisor

import (
	"testing"
	"time"

	"MarketPulse/internal/model"
)

var (
	trends   = []model.Trend{model.TrendBullish, model.TrendSideways, model.TrendBearish}
	statuses = []model.RSIStatus{model.RSIOversold, model.RSINeutral, model.RSIOverbought}
)

func TestTable_IsTotal(t *testing.T) {
	if len(Table) != len(trends)*len(statuses) {
		t.Fatalf("expected %d cells, got %d", len(trends)*len(statuses), len(Table))
	}
	for _, tr := range trends {
		for _, st := range statuses {
			v, ok := Table[cell{tr, st}]
			if !ok {
				t.Errorf("missing cell (%s, %s)", tr, st)
				continue
			}
			if v.Sentiment == "" || v.Title == "" || v.Message == "" {
				t.Errorf("cell (%s, %s) is incomplete: %+v", tr, st, v)
			}
			if v.Score < 0 || v.Score > 100 {
				t.Errorf("cell (%s, %s) score out of range: %d", tr, st, v.Score)
			}
		}
	}
}

func TestTable_Mapping(t *testing.T) {
	tests := []struct {
		trend     model.Trend
		status    model.RSIStatus
		sentiment model.Sentiment
		score     int
	}{
		{model.TrendBullish, model.RSIOversold, model.SentimentStrongBuy, 90},
		{model.TrendBullish, model.RSINeutral, model.SentimentBuy, 75},
		{model.TrendBullish, model.RSIOverbought, model.SentimentHold, 65},
		{model.TrendSideways, model.RSIOversold, model.SentimentNeutral, 50},
		{model.TrendSideways, model.RSINeutral, model.SentimentNeutral, 50},
		{model.TrendSideways, model.RSIOverbought, model.SentimentNeutral, 50},
		{model.TrendBearish, model.RSIOversold, model.SentimentWatchlist, 40},
		{model.TrendBearish, model.RSINeutral, model.SentimentSell, 25},
		{model.TrendBearish, model.RSIOverbought, model.SentimentStrongSell, 10},
	}
	for _, tt := range tests {
		v := Lookup(tt.trend, tt.status)
		if v.Sentiment != tt.sentiment || v.Score != tt.score {
			t.Errorf("(%s, %s): got %s/%d, want %s/%d",
				tt.trend, tt.status, v.Sentiment, v.Score, tt.sentiment, tt.score)
		}
	}
}

func TestClassify(t *testing.T) {
	if got := ClassifyTrend(110, 100, 105); got != model.TrendBullish {
		t.Errorf("expected Bullish, got %s", got)
	}
	if got := ClassifyTrend(90, 100, 95); got != model.TrendBearish {
		t.Errorf("expected Bearish, got %s", got)
	}
	if got := ClassifyTrend(100, 95, 105); got != model.TrendSideways {
		t.Errorf("expected Sideways, got %s", got)
	}
	if got := ClassifyRSI(70); got != model.RSINeutral {
		t.Errorf("RSI 70 should be Neutral, got %s", got)
	}
	if got := ClassifyRSI(70.01); got != model.RSIOverbought {
		t.Errorf("expected Overbought, got %s", got)
	}
	if got := ClassifyRSI(29.99); got != model.RSIOversold {
		t.Errorf("expected Oversold, got %s", got)
	}
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for _, n := range []int{0, 1, 49} {
		ins := Evaluate("BBCA.JK", ascending(n), now)
		if ins.Sentiment != model.SentimentNeutral || ins.Score != 50 || ins.Title != "Insufficient Data" {
			t.Errorf("n=%d: unexpected verdict %+v", n, ins)
		}
		if ins.Indicators != nil {
			t.Errorf("n=%d: expected no indicator snapshot", n)
		}
		if !ins.UpdatedAt.Equal(now) {
			t.Errorf("n=%d: timestamp not set", n)
		}
	}
}

func TestEvaluate_AscendingSeriesIsBullish(t *testing.T) {
	ins := Evaluate("TLKM.JK", ascending(60), time.Now())
	if ins.Indicators == nil {
		t.Fatal("expected indicator snapshot")
	}
	if ins.Indicators.Trend != model.TrendBullish {
		t.Fatalf("expected Bullish trend, got %s", ins.Indicators.Trend)
	}
	switch ins.Sentiment {
	case model.SentimentStrongBuy, model.SentimentBuy, model.SentimentHold:
	default:
		t.Errorf("unexpected sentiment for uptrend: %s", ins.Sentiment)
	}
	// no losses in the window: RSI is 100, so the bullish overbought cell applies
	if ins.Indicators.RSI.ValueOrZero() != 100 || ins.Sentiment != model.SentimentHold {
		t.Errorf("expected RSI 100 / HOLD, got %v / %s", ins.Indicators.RSI, ins.Sentiment)
	}
}

func TestEvaluate_DescendingSeriesIsBearish(t *testing.T) {
	closes := ascending(60)
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	ins := Evaluate("GOTO.JK", closes, time.Now())
	if ins.Indicators == nil || ins.Indicators.Trend != model.TrendBearish {
		t.Fatalf("expected Bearish trend, got %+v", ins.Indicators)
	}
	if ins.Sentiment != model.SentimentWatchlist {
		t.Errorf("expected WATCHLIST (RSI 0), got %s", ins.Sentiment)
	}
}

func TestEvaluate_PriceFloorReadsAsNeutralRSI(t *testing.T) {
	// 45 sessions of decline, then 20 sessions pinned at the floor price
	closes := make([]float64, 0, 65)
	for i := 0; i < 45; i++ {
		closes = append(closes, 95-float64(i))
	}
	for i := 0; i < 20; i++ {
		closes = append(closes, 50)
	}
	ins := Evaluate("FLOOR.JK", closes, time.Now())
	if ins.Indicators == nil || ins.Indicators.Trend != model.TrendBearish {
		t.Fatalf("expected Bearish trend, got %+v", ins.Indicators)
	}
	if ins.Indicators.RSI.Valid {
		t.Errorf("flat RSI window should leave RSI undefined, got %v", ins.Indicators.RSI.Float64)
	}
	if ins.Sentiment != model.SentimentSell || ins.Score != 25 {
		t.Errorf("expected SELL/25, got %s/%d", ins.Sentiment, ins.Score)
	}
}

func TestEvaluate_RoundsSnapshot(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 1000 + float64(i%7)*3.333 + float64(i)*0.17
	}
	ins := Evaluate("ASII.JK", closes, time.Now())
	for _, v := range []float64{ins.Indicators.RSI.ValueOrZero(), ins.Indicators.EMA20} {
		if r := round2(v); r != v {
			t.Errorf("value %v is not rounded to 2 decimals", v)
		}
	}
}

func ascending(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}
