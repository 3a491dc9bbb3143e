package jobs

import (
	"context"
	"fmt"
	"math"
	"time"

	"MarketPulse/internal/advisor"
	"MarketPulse/internal/forecast"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/metrics"
	"MarketPulse/internal/model"
	"MarketPulse/internal/store"
)

// DefaultModelVersion tags every persisted forecast point.
const DefaultModelVersion = "v1-holt-linear"

// ForecastJob projects persisted closes forward and refreshes the advisory insight.
type ForecastJob struct {
	Store        store.Store
	Log          *logger.Logger
	Metrics      *metrics.Recorder
	Horizon      int
	ModelVersion string
	Now          func() time.Time
}

func NewForecastJob(s store.Store, log *logger.Logger, m *metrics.Recorder, horizon int, modelVersion string) *ForecastJob {
	if horizon <= 0 {
		horizon = forecast.DefaultHorizon
	}
	if modelVersion == "" {
		modelVersion = DefaultModelVersion
	}
	return &ForecastJob{
		Store:        s,
		Log:          log.With(logger.String("job", string(Forecast))),
		Metrics:      m,
		Horizon:      horizon,
		ModelVersion: modelVersion,
		Now:          time.Now,
	}
}

func (j *ForecastJob) Type() Type { return Forecast }

func (j *ForecastJob) Run(ctx context.Context, symbol string) (*Report, error) {
	report := &Report{}
	history, err := j.Store.ClosingPrices(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("read closes: %w", err)
	}
	if len(history) == 0 {
		j.Log.Warn("no persisted history", logger.String("symbol", symbol))
		report.Skipped = "no persisted history"
		return report, nil
	}

	closes := model.Closes(history)
	preds := forecast.Forecast(closes, j.Horizon)
	if len(preds) == 0 {
		j.Log.Warn("forecast unavailable",
			logger.String("symbol", symbol), logger.Int("observations", len(closes)))
		report.Skipped = "forecast unavailable"
		return report, nil
	}

	now := j.Now()
	dates := BusinessDays(history[len(history)-1].Date, len(preds))
	points := make([]model.ForecastPoint, len(preds))
	for i, p := range preds {
		points[i] = model.ForecastPoint{
			Symbol:         symbol,
			ForecastDate:   dates[i],
			PredictedPrice: Round2(p),
			ModelVersion:   j.ModelVersion,
			CreatedAt:      now,
		}
	}

	// The two writes are independent; one failing must not block the other.
	if err := j.Store.UpsertForecasts(ctx, points); err != nil {
		j.Log.Error("forecast upsert failed", logger.String("symbol", symbol), logger.Error(err))
		j.Metrics.StepFailed("forecast")
		report.add("forecast", len(points), err)
	} else {
		j.Metrics.RowsUpserted("stock_predictions", len(points))
		report.add("forecast", len(points), nil)
	}

	insight := advisor.Evaluate(symbol, closes, now)
	if err := j.Store.UpsertInsight(ctx, insight); err != nil {
		j.Log.Error("insight upsert failed", logger.String("symbol", symbol), logger.Error(err))
		j.Metrics.StepFailed("insight")
		report.add("insight", 1, err)
	} else {
		j.Metrics.RowsUpserted("stock_insights", 1)
		report.add("insight", 1, nil)
	}

	j.Log.Info("forecast updated",
		logger.String("symbol", symbol),
		logger.String("sentiment", string(insight.Sentiment)),
		logger.Int("points", len(points)))
	return report, nil
}

// BusinessDays returns the n weekdays following from, in order.
func BusinessDays(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := model.TruncateDate(from)
	for len(out) < n {
		d = d.AddDate(0, 0, 1)
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		out = append(out, d)
	}
	return out
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }
