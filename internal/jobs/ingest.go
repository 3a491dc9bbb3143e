package jobs

import (
	"context"
	"fmt"
	"time"

	"MarketPulse/internal/calculator"
	"MarketPulse/internal/collector"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/metrics"
	"MarketPulse/internal/model"
	"MarketPulse/internal/store"
)

// DefaultBatchSize bounds the rows sent in one price upsert.
const DefaultBatchSize = 1000

// IngestionJob pulls history and profile for a ticker, derives indicators and
// upserts everything.
type IngestionJob struct {
	Fetcher      collector.Fetcher
	Store        store.Store
	Log          *logger.Logger
	Metrics      *metrics.Recorder
	HistoryRange string
	BatchSize    int
	Now          func() time.Time
}

func NewIngestionJob(f collector.Fetcher, s store.Store, log *logger.Logger, m *metrics.Recorder, historyRange string, batchSize int) *IngestionJob {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IngestionJob{
		Fetcher:      f,
		Store:        s,
		Log:          log.With(logger.String("job", string(Ingest))),
		Metrics:      m,
		HistoryRange: historyRange,
		BatchSize:    batchSize,
		Now:          time.Now,
	}
}

func (j *IngestionJob) Type() Type { return Ingest }

func (j *IngestionJob) Run(ctx context.Context, symbol string) (*Report, error) {
	report := &Report{}
	bars, err := j.Fetcher.FetchHistory(ctx, symbol, j.HistoryRange)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if len(bars) == 0 {
		j.Log.Warn("no price data", logger.String("symbol", symbol))
		report.Skipped = "no price data"
		return report, nil
	}

	rows := BuildPriceBars(symbol, bars)
	for i, chunk := range Chunk(rows, j.BatchSize) {
		step := fmt.Sprintf("prices[%d]", i)
		if err := j.Store.UpsertPrices(ctx, chunk); err != nil {
			j.Log.Error("price batch upsert failed",
				logger.String("symbol", symbol), logger.Int("batch", i), logger.Error(err))
			j.Metrics.StepFailed("prices")
			report.add(step, len(chunk), err)
			continue
		}
		j.Metrics.RowsUpserted("stock_prices", len(chunk))
		report.add(step, len(chunk), nil)
	}

	j.ingestProfile(ctx, symbol, report)

	j.Log.Info("ingested",
		logger.String("symbol", symbol), logger.Int("rows", len(rows)), logger.Int("failed_steps", report.Failures()))
	return report, nil
}

func (j *IngestionJob) ingestProfile(ctx context.Context, symbol string, report *Report) {
	p, err := j.Fetcher.FetchProfile(ctx, symbol)
	if err != nil {
		j.Log.Warn("profile fetch failed", logger.String("symbol", symbol), logger.Error(err))
		j.Metrics.StepFailed("profile")
		report.add("profile", 0, fmt.Errorf("fetch profile: %w", err))
		return
	}
	p.Symbol = symbol
	p.ApplyDefaults()
	p.UpdatedAt = j.Now()

	if err := j.Store.UpsertProfile(ctx, p); err != nil {
		j.Log.Error("profile upsert failed", logger.String("symbol", symbol), logger.Error(err))
		j.Metrics.StepFailed("profile")
		report.add("profile", 1, err)
		return
	}
	j.Metrics.RowsUpserted("company_profiles", 1)
	report.add("profile", 1, nil)
}

// BuildPriceBars annotates ascending bars with their indicator snapshots.
func BuildPriceBars(symbol string, bars []model.OHLCV) []model.PriceBar {
	snaps := calculator.Compute(calculator.ExtractCloses(bars))
	rows := make([]model.PriceBar, len(bars))
	for i, b := range bars {
		rows[i] = model.PriceBar{
			Symbol:            symbol,
			Date:              model.TruncateDate(b.Time),
			Open:              b.Open,
			High:              b.High,
			Low:               b.Low,
			Close:             b.Close,
			Volume:            b.Volume,
			IndicatorSnapshot: snaps[i],
		}
	}
	return rows
}
