package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/collector"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/model"
	"MarketPulse/internal/store"
)

var errWrite = errors.New("write failed")

// flakyStore fails selected writes and delegates the rest to a MemoryStore.
type flakyStore struct {
	*store.MemoryStore
	failPriceBatch int // 1-based UpsertPrices call to fail, 0 for none
	failForecasts  bool
	failInsight    bool
	priceCalls     int
}

func (f *flakyStore) UpsertPrices(ctx context.Context, bars []model.PriceBar) error {
	f.priceCalls++
	if f.priceCalls == f.failPriceBatch {
		return errWrite
	}
	return f.MemoryStore.UpsertPrices(ctx, bars)
}

func (f *flakyStore) UpsertForecasts(ctx context.Context, pts []model.ForecastPoint) error {
	if f.failForecasts {
		return errWrite
	}
	return f.MemoryStore.UpsertForecasts(ctx, pts)
}

func (f *flakyStore) UpsertInsight(ctx context.Context, in *model.AdvisorInsight) error {
	if f.failInsight {
		return errWrite
	}
	return f.MemoryStore.UpsertInsight(ctx, in)
}

var end = time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC) // Friday

func TestChunk_4500Into5(t *testing.T) {
	items := make([]int, 4500)
	for i := range items {
		items[i] = i
	}
	chunks := Chunk(items, 1000)
	require.Len(t, chunks, 5)

	next := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1000)
		for _, v := range c {
			require.Equal(t, next, v, "record dropped or duplicated at a batch boundary")
			next++
		}
	}
	assert.Equal(t, 4500, next)
	assert.Len(t, chunks[4], 500)
}

func TestChunk_Empty(t *testing.T) {
	assert.Empty(t, Chunk([]int{}, 1000))
}

func TestIngestionJob_BatchesAndStoresEveryRow(t *testing.T) {
	mem := store.NewMemoryStore()
	f := &collector.MockFetcher{Days: 4500, End: end}
	job := NewIngestionJob(f, mem, logger.Nop(), nil, "max", 1000)

	report, err := job.Run(context.Background(), "BBCA.JK")
	require.NoError(t, err)

	assert.Equal(t, 5, mem.PriceBatches)
	assert.Len(t, mem.Prices("BBCA.JK"), 4500)
	assert.Zero(t, report.Failures())
	assert.Len(t, report.Steps, 6) // 5 price batches + profile
}

func TestIngestionJob_Idempotent(t *testing.T) {
	mem := store.NewMemoryStore()
	f := &collector.MockFetcher{Days: 300, End: end}
	job := NewIngestionJob(f, mem, logger.Nop(), nil, "2y", 0)
	fixed := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	job.Now = func() time.Time { return fixed }

	_, err := job.Run(context.Background(), "TLKM.JK")
	require.NoError(t, err)
	first := mem.Prices("TLKM.JK")
	firstProfile, _ := mem.Profile("TLKM.JK")

	_, err = job.Run(context.Background(), "TLKM.JK")
	require.NoError(t, err)

	assert.Equal(t, first, mem.Prices("TLKM.JK"))
	p, _ := mem.Profile("TLKM.JK")
	assert.Equal(t, firstProfile, p)
	assert.Len(t, first, 300)
}

func TestIngestionJob_IndicatorsUndefinedEarly(t *testing.T) {
	mem := store.NewMemoryStore()
	job := NewIngestionJob(&collector.MockFetcher{Days: 30, End: end}, mem, logger.Nop(), nil, "2y", 0)
	_, err := job.Run(context.Background(), "ASII.JK")
	require.NoError(t, err)

	rows := mem.Prices("ASII.JK")
	assert.False(t, rows[0].SMA20.Valid)
	assert.False(t, rows[13].RSI14.Valid)
	assert.True(t, rows[14].RSI14.Valid)
	assert.True(t, rows[19].SMA20.Valid)
	assert.True(t, rows[0].EMA20.Valid)
}

func TestIngestionJob_EmptyHistoryWritesNothing(t *testing.T) {
	mem := store.NewMemoryStore()
	job := NewIngestionJob(&collector.MockFetcher{Bars: []model.OHLCV{}}, mem, logger.Nop(), nil, "2y", 0)

	report, err := job.Run(context.Background(), "BUKA.JK")
	require.NoError(t, err)
	assert.NotEmpty(t, report.Skipped)
	assert.Zero(t, mem.PriceBatches)
	_, ok := mem.Profile("BUKA.JK")
	assert.False(t, ok)
}

func TestIngestionJob_FetchErrorFailsTicker(t *testing.T) {
	job := NewIngestionJob(&collector.MockFetcher{Err: errors.New("rate limited")}, store.NewMemoryStore(), logger.Nop(), nil, "2y", 0)
	_, err := job.Run(context.Background(), "GOTO.JK")
	assert.ErrorContains(t, err, "rate limited")
}

func TestIngestionJob_FailedBatchDoesNotAbortOthers(t *testing.T) {
	fs := &flakyStore{MemoryStore: store.NewMemoryStore(), failPriceBatch: 2}
	job := NewIngestionJob(&collector.MockFetcher{Days: 2500, End: end}, fs, logger.Nop(), nil, "max", 1000)

	report, err := job.Run(context.Background(), "BMRI.JK")
	require.NoError(t, err)
	assert.Equal(t, 3, fs.priceCalls)
	assert.Equal(t, 1, report.Failures())
	assert.Len(t, fs.Prices("BMRI.JK"), 1500)
	_, ok := fs.Profile("BMRI.JK")
	assert.True(t, ok, "profile upsert must still run")
}

func TestIngestionJob_ProfileDefaults(t *testing.T) {
	mem := store.NewMemoryStore()
	f := &collector.MockFetcher{
		Days: 60, End: end,
		Profiles: map[string]*model.CompanyProfile{"BBRI.JK": {Name: "Bank Rakyat Indonesia", PERatio: 11.2}},
	}
	_, err := NewIngestionJob(f, mem, logger.Nop(), nil, "2y", 0).Run(context.Background(), "BBRI.JK")
	require.NoError(t, err)

	p, ok := mem.Profile("BBRI.JK")
	require.True(t, ok)
	assert.Equal(t, "BBRI.JK", p.Symbol)
	assert.Equal(t, "Bank Rakyat Indonesia", p.Name)
	assert.Equal(t, model.Unknown, p.Sector)
	assert.Equal(t, model.Unknown, p.Description)
	assert.Zero(t, p.MarketCap)
	assert.Equal(t, 11.2, p.PERatio)
}

func TestBusinessDays(t *testing.T) {
	friday := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	got := BusinessDays(friday, 7)
	want := []string{"2026-03-09", "2026-03-10", "2026-03-11", "2026-03-12", "2026-03-13", "2026-03-16", "2026-03-17"}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w, got[i].Format(model.DateLayout))
	}
}

func TestBusinessDays_NeverWeekendStrictlyIncreasing(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < 14; offset++ {
		from := start.AddDate(0, 0, offset)
		days := BusinessDays(from, 30)
		prev := from
		for _, d := range days {
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				t.Fatalf("from %s: weekend date %s", from.Format(model.DateLayout), d.Format(model.DateLayout))
			}
			if !d.After(prev) {
				t.Fatalf("from %s: %s not after %s", from.Format(model.DateLayout), d, prev)
			}
			prev = d
		}
	}
}

func seedHistory(t *testing.T, s store.Store, symbol string, n int) {
	t.Helper()
	rows := BuildPriceBars(symbol, collector.GenerateBars(symbol, n, end))
	require.NoError(t, s.UpsertPrices(context.Background(), rows))
}

func TestForecastJob_WritesForecastAndInsight(t *testing.T) {
	mem := store.NewMemoryStore()
	seedHistory(t, mem, "BBCA.JK", 120)
	job := NewForecastJob(mem, logger.Nop(), nil, 7, "")

	report, err := job.Run(context.Background(), "BBCA.JK")
	require.NoError(t, err)
	assert.Zero(t, report.Failures())

	pts := mem.Forecasts("BBCA.JK")
	require.Len(t, pts, 7)
	assert.Equal(t, "2026-03-09", pts[0].ForecastDate.Format(model.DateLayout))
	for _, p := range pts {
		assert.Equal(t, DefaultModelVersion, p.ModelVersion)
		assert.Equal(t, Round2(p.PredictedPrice), p.PredictedPrice)
	}

	in, ok := mem.Insight("BBCA.JK")
	require.True(t, ok)
	require.NotNil(t, in.Indicators)
	assert.GreaterOrEqual(t, in.Score, 0)
	assert.LessOrEqual(t, in.Score, 100)
}

func TestForecastJob_ShortHistoryWritesNothing(t *testing.T) {
	mem := store.NewMemoryStore()
	seedHistory(t, mem, "EMTK.JK", 9)

	report, err := NewForecastJob(mem, logger.Nop(), nil, 7, "").Run(context.Background(), "EMTK.JK")
	require.NoError(t, err)
	assert.Equal(t, "forecast unavailable", report.Skipped)
	assert.Empty(t, mem.Forecasts("EMTK.JK"))
	_, ok := mem.Insight("EMTK.JK")
	assert.False(t, ok)
}

func TestForecastJob_NoHistory(t *testing.T) {
	report, err := NewForecastJob(store.NewMemoryStore(), logger.Nop(), nil, 7, "").Run(context.Background(), "BELI.JK")
	require.NoError(t, err)
	assert.Equal(t, "no persisted history", report.Skipped)
}

func TestForecastJob_InsufficientForAdvisor(t *testing.T) {
	mem := store.NewMemoryStore()
	seedHistory(t, mem, "DRMA.JK", 20)

	_, err := NewForecastJob(mem, logger.Nop(), nil, 7, "").Run(context.Background(), "DRMA.JK")
	require.NoError(t, err)
	assert.Len(t, mem.Forecasts("DRMA.JK"), 7)
	in, ok := mem.Insight("DRMA.JK")
	require.True(t, ok)
	assert.Equal(t, "Insufficient Data", in.Title)
	assert.Nil(t, in.Indicators)
}

func TestForecastJob_WritesAreIndependent(t *testing.T) {
	fs := &flakyStore{MemoryStore: store.NewMemoryStore(), failForecasts: true}
	seedHistory(t, fs, "UNTR.JK", 80)

	report, err := NewForecastJob(fs, logger.Nop(), nil, 7, "").Run(context.Background(), "UNTR.JK")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failures())
	_, ok := fs.Insight("UNTR.JK")
	assert.True(t, ok, "insight must be written when the forecast upsert fails")

	fs = &flakyStore{MemoryStore: store.NewMemoryStore(), failInsight: true}
	seedHistory(t, fs, "UNTR.JK", 80)
	report, err = NewForecastJob(fs, logger.Nop(), nil, 7, "").Run(context.Background(), "UNTR.JK")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failures())
	assert.Len(t, fs.Forecasts("UNTR.JK"), 7)
}

func TestParseType(t *testing.T) {
	got, err := ParseType("forecast")
	require.NoError(t, err)
	assert.Equal(t, Forecast, got)
	_, err = ParseType("backfill")
	assert.Error(t, err)
}
