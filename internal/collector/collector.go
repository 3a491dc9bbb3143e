package collector

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"MarketPulse/internal/model"
)

// MockFetcher returns deterministic data for development and testing.
// When Bars is set it is returned for every symbol; otherwise a per-symbol
// random walk of Days weekday bars ending at End is generated.
type MockFetcher struct {
	Bars     []model.OHLCV
	Profiles map[string]*model.CompanyProfile
	Days     int
	End      time.Time
	Err      error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(_ context.Context, symbol, _ string) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		out := make([]model.OHLCV, len(m.Bars))
		copy(out, m.Bars)
		return out, nil
	}
	days := m.Days
	if days == 0 {
		days = 250
	}
	end := m.End
	if end.IsZero() {
		end = time.Now()
	}
	return GenerateBars(symbol, days, end), nil
}

func (m *MockFetcher) FetchProfile(_ context.Context, symbol string) (*model.CompanyProfile, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if p, ok := m.Profiles[symbol]; ok {
		cp := *p
		return &cp, nil
	}
	return &model.CompanyProfile{Symbol: symbol}, nil
}

// GenerateBars builds count weekday bars ending on or before end. The walk is
// seeded by symbol so repeated calls return identical data.
func GenerateBars(symbol string, count int, end time.Time) []model.OHLCV {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	seed := float64(h.Sum32()%1000) / 1000
	base := 1000 + seed*9000

	dates := make([]time.Time, 0, count)
	d := model.TruncateDate(end)
	for len(dates) < count {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, -1)
	}

	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := base * (1 + 0.0005*float64(i) + 0.02*math.Sin(float64(i)/7+seed*6))
		bars[i] = model.OHLCV{
			Time:   dates[count-1-i],
			Open:   p * 0.998,
			High:   p * 1.01,
			Low:    p * 0.99,
			Close:  p,
			Volume: 1_000_000 + int64(i)*1000,
		}
	}
	return bars
}
