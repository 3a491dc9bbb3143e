package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/model"
)

type dateKey struct {
	symbol string
	date   time.Time
}

// MemoryStore keeps everything in process memory. It backs tests and dry runs.
type MemoryStore struct {
	mu        sync.RWMutex
	prices    map[dateKey]model.PriceBar
	profiles  map[string]model.CompanyProfile
	forecasts map[dateKey]model.ForecastPoint
	insights  map[string]model.AdvisorInsight

	// PriceBatches counts UpsertPrices calls.
	PriceBatches int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices:    make(map[dateKey]model.PriceBar),
		profiles:  make(map[string]model.CompanyProfile),
		forecasts: make(map[dateKey]model.ForecastPoint),
		insights:  make(map[string]model.AdvisorInsight),
	}
}

func (m *MemoryStore) UpsertPrices(_ context.Context, bars []model.PriceBar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PriceBatches++
	for _, b := range bars {
		b.Date = model.TruncateDate(b.Date)
		m.prices[dateKey{b.Symbol, b.Date}] = b
	}
	return nil
}

func (m *MemoryStore) UpsertProfile(_ context.Context, p *model.CompanyProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Symbol] = *p
	return nil
}

func (m *MemoryStore) ClosingPrices(_ context.Context, symbol string) ([]model.ClosePoint, error) {
	bars := m.Prices(symbol)
	out := make([]model.ClosePoint, len(bars))
	for i, b := range bars {
		out[i] = model.ClosePoint{Date: b.Date, Close: b.Close}
	}
	return out, nil
}

func (m *MemoryStore) UpsertForecasts(_ context.Context, points []model.ForecastPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		p.ForecastDate = model.TruncateDate(p.ForecastDate)
		m.forecasts[dateKey{p.Symbol, p.ForecastDate}] = p
	}
	return nil
}

func (m *MemoryStore) UpsertInsight(_ context.Context, in *model.AdvisorInsight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights[in.Symbol] = *in
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// Prices returns the stored bars for symbol in ascending date order.
func (m *MemoryStore) Prices(symbol string) []model.PriceBar {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.PriceBar
	for k, b := range m.prices {
		if k.symbol == symbol {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Forecasts returns the stored forecast points for symbol in ascending date order.
func (m *MemoryStore) Forecasts(symbol string) []model.ForecastPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ForecastPoint
	for k, p := range m.forecasts {
		if k.symbol == symbol {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ForecastDate.Before(out[j].ForecastDate) })
	return out
}

// Profile returns the stored profile for symbol.
func (m *MemoryStore) Profile(symbol string) (model.CompanyProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[symbol]
	return p, ok
}

// Insight returns the stored insight for symbol.
func (m *MemoryStore) Insight(symbol string) (model.AdvisorInsight, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.insights[symbol]
	return in, ok
}
