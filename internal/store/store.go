package store

import (
	"context"
	"fmt"

	"MarketPulse/internal/model"
)

// Store is the persistence collaborator. Every write is an upsert keyed by
// the entity's unique key, so re-running a job overwrites instead of appending.
type Store interface {
	// UpsertPrices writes bars keyed by (symbol, date). The caller bounds the batch size.
	UpsertPrices(ctx context.Context, bars []model.PriceBar) error
	// UpsertProfile writes a profile keyed by symbol.
	UpsertProfile(ctx context.Context, p *model.CompanyProfile) error
	// ClosingPrices returns the persisted closes for symbol in ascending date order.
	ClosingPrices(ctx context.Context, symbol string) ([]model.ClosePoint, error)
	// UpsertForecasts writes points keyed by (symbol, forecast_date).
	UpsertForecasts(ctx context.Context, points []model.ForecastPoint) error
	// UpsertInsight writes the insight keyed by symbol, replacing the previous one.
	UpsertInsight(ctx context.Context, in *model.AdvisorInsight) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver     string // postgres, sqlite or memory
	URL        string
	SQLitePath string
	MaxConns   int32
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresStore(ctx, cfg.URL, cfg.MaxConns)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
