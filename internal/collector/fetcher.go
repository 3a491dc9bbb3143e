package collector

import (
	"context"

	"MarketPulse/internal/model"
)

// Fetcher defines the market-data source used by ingestion.
type Fetcher interface {
	// FetchHistory returns daily bars in ascending date order over rng ("1y", "2y", ...).
	// An unknown or delisted symbol yields an empty slice, not an error.
	FetchHistory(ctx context.Context, symbol, rng string) ([]model.OHLCV, error)
	// FetchProfile returns company metadata; omitted fields are left zero.
	FetchProfile(ctx context.Context, symbol string) (*model.CompanyProfile, error)
	Name() string
}
