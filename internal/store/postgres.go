package store

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"MarketPulse/internal/model"
)

// PostgresStore persists the dataset to Postgres (Supabase compatible).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects a pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse pgx connection string: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_prices (
			symbol TEXT NOT NULL,
			date   DATE NOT NULL,
			open   DOUBLE PRECISION,
			high   DOUBLE PRECISION,
			low    DOUBLE PRECISION,
			close  DOUBLE PRECISION NOT NULL,
			volume BIGINT,
			sma_20 DOUBLE PRECISION,
			ema_20 DOUBLE PRECISION,
			rsi_14 DOUBLE PRECISION,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS company_profiles (
			symbol         TEXT PRIMARY KEY,
			name           TEXT,
			sector         TEXT,
			industry       TEXT,
			description    TEXT,
			market_cap     BIGINT,
			pe_ratio       DOUBLE PRECISION,
			dividend_yield DOUBLE PRECISION,
			updated_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_predictions (
			symbol          TEXT NOT NULL,
			forecast_date   DATE NOT NULL,
			predicted_price DOUBLE PRECISION NOT NULL,
			model_version   TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (symbol, forecast_date)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_insights (
			symbol     TEXT PRIMARY KEY,
			sentiment  TEXT NOT NULL,
			score      INTEGER NOT NULL,
			title      TEXT,
			message    TEXT,
			rsi        DOUBLE PRECISION,
			ema_20     DOUBLE PRECISION,
			trend      TEXT,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(ctx, st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

const upsertPriceSQL = `INSERT INTO stock_prices
	(symbol, date, open, high, low, close, volume, sma_20, ema_20, rsi_14)
	VALUES (@symbol, @date, @open, @high, @low, @close, @volume, @sma_20, @ema_20, @rsi_14)
	ON CONFLICT (symbol, date) DO UPDATE SET
		open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close,
		volume = EXCLUDED.volume, sma_20 = EXCLUDED.sma_20, ema_20 = EXCLUDED.ema_20, rsi_14 = EXCLUDED.rsi_14`

// UpsertPrices sends all rows as one pgx batch, which runs as a single transaction.
func (s *PostgresStore) UpsertPrices(ctx context.Context, bars []model.PriceBar) error {
	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(upsertPriceSQL, pgx.NamedArgs{
			"symbol": b.Symbol,
			"date":   b.Date,
			"open":   b.Open,
			"high":   b.High,
			"low":    b.Low,
			"close":  b.Close,
			"volume": b.Volume,
			"sma_20": b.SMA20,
			"ema_20": b.EMA20,
			"rsi_14": b.RSI14,
		})
	}
	return s.sendBatch(ctx, batch)
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *model.CompanyProfile) error {
	_, err := s.db.Exec(ctx, `INSERT INTO company_profiles
		(symbol, name, sector, industry, description, market_cap, pe_ratio, dividend_yield, updated_at)
		VALUES (@symbol, @name, @sector, @industry, @description, @market_cap, @pe_ratio, @dividend_yield, @updated_at)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name, sector = EXCLUDED.sector, industry = EXCLUDED.industry,
			description = EXCLUDED.description, market_cap = EXCLUDED.market_cap,
			pe_ratio = EXCLUDED.pe_ratio, dividend_yield = EXCLUDED.dividend_yield,
			updated_at = EXCLUDED.updated_at`,
		pgx.NamedArgs{
			"symbol":         p.Symbol,
			"name":           p.Name,
			"sector":         p.Sector,
			"industry":       p.Industry,
			"description":    p.Description,
			"market_cap":     p.MarketCap,
			"pe_ratio":       p.PERatio,
			"dividend_yield": p.DividendYield,
			"updated_at":     p.UpdatedAt,
		})
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.Symbol, err)
	}
	return nil
}

type closeRow struct {
	Date  time.Time `db:"date"`
	Close float64   `db:"close"`
}

func (s *PostgresStore) ClosingPrices(ctx context.Context, symbol string) ([]model.ClosePoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT date, close FROM stock_prices WHERE symbol = @symbol ORDER BY date ASC`,
		pgx.NamedArgs{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("unable to query closes: %w", err)
	}
	res, err := pgx.CollectRows(rows, pgx.RowToStructByName[closeRow])
	if err != nil {
		return nil, fmt.Errorf("collect closes: %w", err)
	}
	out := make([]model.ClosePoint, len(res))
	for i, r := range res {
		out[i] = model.ClosePoint{Date: model.TruncateDate(r.Date), Close: r.Close}
	}
	return out, nil
}

func (s *PostgresStore) UpsertForecasts(ctx context.Context, points []model.ForecastPoint) error {
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`INSERT INTO stock_predictions
			(symbol, forecast_date, predicted_price, model_version, created_at)
			VALUES (@symbol, @forecast_date, @predicted_price, @model_version, @created_at)
			ON CONFLICT (symbol, forecast_date) DO UPDATE SET
				predicted_price = EXCLUDED.predicted_price, model_version = EXCLUDED.model_version,
				created_at = EXCLUDED.created_at`,
			pgx.NamedArgs{
				"symbol":          p.Symbol,
				"forecast_date":   p.ForecastDate,
				"predicted_price": p.PredictedPrice,
				"model_version":   p.ModelVersion,
				"created_at":      p.CreatedAt,
			})
	}
	return s.sendBatch(ctx, batch)
}

func (s *PostgresStore) UpsertInsight(ctx context.Context, in *model.AdvisorInsight) error {
	var rsi, ema null.Float
	var trend null.String
	if in.Indicators != nil {
		rsi = in.Indicators.RSI
		ema = null.FloatFrom(in.Indicators.EMA20)
		trend = null.StringFrom(string(in.Indicators.Trend))
	}
	_, err := s.db.Exec(ctx, `INSERT INTO stock_insights
		(symbol, sentiment, score, title, message, rsi, ema_20, trend, updated_at)
		VALUES (@symbol, @sentiment, @score, @title, @message, @rsi, @ema_20, @trend, @updated_at)
		ON CONFLICT (symbol) DO UPDATE SET
			sentiment = EXCLUDED.sentiment, score = EXCLUDED.score, title = EXCLUDED.title,
			message = EXCLUDED.message, rsi = EXCLUDED.rsi, ema_20 = EXCLUDED.ema_20,
			trend = EXCLUDED.trend, updated_at = EXCLUDED.updated_at`,
		pgx.NamedArgs{
			"symbol":     in.Symbol,
			"sentiment":  string(in.Sentiment),
			"score":      in.Score,
			"title":      in.Title,
			"message":    in.Message,
			"rsi":        rsi,
			"ema_20":     ema,
			"trend":      trend,
			"updated_at": in.UpdatedAt,
		})
	if err != nil {
		return fmt.Errorf("upsert insight %s: %w", in.Symbol, err)
	}
	return nil
}

func (s *PostgresStore) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
