package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/guregu/null/v6"
	_ "modernc.org/sqlite"

	"MarketPulse/internal/model"
)

// SQLiteStore persists the dataset to a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database file and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL so dashboards can read while a batch writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_prices (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL,
			high   REAL,
			low    REAL,
			close  REAL NOT NULL,
			volume INTEGER,
			sma_20 REAL,
			ema_20 REAL,
			rsi_14 REAL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS company_profiles (
			symbol         TEXT PRIMARY KEY,
			name           TEXT,
			sector         TEXT,
			industry       TEXT,
			description    TEXT,
			market_cap     INTEGER,
			pe_ratio       REAL,
			dividend_yield REAL,
			updated_at     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_predictions (
			symbol          TEXT NOT NULL,
			forecast_date   TEXT NOT NULL,
			predicted_price REAL NOT NULL,
			model_version   TEXT NOT NULL,
			created_at      INTEGER NOT NULL,
			PRIMARY KEY (symbol, forecast_date)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_insights (
			symbol     TEXT PRIMARY KEY,
			sentiment  TEXT NOT NULL,
			score      INTEGER NOT NULL,
			title      TEXT,
			message    TEXT,
			rsi        REAL,
			ema_20     REAL,
			trend      TEXT,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

// inTx runs fn in a transaction; every upsert batch commits or rolls back as a unit.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpsertPrices(ctx context.Context, bars []model.PriceBar) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO stock_prices
			(symbol, date, open, high, low, close, volume, sma_20, ema_20, rsi_14)
			VALUES (?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close,
				volume=excluded.volume, sma_20=excluded.sma_20, ema_20=excluded.ema_20, rsi_14=excluded.rsi_14`)
		if err != nil {
			return fmt.Errorf("prepare price upsert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx,
				b.Symbol, b.Date.Format(model.DateLayout), b.Open, b.High, b.Low, b.Close, b.Volume,
				b.SMA20, b.EMA20, b.RSI14,
			); err != nil {
				return fmt.Errorf("upsert price %s %s: %w", b.Symbol, b.Date.Format(model.DateLayout), err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *model.CompanyProfile) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO company_profiles
			(symbol, name, sector, industry, description, market_cap, pe_ratio, dividend_yield, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?)
			ON CONFLICT(symbol) DO UPDATE SET
				name=excluded.name, sector=excluded.sector, industry=excluded.industry,
				description=excluded.description, market_cap=excluded.market_cap,
				pe_ratio=excluded.pe_ratio, dividend_yield=excluded.dividend_yield,
				updated_at=excluded.updated_at`,
			p.Symbol, p.Name, p.Sector, p.Industry, p.Description,
			p.MarketCap, p.PERatio, p.DividendYield, p.UpdatedAt.Unix(),
		)
		return err
	})
}

func (s *SQLiteStore) ClosingPrices(ctx context.Context, symbol string) ([]model.ClosePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, close FROM stock_prices WHERE symbol = ? ORDER BY date ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query closes: %w", err)
	}
	defer rows.Close()

	var out []model.ClosePoint
	for rows.Next() {
		var (
			date string
			cp   model.ClosePoint
		)
		if err := rows.Scan(&date, &cp.Close); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		if cp.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertForecasts(ctx context.Context, points []model.ForecastPoint) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range points {
			if _, err := tx.ExecContext(ctx, `INSERT INTO stock_predictions
				(symbol, forecast_date, predicted_price, model_version, created_at)
				VALUES (?,?,?,?,?)
				ON CONFLICT(symbol, forecast_date) DO UPDATE SET
					predicted_price=excluded.predicted_price, model_version=excluded.model_version,
					created_at=excluded.created_at`,
				p.Symbol, p.ForecastDate.Format(model.DateLayout), p.PredictedPrice, p.ModelVersion, p.CreatedAt.Unix(),
			); err != nil {
				return fmt.Errorf("upsert forecast %s: %w", p.Symbol, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpsertInsight(ctx context.Context, in *model.AdvisorInsight) error {
	var rsi, ema null.Float
	var trend null.String
	if in.Indicators != nil {
		rsi = in.Indicators.RSI
		ema = null.FloatFrom(in.Indicators.EMA20)
		trend = null.StringFrom(string(in.Indicators.Trend))
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO stock_insights
			(symbol, sentiment, score, title, message, rsi, ema_20, trend, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?)
			ON CONFLICT(symbol) DO UPDATE SET
				sentiment=excluded.sentiment, score=excluded.score, title=excluded.title,
				message=excluded.message, rsi=excluded.rsi, ema_20=excluded.ema_20,
				trend=excluded.trend, updated_at=excluded.updated_at`,
			in.Symbol, string(in.Sentiment), in.Score, in.Title, in.Message, rsi, ema, trend, in.UpdatedAt.Unix(),
		)
		return err
	})
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }
