package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"MarketPulse/internal/collector"
	"MarketPulse/internal/config"
	"MarketPulse/internal/jobs"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/metrics"
	"MarketPulse/internal/notifier"
	"MarketPulse/internal/runner"
	"MarketPulse/internal/scheduler"
	"MarketPulse/internal/server"
	"MarketPulse/internal/store"
	"MarketPulse/internal/universe"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.Info("MarketPulse worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		Driver:     cfg.Database.Driver,
		URL:        cfg.Database.URL,
		SQLitePath: cfg.Database.SQLitePath,
		MaxConns:   cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	log.Info("store ready", logger.String("driver", cfg.Database.Driver))

	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case "mock":
		fetcher = &collector.MockFetcher{}
	default:
		fetcher = collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.Timeout)
	}
	log.Info("data source", logger.String("provider", fetcher.Name()))

	u := universe.Default()
	if len(cfg.Universe.Tickers) > 0 {
		u = universe.New(cfg.Universe.Tickers)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	opts := []runner.Option{
		runner.WithDelay(cfg.Batch.TickerDelay),
		runner.WithMetrics(m),
	}
	if cfg.Batch.LockBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, runner.WithGuard(runner.NewRedisGuard(rdb, "marketpulse:", cfg.Batch.LockTTL)))
	}
	if cfg.Telegram.BotToken != "" {
		opts = append(opts, runner.WithNotifier(
			notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)))
	}

	r := runner.New(u, log, []jobs.Job{
		jobs.NewIngestionJob(fetcher, st, log, m, cfg.DataSource.HistoryRange, cfg.Database.BatchSize),
		jobs.NewForecastJob(st, log, m, cfg.Forecast.Horizon, cfg.Forecast.ModelVersion),
	}, opts...)

	jobTypes := make([]jobs.Type, 0, len(cfg.Scheduler.Jobs))
	for _, name := range cfg.Scheduler.Jobs {
		jt, err := jobs.ParseType(name)
		if err != nil {
			return err
		}
		jobTypes = append(jobTypes, jt)
	}
	sched := scheduler.NewScheduler(ctx, r, cfg.Scheduler.Interval, jobTypes, log)
	if cfg.Scheduler.Enabled {
		if _, err := sched.Start(); err != nil {
			return err
		}
	}
	if cfg.Scheduler.RunOnStart {
		log.Info("RUN_ON_START enabled, running batches now")
		sched.RunInBackground()
	}

	srv := server.NewServer(server.NewHandler(r, sched, log), log, server.WithPort(cfg.Server.Port))
	if err := srv.Start(); err != nil {
		return err
	}
	log.Info("worker running", logger.Int("tickers", u.Len()), logger.Bool("scheduler", cfg.Scheduler.Enabled))

	<-ctx.Done()
	log.Info("shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("http shutdown", logger.Error(err))
	}
	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn("scheduled batch still running at shutdown")
	}
	if err := r.Wait(shutdownCtx); err != nil {
		log.Warn("background batches still running at shutdown", logger.Error(err))
	}

	log.Info("MarketPulse worker stopped", logger.Duration("grace", cfg.Server.ShutdownTimeout))
	return nil
}
