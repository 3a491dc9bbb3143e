package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	} `yaml:"server"`
	Database struct {
		Driver     string `yaml:"driver" default:"sqlite" validate:"oneof=postgres sqlite memory"`
		URL        string `yaml:"url" validate:"required_if=Driver postgres"`
		SQLitePath string `yaml:"sqlite_path" default:"data/market_pulse.db"`
		MaxConns   int32  `yaml:"max_conns" default:"5" validate:"gte=1"`
		BatchSize  int    `yaml:"batch_size" default:"1000" validate:"gte=1,lte=1000"`
	} `yaml:"database"`
	DataSource struct {
		Provider     string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo mock"`
		HistoryRange string        `yaml:"history_range" default:"2y" validate:"oneof=1y 2y 5y 10y max"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"data_source"`
	Universe struct {
		Tickers []string `yaml:"tickers"` // empty means the built-in IDX list
	} `yaml:"universe"`
	Batch struct {
		TickerDelay time.Duration `yaml:"ticker_delay" default:"2s" validate:"gte=0"`
		LockBackend string        `yaml:"lock_backend" default:"memory" validate:"oneof=memory redis"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"2h"`
	} `yaml:"batch"`
	Forecast struct {
		Horizon      int    `yaml:"horizon" default:"7" validate:"gte=1,lte=60"`
		ModelVersion string `yaml:"model_version" default:"v1-holt-linear"`
	} `yaml:"forecast"`
	Scheduler struct {
		Enabled    bool          `yaml:"enabled"`
		Interval   time.Duration `yaml:"interval" default:"24h" validate:"gte=1s"`
		Jobs       []string      `yaml:"jobs" default:"[\"ingest\",\"forecast\"]" validate:"min=1,dive,oneof=ingest forecast"`
		RunOnStart bool          `yaml:"run_on_start"`
	} `yaml:"scheduler"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"required_if=Enabled true"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Enabled  bool   `yaml:"-"`
	} `yaml:"redis"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	cfg.Redis.Enabled = cfg.Batch.LockBackend == "redis"
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"DB_DRIVER":          &c.Database.Driver,
		"DATABASE_URL":       &c.Database.URL,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"DATA_PROVIDER":      &c.DataSource.Provider,
		"LOCK_BACKEND":       &c.Batch.LockBackend,
		"REDIS_ADDR":         &c.Redis.Addr,
		"REDIS_PASSWORD":     &c.Redis.Password,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"HTTPS_PROXY":        &c.Proxy,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	for key, dst := range map[string]*bool{
		"ENABLE_SCHEDULER": &c.Scheduler.Enabled,
		"RUN_ON_START":     &c.Scheduler.RunOnStart,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	for key, dst := range map[string]*time.Duration{
		"SCHEDULE_INTERVAL": &c.Scheduler.Interval,
		"TICKER_DELAY":      &c.Batch.TickerDelay,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	if v := os.Getenv("TICKERS"); v != "" {
		c.Universe.Tickers = strings.Split(v, ",")
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
