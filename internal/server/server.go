// Package server exposes the batch runner and scheduler over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"MarketPulse/internal/logger"
)

// Option configures Server.
type Option func(*Config)

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Gatherer     prometheus.Gatherer
}

// Server wraps an Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    *logger.Logger
}

// NewServer creates the HTTP server and registers the handler's routes.
func NewServer(h *Handler, log *logger.Logger, opts ...Option) *Server {
	cfg := &Config{
		Host:        "0.0.0.0",
		Port:        8080,
		Gatherer:    prometheus.DefaultGatherer,
		ReadTimeout: 10 * time.Second,
		// Sync batches over the full universe run for minutes.
		WriteTimeout: 0,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(Recover(log))
	e.Use(RequestLogging(log))

	if h != nil {
		h.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	return &Server{echo: e, config: cfg, log: log.With(logger.String("component", "http"))}
}

// Start listens in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	go func() {
		s.log.Info("listening", logger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logger.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo { return s.echo }

// WithHost sets the listen host.
func WithHost(host string) Option {
	return func(c *Config) { c.Host = host }
}

// WithPort sets the listen port.
func WithPort(port int) Option {
	return func(c *Config) { c.Port = port }
}

// WithTimeouts sets read/write timeouts. Zero disables a timeout.
func WithTimeouts(read, write time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = read
		c.WriteTimeout = write
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *Config) { c.Gatherer = g }
}
