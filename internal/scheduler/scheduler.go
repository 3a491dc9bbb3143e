package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"MarketPulse/internal/jobs"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/runner"
)

// BatchRunner is the part of runner.Runner the scheduler drives.
type BatchRunner interface {
	Run(ctx context.Context, jt jobs.Type, symbols []string, trigger string) (*runner.BatchResult, error)
}

// Scheduler re-runs full batches at a fixed interval until stopped.
type Scheduler struct {
	ctx      context.Context
	runner   BatchRunner
	jobs     []jobs.Type
	interval time.Duration
	log      *logger.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	ticks sync.WaitGroup
}

// NewScheduler creates a stopped Scheduler. Each tick runs jobTypes in order.
func NewScheduler(ctx context.Context, r BatchRunner, interval time.Duration, jobTypes []jobs.Type, log *logger.Logger) *Scheduler {
	return &Scheduler{
		ctx:      ctx,
		runner:   r,
		jobs:     jobTypes,
		interval: interval,
		log:      log.With(logger.String("component", "scheduler")),
	}
}

// Start begins periodic ticks. It reports false if the scheduler was already running.
func (s *Scheduler) Start() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return false, nil
	}

	cl := s.log.Cron()
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc("@every "+s.interval.String(), s.RunNow); err != nil {
		return false, fmt.Errorf("register batch task: %w", err)
	}
	c.Start()
	s.cron = c
	s.log.Info("scheduler started", logger.String("interval", s.interval.String()))
	return true, nil
}

// Stop halts future ticks and waits for any running tick to finish, including
// one started by RunNow or RunInBackground. It reports false if periodic ticks
// were not active.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	s.ticks.Wait()
	if c == nil {
		return false
	}
	s.log.Info("scheduler stopped")
	return true
}

// Running reports whether periodic ticks are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// RunNow executes one tick synchronously.
func (s *Scheduler) RunNow() {
	s.ticks.Add(1)
	defer s.ticks.Done()
	s.tick()
}

// RunInBackground starts one tick without waiting for it (RUN_ON_START).
// Stop waits for it like any other tick.
func (s *Scheduler) RunInBackground() {
	s.ticks.Add(1)
	go func() {
		defer s.ticks.Done()
		s.tick()
	}()
}

func (s *Scheduler) tick() {
	for _, jt := range s.jobs {
		if s.ctx.Err() != nil {
			return
		}
		res, err := s.runner.Run(s.ctx, jt, nil, runner.TriggerSchedule)
		switch {
		case errors.Is(err, runner.ErrBatchInFlight):
			s.log.Warn("batch still in flight, skipping tick", logger.String("job", string(jt)))
		case err != nil:
			s.log.Error("scheduled batch failed", logger.String("job", string(jt)), logger.Error(err))
		default:
			s.log.Info("scheduled batch done",
				logger.String("job", string(jt)), logger.Int("succeeded", res.Succeeded), logger.Int("failed", res.Failed))
		}
	}
}
