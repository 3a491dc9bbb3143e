package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"MarketPulse/internal/jobs"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/metrics"
	"MarketPulse/internal/universe"
)

// StatusSuccess is the per-ticker outcome of a ticker that did not fail.
const StatusSuccess = "Success"

var (
	// ErrBatchInFlight is returned when a batch of the same job type is running.
	ErrBatchInFlight = errors.New("batch already running")
	ErrUnknownJob    = errors.New("unknown job")
)

// Trigger labels who started a batch.
const (
	TriggerManual   = "manual"
	TriggerAsync    = "async"
	TriggerSchedule = "schedule"
)

// BatchResult is the outcome of one pass over the universe.
type BatchResult struct {
	Job        jobs.Type               `json:"job"`
	Trigger    string                  `json:"trigger"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Details    map[string]string       `json:"details"`
	Steps      map[string]*jobs.Report `json:"steps"`
	Succeeded  int                     `json:"succeeded"`
	Failed     int                     `json:"failed"`
}

// Summary is the short form of a finished batch kept for status queries.
type Summary struct {
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Tickers    int       `json:"tickers"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// Status describes a job type's batch state.
type Status struct {
	Job       jobs.Type  `json:"job"`
	Running   bool       `json:"running"`
	Trigger   string     `json:"trigger,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Last      *Summary   `json:"last,omitempty"`
}

// Notifier receives every finished batch.
type Notifier interface {
	NotifyBatch(ctx context.Context, res *BatchResult) error
}

// Runner drives jobs over the ticker universe, one ticker at a time.
type Runner struct {
	universe *universe.Universe
	jobs     map[jobs.Type]jobs.Job
	delay    time.Duration
	guard    Guard
	log      *logger.Logger
	metrics  *metrics.Recorder
	notifier Notifier

	mu     sync.Mutex
	status map[jobs.Type]*Status
	wg     sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithDelay sets the minimum spacing between the start of consecutive tickers.
func WithDelay(d time.Duration) Option { return func(r *Runner) { r.delay = d } }

func WithGuard(g Guard) Option { return func(r *Runner) { r.guard = g } }

func WithMetrics(m *metrics.Recorder) Option { return func(r *Runner) { r.metrics = m } }

func WithNotifier(n Notifier) Option { return func(r *Runner) { r.notifier = n } }

// New creates a Runner for the given jobs.
func New(u *universe.Universe, log *logger.Logger, js []jobs.Job, opts ...Option) *Runner {
	r := &Runner{
		universe: u,
		jobs:     make(map[jobs.Type]jobs.Job, len(js)),
		guard:    NewMemoryGuard(),
		log:      log,
		status:   make(map[jobs.Type]*Status, len(js)),
	}
	for _, j := range js {
		r.jobs[j.Type()] = j
		r.status[j.Type()] = &Status{Job: j.Type()}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Universe returns the tracked universe.
func (r *Runner) Universe() *universe.Universe { return r.universe }

// Run executes a batch and blocks until it completes. symbols restricts the
// batch to a subset of the universe; nil means all of it.
func (r *Runner) Run(ctx context.Context, jt jobs.Type, symbols []string, trigger string) (*BatchResult, error) {
	job, release, err := r.begin(ctx, jt, trigger)
	if err != nil {
		return nil, err
	}
	defer release()
	// A disconnecting caller must not cut a batch short.
	return r.execute(context.WithoutCancel(ctx), job, symbols, trigger), nil
}

// Submit starts a batch in the background and returns once it holds the lock.
func (r *Runner) Submit(ctx context.Context, jt jobs.Type, symbols []string) error {
	job, release, err := r.begin(ctx, jt, TriggerAsync)
	if err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer release()
		r.execute(bg, job, symbols, TriggerAsync)
	}()
	return nil
}

// Wait blocks until background batches finish or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the state of one job type.
func (r *Runner) Status(jt jobs.Type) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.status[jt]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownJob, jt)
	}
	return *st, nil
}

// Statuses returns the state of every job type in a stable order.
func (r *Runner) Statuses() []Status {
	out := make([]Status, 0, len(r.jobs))
	for _, jt := range []jobs.Type{jobs.Ingest, jobs.Forecast} {
		if st, err := r.Status(jt); err == nil {
			out = append(out, st)
		}
	}
	return out
}

func (r *Runner) begin(ctx context.Context, jt jobs.Type, trigger string) (jobs.Job, func(), error) {
	job, ok := r.jobs[jt]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownJob, jt)
	}
	unlock, ok, err := r.guard.TryAcquire(ctx, "batch:"+string(jt))
	if err != nil {
		return nil, nil, fmt.Errorf("acquire %s lock: %w", jt, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrBatchInFlight, jt)
	}

	now := time.Now()
	r.mu.Lock()
	st := r.status[jt]
	st.Running, st.Trigger, st.StartedAt = true, trigger, &now
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		st.Running, st.Trigger, st.StartedAt = false, "", nil
		r.mu.Unlock()
		unlock()
	}
	return job, release, nil
}

func (r *Runner) execute(ctx context.Context, job jobs.Job, symbols []string, trigger string) *BatchResult {
	jt := job.Type()
	if symbols == nil {
		symbols = r.universe.Symbols()
	}
	res := &BatchResult{
		Job:       jt,
		Trigger:   trigger,
		StartedAt: time.Now(),
		Details:   make(map[string]string, len(symbols)),
		Steps:     make(map[string]*jobs.Report, len(symbols)),
	}
	log := r.log.With(logger.String("job", string(jt)), logger.String("trigger", trigger))
	log.Info("batch started", logger.Int("tickers", len(symbols)))
	r.metrics.BatchStarted(string(jt), trigger)

	limit := rate.Inf
	if r.delay > 0 {
		limit = rate.Every(r.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for _, symbol := range symbols {
		if err := limiter.Wait(ctx); err != nil {
			res.Details[symbol] = err.Error()
			res.Failed++
			continue
		}
		report, err := runOne(ctx, job, symbol)
		if report != nil {
			res.Steps[symbol] = report
		}
		if err != nil {
			log.Error("ticker failed", logger.String("symbol", symbol), logger.Error(err))
			res.Details[symbol] = err.Error()
			res.Failed++
			r.metrics.TickerResult(string(jt), "failure")
			continue
		}
		res.Details[symbol] = StatusSuccess
		res.Succeeded++
		r.metrics.TickerResult(string(jt), "success")
	}

	res.FinishedAt = time.Now()
	took := res.FinishedAt.Sub(res.StartedAt)
	r.metrics.BatchFinished(string(jt), took)
	log.Info("batch finished",
		logger.Int("succeeded", res.Succeeded), logger.Int("failed", res.Failed), logger.Duration("took_ms", took))

	r.mu.Lock()
	r.status[jt].Last = &Summary{
		Trigger:    trigger,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Tickers:    len(symbols),
		Succeeded:  res.Succeeded,
		Failed:     res.Failed,
	}
	r.mu.Unlock()

	if r.notifier != nil {
		if err := r.notifier.NotifyBatch(ctx, res); err != nil {
			log.Warn("batch notification failed", logger.Error(err))
		}
	}
	return res
}

// runOne isolates a ticker so a panic in one job cannot take down the batch.
func runOne(ctx context.Context, job jobs.Job, symbol string) (report *jobs.Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			report, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return job.Run(ctx, symbol)
}
