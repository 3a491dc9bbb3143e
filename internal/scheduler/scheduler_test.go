package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/jobs"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/runner"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    []jobs.Type
	inFlight map[jobs.Type]bool
	hold     time.Duration
	finished int
}

func (f *fakeRunner) Run(_ context.Context, jt jobs.Type, _ []string, trigger string) (*runner.BatchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, jt)
	busy := f.inFlight[jt]
	f.mu.Unlock()
	if busy {
		return nil, runner.ErrBatchInFlight
	}
	time.Sleep(f.hold)
	f.mu.Lock()
	f.finished++
	f.mu.Unlock()
	return &runner.BatchResult{Job: jt, Trigger: trigger}, nil
}

func (f *fakeRunner) done() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, time.Hour, []jobs.Type{jobs.Ingest}, logger.Nop())
	assert.False(t, s.Running())

	started, err := s.Start()
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, s.Running())

	started, err = s.Start()
	require.NoError(t, err)
	assert.False(t, started, "second Start reports already running")

	assert.True(t, s.Stop())
	assert.False(t, s.Running())
	assert.False(t, s.Stop())

	// restartable after stop
	started, _ = s.Start()
	assert.True(t, started)
	s.Stop()
}

func TestScheduler_TickRunsJobsInOrderAndSkipsInFlight(t *testing.T) {
	fr := &fakeRunner{inFlight: map[jobs.Type]bool{jobs.Ingest: true}}
	s := NewScheduler(context.Background(), fr, time.Hour, []jobs.Type{jobs.Ingest, jobs.Forecast}, logger.Nop())

	s.RunNow()
	assert.Equal(t, []jobs.Type{jobs.Ingest, jobs.Forecast}, fr.calls)
}

func TestScheduler_CancelledContextStopsTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fr := &fakeRunner{}
	NewScheduler(ctx, fr, time.Hour, []jobs.Type{jobs.Ingest}, logger.Nop()).RunNow()
	assert.Zero(t, fr.count())
}

func TestScheduler_FiresAndStopWaitsForTick(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real tick")
	}
	fr := &fakeRunner{hold: 300 * time.Millisecond}
	s := NewScheduler(context.Background(), fr, time.Second, []jobs.Type{jobs.Forecast}, logger.Nop())
	_, err := s.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fr.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
	start := time.Now()
	s.Stop()
	// the in-flight tick held the runner for 300ms; Stop returned only after it finished
	assert.Less(t, time.Since(start), 2*time.Second)
	n := fr.count()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, n, fr.count(), "no ticks after Stop")
}

func TestScheduler_StopWaitsForBackgroundTick(t *testing.T) {
	fr := &fakeRunner{hold: 300 * time.Millisecond}
	s := NewScheduler(context.Background(), fr, time.Hour, []jobs.Type{jobs.Ingest}, logger.Nop())

	s.RunInBackground()
	require.Eventually(t, func() bool { return fr.count() == 1 }, time.Second, 5*time.Millisecond)

	assert.False(t, s.Stop(), "periodic ticks were never started")
	assert.Equal(t, 1, fr.done(), "Stop returned before the tick finished")
}

func TestScheduler_StopWaitsForBackgroundTickWhileRunning(t *testing.T) {
	fr := &fakeRunner{hold: 300 * time.Millisecond}
	s := NewScheduler(context.Background(), fr, time.Hour, []jobs.Type{jobs.Ingest, jobs.Forecast}, logger.Nop())
	_, err := s.Start()
	require.NoError(t, err)

	s.RunInBackground()
	require.Eventually(t, func() bool { return fr.count() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, s.Stop())
	assert.Equal(t, 2, fr.done())
}
