package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes pipeline metrics through Prometheus. A nil *Recorder is a no-op.
type Recorder struct {
	batchRuns     *prometheus.CounterVec
	tickerResults *prometheus.CounterVec
	rowsUpserted  *prometheus.CounterVec
	stepFailures  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchRunning  *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		batchRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_batch_runs_total",
				Help: "Batches started, by job and trigger",
			},
			[]string{"job", "trigger"},
		),
		tickerResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_ticker_results_total",
				Help: "Per-ticker outcomes, by job and outcome",
			},
			[]string{"job", "outcome"},
		),
		rowsUpserted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_rows_upserted_total",
				Help: "Rows written to the store, by table",
			},
			[]string{"table"},
		),
		stepFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_step_failures_total",
				Help: "Failed sub-steps (price batch, profile, forecast, insight)",
			},
			[]string{"step"},
		),
		batchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_batch_duration_seconds",
				Help:    "Wall time of a full batch",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"job"},
		),
		batchRunning: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_batch_running",
				Help: "1 while a batch of the job type is in flight",
			},
			[]string{"job"},
		),
	}
}

func (r *Recorder) BatchStarted(job, trigger string) {
	if r == nil {
		return
	}
	r.batchRuns.WithLabelValues(job, trigger).Inc()
	r.batchRunning.WithLabelValues(job).Set(1)
}

func (r *Recorder) BatchFinished(job string, took time.Duration) {
	if r == nil {
		return
	}
	r.batchDuration.WithLabelValues(job).Observe(took.Seconds())
	r.batchRunning.WithLabelValues(job).Set(0)
}

// TickerResult records a ticker outcome: "success" or "failure".
func (r *Recorder) TickerResult(job, outcome string) {
	if r == nil {
		return
	}
	r.tickerResults.WithLabelValues(job, outcome).Inc()
}

func (r *Recorder) RowsUpserted(table string, n int) {
	if r == nil {
		return
	}
	r.rowsUpserted.WithLabelValues(table).Add(float64(n))
}

func (r *Recorder) StepFailed(step string) {
	if r == nil {
		return
	}
	r.stepFailures.WithLabelValues(step).Inc()
}
