// Package jobs holds the per-ticker units of work driven by the batch runner.
package jobs

import (
	"context"
	"fmt"
)

// Type names a job kind. Batches are single-flight per Type.
type Type string

const (
	Ingest   Type = "ingest"
	Forecast Type = "forecast"
)

// ParseType validates a job name.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Ingest, Forecast:
		return t, nil
	default:
		return "", fmt.Errorf("unknown job %q", s)
	}
}

// Job processes one ticker. A returned error fails the ticker; sub-step
// failures are logged and reported without failing it.
type Job interface {
	Type() Type
	Run(ctx context.Context, symbol string) (*Report, error)
}

// StepResult is the outcome of one write step for a ticker.
type StepResult struct {
	Step  string `json:"step"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// Report collects step outcomes for a ticker.
type Report struct {
	Steps   []StepResult `json:"steps,omitempty"`
	Skipped string       `json:"skipped,omitempty"` // reason nothing was written
}

func (r *Report) add(step string, rows int, err error) {
	res := StepResult{Step: step, Rows: rows}
	if err != nil {
		res.Error = err.Error()
	}
	r.Steps = append(r.Steps, res)
}

// Failures counts failed steps.
func (r *Report) Failures() int {
	n := 0
	for _, s := range r.Steps {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
