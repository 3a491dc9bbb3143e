// Package forecast projects close prices with Holt's linear (additive trend,
// no seasonality) exponential smoothing.
package forecast

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

const (
	// MinObservations is the shortest series a model is fitted on.
	MinObservations = 10
	// DefaultHorizon is the number of steps projected when none is given.
	DefaultHorizon = 7
)

// Model is a fitted Holt model.
type Model struct {
	Alpha float64 // level smoothing
	Beta  float64 // trend smoothing
	Level float64 // level after the last observation
	Trend float64 // trend after the last observation
	SSE   float64
}

// Forecast fits a model to closes and returns horizon point forecasts.
// It returns nil when the series is shorter than MinObservations or the fit
// fails; an unavailable forecast is not an error.
func Forecast(closes []float64, horizon int) []float64 {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	m, ok := Fit(closes)
	if !ok {
		return nil
	}
	return m.Project(horizon)
}

// Project returns the next h values l + k*b for k = 1..h.
func (m *Model) Project(h int) []float64 {
	out := make([]float64, h)
	for k := 1; k <= h; k++ {
		out[k-1] = m.Level + float64(k)*m.Trend
	}
	return out
}

// Fit estimates alpha, beta and the initial level and trend by minimising the
// one-step-ahead squared error. The series is scaled by its first value so the
// optimiser works on unit-sized numbers.
func Fit(closes []float64) (*Model, bool) {
	if len(closes) < MinObservations {
		return nil, false
	}
	scale := math.Abs(closes[0])
	if scale == 0 {
		scale = 1
	}
	y := make([]float64, len(closes))
	for i, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, false
		}
		y[i] = c / scale
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			alpha, beta := smoothing(x)
			_, _, sse := run(y, alpha, beta, x[2], x[3])
			return sse
		},
	}
	// alpha 0.5, beta 0.05; the initial state sits one step before y[0]
	b0 := y[1] - y[0]
	x0 := []float64{0, logit(0.1), y[0] - b0, b0}
	settings := &optimize.Settings{
		MajorIterations: 5000,
		FuncEvaluations: 20000,
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil || result == nil {
		return nil, false
	}

	alpha, beta := smoothing(result.X)
	level, trend, sse := run(y, alpha, beta, result.X[2], result.X[3])
	m := &Model{
		Alpha: alpha,
		Beta:  beta,
		Level: level * scale,
		Trend: trend * scale,
		SSE:   sse * scale * scale,
	}
	if !finite(m.Level) || !finite(m.Trend) {
		return nil, false
	}
	return m, true
}

// run filters y and returns the final level, trend and the sum of squared
// one-step errors.
func run(y []float64, alpha, beta, l0, b0 float64) (level, trend, sse float64) {
	level, trend = l0, b0
	for _, v := range y {
		pred := level + trend
		e := v - pred
		sse += e * e
		prev := level
		level = alpha*v + (1-alpha)*pred
		trend = beta*(level-prev) + (1-beta)*trend
	}
	return level, trend, sse
}

// smoothing maps unconstrained parameters to 0 < beta < alpha < 1.
func smoothing(x []float64) (alpha, beta float64) {
	alpha = sigmoid(x[0])
	beta = alpha * sigmoid(x[1])
	return alpha, beta
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
