package app

import (
	"math"

	"github.com/montanaflynn/stats"

	"pmbr/domain/trial"
)

// RunningEstimate tracks the participant's probe reaction time over a sliding window of
// the most recent valid responses. It is created at session start and never reset
// mid-session.
type RunningEstimate struct {
	window     int
	minSamples int
	samples    []float64

	meanRT     float64
	varianceRT float64
	updates    int
}

// NewRunningEstimate creates an empty estimate
func NewRunningEstimate(window, minSamples int) *RunningEstimate {
	if window < 2 {
		window = 2
	}
	if minSamples < 1 {
		minSamples = 1
	}
	return &RunningEstimate{
		window:     window,
		minSamples: minSamples,
		samples:    make([]float64, 0, window),
	}
}

// Update folds a resolved trial into the estimate. Only trials with a measured probe
// RT count, and catch trials are left out because their response was not cued.
// It reports whether the estimate changed.
func (e *RunningEstimate) Update(spec trial.TrialSpec, result trial.TrialResult) bool {
	if !result.Outcome.HasMeasuredRT() || result.MeasuredRTMs == nil {
		return false
	}
	if spec.Condition == trial.ConditionCatch {
		return false
	}
	e.Observe(float64(*result.MeasuredRTMs))
	return true
}

// Observe adds one reaction time in milliseconds
func (e *RunningEstimate) Observe(rtMs float64) {
	e.samples = append(e.samples, rtMs)
	if len(e.samples) > e.window {
		e.samples = e.samples[len(e.samples)-e.window:]
	}
	e.updates++

	e.meanRT, _ = stats.Mean(e.samples)
	if len(e.samples) < 2 {
		e.varianceRT = 0
		return
	}
	e.varianceRT, _ = stats.SampleVariance(e.samples)
}

// MeanRT is the windowed mean probe RT in milliseconds
func (e *RunningEstimate) MeanRT() float64 { return e.meanRT }

// VarianceRT is the windowed sample variance of probe RT
func (e *RunningEstimate) VarianceRT() float64 { return e.varianceRT }

// StdDevRT is the square root of VarianceRT
func (e *RunningEstimate) StdDevRT() float64 { return math.Sqrt(e.varianceRT) }

// Count is the number of samples currently in the window
func (e *RunningEstimate) Count() int { return len(e.samples) }

// Updates is the number of trials folded in since session start
func (e *RunningEstimate) Updates() int { return e.updates }

// Ready reports whether enough samples exist to drive adaptive timing
func (e *RunningEstimate) Ready() bool { return len(e.samples) >= e.minSamples }

// EstimateSnapshot is a copy of the estimate for summaries and monitoring
type EstimateSnapshot struct {
	MeanRT     float64 `json:"mean_rt_ms"`
	VarianceRT float64 `json:"variance_rt"`
	Samples    int     `json:"samples"`
	Updates    int     `json:"updates"`
}

// Snapshot copies the current state
func (e *RunningEstimate) Snapshot() EstimateSnapshot {
	return EstimateSnapshot{MeanRT: e.meanRT, VarianceRT: e.varianceRT, Samples: len(e.samples), Updates: e.updates}
}
