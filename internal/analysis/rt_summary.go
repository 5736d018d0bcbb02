package analysis

import (
	"math"

	"github.com/montanaflynn/stats"

	"pmbr/domain/trial"
)

// ConditionSummary aggregates one condition's trials
type ConditionSummary struct {
	Condition trial.Condition       `json:"condition"`
	Trials    int                   `json:"trials"`
	Outcomes  map[trial.Outcome]int `json:"outcomes"`
	Accuracy  float64               `json:"accuracy"`
	MeanRT    float64               `json:"mean_rt_ms"`
	MedianRT  float64               `json:"median_rt_ms"`
	SDRT      float64               `json:"sd_rt_ms"`
	P90RT     float64               `json:"p90_rt_ms"`
	RTSamples int                   `json:"rt_samples"`
}

// SessionSummary is the offline view of a session's records
type SessionSummary struct {
	Trials     int                   `json:"trials"`
	Outcomes   map[trial.Outcome]int `json:"outcomes"`
	Accuracy   float64               `json:"accuracy"`
	MeanRT     float64               `json:"mean_rt_ms"`
	Conditions []ConditionSummary    `json:"conditions"`
	Effect     *EffectResult         `json:"pmbr_effect,omitempty"`
}

// CorrectProbeRTs returns measured RTs of correct trials, optionally for one condition
func CorrectProbeRTs(records []trial.Record, condition *trial.Condition) []float64 {
	var rts []float64
	for _, r := range records {
		if r.Outcome != trial.OutcomeCorrect || r.MeasuredRTMs == nil {
			continue
		}
		if condition != nil && r.Condition != *condition {
			continue
		}
		rts = append(rts, float64(*r.MeasuredRTMs))
	}
	return rts
}

// MeanProbeRT is the block feedback value: mean RT of correct probe responses.
// It reports false when there is nothing to average.
func MeanProbeRT(records []trial.Record) (float64, bool) {
	rts := CorrectProbeRTs(records, nil)
	if len(rts) == 0 {
		return math.NaN(), false
	}
	mean, err := stats.Mean(rts)
	if err != nil {
		return math.NaN(), false
	}
	return mean, true
}

// Summarize builds per-condition and session-level summaries, including the PMBR effect
// when both paired conditions have enough correct trials.
func Summarize(records []trial.Record) *SessionSummary {
	summary := &SessionSummary{
		Trials:   len(records),
		Outcomes: countOutcomes(records),
	}
	summary.Accuracy = accuracy(summary.Outcomes, len(records))
	if mean, ok := MeanProbeRT(records); ok {
		summary.MeanRT = mean
	}

	for _, c := range trial.AllConditions() {
		var subset []trial.Record
		for _, r := range records {
			if r.Condition == c {
				subset = append(subset, r)
			}
		}
		if len(subset) == 0 {
			continue
		}
		summary.Conditions = append(summary.Conditions, summarizeCondition(c, subset))
	}

	if effect, err := PMBREffect(records); err == nil {
		summary.Effect = effect
	}
	return summary
}

func summarizeCondition(c trial.Condition, records []trial.Record) ConditionSummary {
	cs := ConditionSummary{
		Condition: c,
		Trials:    len(records),
		Outcomes:  countOutcomes(records),
	}
	if c == trial.ConditionCatch {
		// a withheld response is the correct behaviour on a catch trial
		cs.Accuracy = float64(cs.Outcomes[trial.OutcomeNoResponse]) / float64(len(records))
	} else {
		cs.Accuracy = accuracy(cs.Outcomes, len(records))
	}

	rts := CorrectProbeRTs(records, &c)
	cs.RTSamples = len(rts)
	if len(rts) == 0 {
		return cs
	}
	cs.MeanRT, _ = stats.Mean(rts)
	cs.MedianRT, _ = stats.Median(rts)
	cs.P90RT, _ = stats.Percentile(rts, 90)
	if len(rts) > 1 {
		cs.SDRT, _ = stats.StandardDeviationSample(rts)
	}
	return cs
}

func countOutcomes(records []trial.Record) map[trial.Outcome]int {
	counts := make(map[trial.Outcome]int)
	for _, r := range records {
		counts[r.Outcome]++
	}
	return counts
}

func accuracy(outcomes map[trial.Outcome]int, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(outcomes[trial.OutcomeCorrect]) / float64(n)
}
