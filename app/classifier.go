package app

import "pmbr/domain/trial"

// Classify decides a trial's outcome from the observed movements. It is pure; updating
// the running estimate is the caller's job.
//
// The deadline is inclusive. A late response in the wrong direction is reported as
// wrong-direction, since the direction error is the more specific failure.
func Classify(spec trial.TrialSpec, m1, m2 *trial.Movement, goCueMs, deadlineMs int64) trial.TrialResult {
	result := trial.TrialResult{
		TrialIndex: spec.Index,
		GoCueMs:    &goCueMs,
		DeadlineMs: &deadlineMs,
	}
	if m1 != nil {
		onset, dir := m1.OnsetMs, m1.Direction
		result.Movement1OnsetMs = &onset
		result.Movement1Direction = &dir
	}
	if m2 == nil {
		result.Outcome = trial.OutcomeNoResponse
		return result
	}

	onset, dir := m2.OnsetMs, m2.Direction
	result.Movement2OnsetMs = &onset
	result.Movement2Direction = &dir

	if onset < goCueMs {
		result.Outcome = trial.OutcomePremature
		return result
	}

	rt := onset - goCueMs
	result.MeasuredRTMs = &rt

	switch {
	case spec.Direction2 == nil || dir != *spec.Direction2:
		result.Outcome = trial.OutcomeWrongDirection
	case onset > deadlineMs:
		result.Outcome = trial.OutcomeTooSlow
	default:
		result.Outcome = trial.OutcomeCorrect
	}
	return result
}
