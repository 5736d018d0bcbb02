package ports

import (
	"context"

	"pmbr/domain/trial"
)

// TrialRecorder receives exactly one call per resolved trial, in trial order.
// It owns durability and formatting; an error is reported as a WriteError.
type TrialRecorder interface {
	Record(ctx context.Context, result trial.TrialResult, spec trial.TrialSpec) error
}
