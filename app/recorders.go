package app

import (
	"context"
	stderrors "errors"

	"pmbr/domain/trial"
	"pmbr/ports"
)

// MultiRecorder fans one trial out to several sinks. Every sink is attempted; the
// failures are joined.
type MultiRecorder struct {
	sinks []ports.TrialRecorder
}

// NewMultiRecorder creates a recorder over sinks, skipping nils
func NewMultiRecorder(sinks ...ports.TrialRecorder) *MultiRecorder {
	m := &MultiRecorder{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiRecorder) Record(ctx context.Context, result trial.TrialResult, spec trial.TrialSpec) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, result, spec); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
