package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmbr/domain/trial"
)

func TestClassify(t *testing.T) {
	left := trial.DirectionLeft
	right := trial.DirectionRight
	ipsi := trial.TrialSpec{Index: 3, Condition: trial.ConditionIpsilateral, Direction1: left.Ptr(), Direction2: left.Ptr()}
	catch := trial.TrialSpec{Index: 4, Condition: trial.ConditionCatch, Direction1: left.Ptr()}
	m1 := &trial.Movement{Device: 0, Direction: left, OnsetMs: 1000}

	tests := []struct {
		name   string
		spec   trial.TrialSpec
		m2     *trial.Movement
		want   trial.Outcome
		wantRT *int64
	}{
		{"no movement", ipsi, nil, trial.OutcomeNoResponse, nil},
		{"before go-cue", ipsi, &trial.Movement{Device: 1, Direction: left, OnsetMs: 1400}, trial.OutcomePremature, nil},
		{"at go-cue", ipsi, &trial.Movement{Device: 1, Direction: left, OnsetMs: 1500}, trial.OutcomeCorrect, ptr(0)},
		{"at deadline", ipsi, &trial.Movement{Device: 1, Direction: left, OnsetMs: 2500}, trial.OutcomeCorrect, ptr(1000)},
		{"after deadline", ipsi, &trial.Movement{Device: 1, Direction: left, OnsetMs: 2501}, trial.OutcomeTooSlow, ptr(1001)},
		{"wrong way", ipsi, &trial.Movement{Device: 1, Direction: right, OnsetMs: 1800}, trial.OutcomeWrongDirection, ptr(300)},
		{"wrong way and late", ipsi, &trial.Movement{Device: 1, Direction: right, OnsetMs: 2700}, trial.OutcomeWrongDirection, ptr(1200)},
		{"catch withheld", catch, nil, trial.OutcomeNoResponse, nil},
		{"catch answered", catch, &trial.Movement{Device: 1, Direction: left, OnsetMs: 1700}, trial.OutcomeWrongDirection, ptr(200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.spec, m1, tt.m2, 1500, 2500)
			assert.Equal(t, tt.want, got.Outcome)
			assert.Equal(t, tt.spec.Index, got.TrialIndex)
			assert.Equal(t, tt.wantRT, got.MeasuredRTMs)
			require.NotNil(t, got.Movement1OnsetMs)
			assert.Equal(t, int64(1000), *got.Movement1OnsetMs)
		})
	}
}

func TestClassify_IsPure(t *testing.T) {
	spec := trial.TrialSpec{Condition: trial.ConditionSingle, Direction2: trial.DirectionUp.Ptr()}
	m2 := &trial.Movement{Device: 1, Direction: trial.DirectionUp, OnsetMs: 900}

	a := Classify(spec, nil, m2, 600, 1600)
	b := Classify(spec, nil, m2, 600, 1600)
	assert.Equal(t, a, b)
	assert.Nil(t, a.Movement1OnsetMs)
	assert.Equal(t, trial.OutcomeCorrect, a.Outcome)
}

func ptr(v int64) *int64 { return &v }
