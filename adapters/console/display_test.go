package console

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"pmbr/domain/trial"
	"pmbr/internal"
	"pmbr/ports"
)

func TestFeedbackText(t *testing.T) {
	tests := []struct {
		outcome trial.Outcome
		want    string
	}{
		{trial.OutcomeCorrect, "Correct"},
		{trial.OutcomeTooSlow, "Too slow"},
		{trial.OutcomeWrongDirection, "Wrong direction"},
		{trial.OutcomePremature, "Too early"},
		{trial.OutcomeNoResponse, "No response"},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.want, feedbackText(tt.outcome))
		})
	}
}

func TestDisplayAndTrigger_DoNotPanic(t *testing.T) {
	logger := internal.NewNopLogger()
	d := NewDisplay(logger)
	d.ShowFixation()
	d.ShowPrime(trial.DirectionLeft)
	d.ShowCue(nil)
	d.ShowCue(trial.DirectionRight.Ptr())
	d.ClearScreen()
	d.ShowFeedback(trial.OutcomeCorrect)
	d.ShowCountdown(3, "Break")
	d.ShowBlockSummary(1, math.NaN())
	d.ShowBlockSummary(2, 312.5)

	tr := NewTrigger(logger)
	assert.NoError(t, tr.Send(ports.TriggerSessionStart))
	assert.NoError(t, tr.Send(ports.TriggerBlockEnd))
	assert.Equal(t, 2, tr.Sent())
}
