package console

import (
	"math"

	"pmbr/domain/trial"
	"pmbr/internal"
	"pmbr/ports"
)

// Display renders participant-screen commands as log lines. It stands in for the
// stimulus window when the task runs headless or against the simulator.
type Display struct {
	logger *internal.Logger
}

// NewDisplay creates a display writing to logger
func NewDisplay(logger *internal.Logger) *Display {
	return &Display{logger: logger}
}

func (d *Display) ShowFixation() { d.logger.Trace("[screen] +") }

func (d *Display) ShowPrime(direction trial.Direction) {
	d.logger.Trace("[screen] PRESS %s", direction)
}

func (d *Display) ShowCue(direction *trial.Direction) {
	if direction == nil {
		d.logger.Trace("[screen] NO-GO")
		return
	}
	d.logger.Trace("[screen] GO %s", *direction)
}

func (d *Display) ClearScreen() { d.logger.Trace("[screen] (blank)") }

func (d *Display) ShowFeedback(outcome trial.Outcome) {
	d.logger.Debug("[screen] %s", feedbackText(outcome))
}

func (d *Display) ShowCountdown(secondsLeft int, label string) {
	d.logger.Info("[screen] %s: %d", label, secondsLeft)
}

func (d *Display) ShowBlockSummary(block int, meanRTMs float64) {
	if math.IsNaN(meanRTMs) {
		d.logger.Info("[screen] block %d complete, no correct responses", block)
		return
	}
	d.logger.Info("[screen] block %d complete, mean reaction time %.0f ms", block, meanRTMs)
}

func feedbackText(outcome trial.Outcome) string {
	switch outcome {
	case trial.OutcomeCorrect:
		return "Correct"
	case trial.OutcomeTooSlow:
		return "Too slow"
	case trial.OutcomeWrongDirection:
		return "Wrong direction"
	case trial.OutcomePremature:
		return "Too early"
	default:
		return "No response"
	}
}

// Trigger logs event codes in place of a parallel-port marker line.
type Trigger struct {
	logger *internal.Logger
	sent   int
}

// NewTrigger creates a trigger writing to logger
func NewTrigger(logger *internal.Logger) *Trigger {
	return &Trigger{logger: logger}
}

func (t *Trigger) Send(code ports.TriggerCode) error {
	t.sent++
	t.logger.Debug("[trigger] %d", code)
	return nil
}

// Sent is the number of codes sent so far
func (t *Trigger) Sent() int { return t.sent }
