package ports

import "pmbr/domain/trial"

// DisplayPort draws on the participant screen. Calls are fire-and-forget and take
// effect before the next poll.
type DisplayPort interface {
	ShowFixation()
	// ShowPrime instructs the priming movement
	ShowPrime(direction trial.Direction)
	// ShowCue presents the go-cue; nil is the no-go cue of a catch trial
	ShowCue(direction *trial.Direction)
	ClearScreen()
	ShowFeedback(outcome trial.Outcome)
	ShowCountdown(secondsLeft int, label string)
	ShowBlockSummary(block int, meanRTMs float64)
}
