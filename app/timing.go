package app

import (
	"fmt"
	"math"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal"
	"pmbr/internal/errors"
	"pmbr/ports"
)

// State is a phase of the per-trial timing state machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingMovement1
	StateCueing
	StateAwaitingMovement2
	StateResolved
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingMovement1:
		return "AWAITING_MOVEMENT_1"
	case StateCueing:
		return "CUEING"
	case StateAwaitingMovement2:
		return "AWAITING_MOVEMENT_2"
	case StateResolved:
		return "RESOLVED"
	default:
		return "UNKNOWN"
	}
}

// TimingController runs one trial at a time through
// Idle -> AwaitingMovement1 -> Cueing -> AwaitingMovement2 -> Resolved.
// It never blocks: the session runner calls Tick once per polled frame and the
// controller either transitions or returns without doing anything.
//
// After the response onset the outcome is fixed, but the trial stays open until the
// responding device reaches full push or MaxMovementTimeMs passes, so movement time can
// be recorded. All times inside a trial are milliseconds relative to the trial start.
type TimingController struct {
	cfg      session.Config
	estimate *RunningEstimate
	detector *OnsetDetector
	display  ports.DisplayPort
	logger   *internal.Logger

	state         State
	spec          trial.TrialSpec
	trialStart    int64
	appliedDelay  int64
	m1            *trial.Movement
	pending       *trial.TrialResult // classified response waiting for its full push
	pendingDevice int
	goCueAt       int64
	goCueMs       int64
	deadlineMs    int64
}

// NewTimingController creates a controller that owns estimate for the session
func NewTimingController(cfg session.Config, estimate *RunningEstimate, display ports.DisplayPort, logger *internal.Logger) *TimingController {
	return &TimingController{
		cfg:      cfg,
		estimate: estimate,
		detector: NewOnsetDetector(cfg.OnsetThreshold, cfg.FullPushThreshold),
		display:  display,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current phase
func (c *TimingController) State() State { return c.state }

// Estimate exposes the running estimate the controller adapts from
func (c *TimingController) Estimate() *RunningEstimate { return c.estimate }

// DelayFor returns the prime-to-cue delay actually used for spec. With adaptive timing on
// and enough samples, the planned delay is shifted by how far the participant's mean RT
// sits from the reference RT, then clamped.
func (c *TimingController) DelayFor(spec trial.TrialSpec) int64 {
	if !c.cfg.AdaptiveTiming || !c.estimate.Ready() {
		return spec.TargetDelayMs
	}
	adjustment := int64(math.Round(c.cfg.AdaptiveGain * (c.estimate.MeanRT() - float64(c.cfg.AdaptiveReferenceRTMs))))
	return clamp(spec.TargetDelayMs+adjustment, c.cfg.MinDelayMs, c.cfg.MaxDelayMs)
}

// ResponseWindow returns the go-cue to deadline interval: mean + k*sd when adaptive and
// ready, the fixed window otherwise.
func (c *TimingController) ResponseWindow() int64 {
	if !c.cfg.AdaptiveTiming || !c.estimate.Ready() {
		return c.cfg.ResponseWindowMs
	}
	w := int64(math.Round(c.estimate.MeanRT() + c.cfg.KDeadlineMultiplier*c.estimate.StdDevRT()))
	if w < c.cfg.MinResponseWindowMs {
		w = c.cfg.MinResponseWindowMs
	}
	return w
}

// Begin starts spec at session time nowMs: Idle -> AwaitingMovement1, or straight to
// Cueing for single-movement trials which have no priming movement.
func (c *TimingController) Begin(spec trial.TrialSpec, nowMs int64) {
	c.spec = spec
	c.trialStart = nowMs
	c.m1 = nil
	c.pending = nil
	c.goCueMs, c.deadlineMs = 0, 0
	c.appliedDelay = c.DelayFor(spec)
	c.detector.Reset()

	if spec.Condition.HasPriming() && spec.Direction1 != nil {
		c.state = StateAwaitingMovement1
		c.display.ShowPrime(*spec.Direction1)
		return
	}
	c.state = StateCueing
	c.goCueAt = c.appliedDelay
	c.display.ShowFixation()
}

// Tick advances the state machine with one polled frame. It returns the result and true
// exactly once per trial, on the transition to Resolved.
func (c *TimingController) Tick(frame ports.Frame, nowMs int64) (trial.TrialResult, bool) {
	if c.state == StateIdle || c.state == StateResolved {
		return trial.TrialResult{}, false
	}

	rel := nowMs - c.trialStart
	onsets := c.detector.Detect(frame)

	if c.pending != nil {
		return c.trackEnd(frame, rel)
	}

	if c.state == StateAwaitingMovement1 {
		switch {
		case len(onsets) > 0:
			c.m1 = c.movement(onsets[0])
			onsets = onsets[1:]
			c.goCueAt = c.m1.OnsetMs + c.appliedDelay
			c.state = StateCueing
			c.display.ClearScreen()
		case rel > c.cfg.MaxMovement1WaitMs:
			err := errors.DeviceTimeout(fmt.Sprintf("no priming movement within %dms", c.cfg.MaxMovement1WaitMs))
			err.Cause = core.ErrDeviceTimeout
			c.logger.Warn("trial %d: %v (code %s), logged as no-response", c.spec.Index, err, err.Code)
			return c.resolveTimeout(), true
		default:
			return trial.TrialResult{}, false
		}
	}

	if c.state == StateCueing {
		if rel >= c.goCueAt {
			c.goCueMs = rel
			c.deadlineMs = rel + c.ResponseWindow()
			c.state = StateAwaitingMovement2
			c.display.ShowCue(c.spec.Direction2)
		} else if len(onsets) > 0 {
			deadline := c.goCueAt + c.ResponseWindow()
			return c.finish(Classify(c.spec, c.m1, c.movement(onsets[0]), c.goCueAt, deadline), onsets[0].Device, frame, rel)
		} else {
			return trial.TrialResult{}, false
		}
	}

	if len(onsets) > 0 {
		return c.finish(Classify(c.spec, c.m1, c.movement(onsets[0]), c.goCueMs, c.deadlineMs), onsets[0].Device, frame, rel)
	}
	if rel > c.deadlineMs+c.cfg.LateGraceMs {
		return c.resolve(Classify(c.spec, c.m1, nil, c.goCueMs, c.deadlineMs)), true
	}
	return trial.TrialResult{}, false
}

func (c *TimingController) movement(onset DeviceOnset) *trial.Movement {
	return &trial.Movement{
		Device:    onset.Device,
		Direction: onset.Direction,
		OnsetMs:   onset.TimestampMs - c.trialStart,
	}
}

// finish holds a classified response open until its device reaches full push. The
// outcome is already fixed; only the movement end is still being measured.
func (c *TimingController) finish(result trial.TrialResult, device int, frame ports.Frame, rel int64) (trial.TrialResult, bool) {
	c.pending = &result
	c.pendingDevice = device
	return c.trackEnd(frame, rel)
}

func (c *TimingController) trackEnd(frame ports.Frame, rel int64) (trial.TrialResult, bool) {
	result := *c.pending
	onset := *result.Movement2OnsetMs
	if ts, ok := c.detector.FullPush(frame, c.pendingDevice); ok {
		end := ts - c.trialStart
		mt := end - onset
		result.Movement2EndMs = &end
		result.MovementTimeMs = &mt
		return c.resolve(result), true
	}
	if rel-onset > c.cfg.MaxMovementTimeMs {
		c.logger.Debug("trial %d: no full push within %dms of onset", c.spec.Index, c.cfg.MaxMovementTimeMs)
		return c.resolve(result), true
	}
	return trial.TrialResult{}, false
}

// resolveTimeout handles a missing priming movement: the trial is logged as no-response
// with no go-cue, and the estimate is left alone.
func (c *TimingController) resolveTimeout() trial.TrialResult {
	return c.resolve(trial.TrialResult{
		TrialIndex: c.spec.Index,
		Outcome:    trial.OutcomeNoResponse,
	})
}

func (c *TimingController) resolve(result trial.TrialResult) trial.TrialResult {
	result.AppliedDelayMs = c.appliedDelay
	c.pending = nil
	c.state = StateResolved
	if c.estimate.Update(c.spec, result) {
		c.logger.Debug("trial %d: estimate mean=%.1fms sd=%.1fms n=%d", c.spec.Index,
			c.estimate.MeanRT(), c.estimate.StdDevRT(), c.estimate.Count())
	}
	c.display.ShowFeedback(result.Outcome)
	return result
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
