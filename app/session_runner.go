package app

import (
	"context"
	"fmt"
	"math"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal"
	"pmbr/internal/analysis"
	"pmbr/internal/errors"
	"pmbr/ports"
)

// RunnerDeps are the collaborators a session runs against. Trigger may be nil.
type RunnerDeps struct {
	Input    ports.InputPort
	Display  ports.DisplayPort
	Recorder ports.TrialRecorder
	Trigger  ports.TriggerPort
	Clock    ports.Clock
	Logger   *internal.Logger
}

// Summary is what a session leaves behind, including the records the recorder refused.
type Summary struct {
	Manifest    session.Manifest
	Records     []trial.Record
	Unwritten   []trial.Record
	WriteErrors []error
	Status      session.Status
	Estimate    EstimateSnapshot
}

// SessionRunner drives the generated trial list through the timing controller, one frame
// at a time, on the caller's goroutine.
type SessionRunner struct {
	cfg       session.Config
	deps      RunnerDeps
	observers []ports.SessionObserver
	logger    *internal.Logger
}

// NewSessionRunner validates cfg and wires the runner
func NewSessionRunner(cfg session.Config, deps RunnerDeps) (*SessionRunner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if deps.Input == nil || deps.Display == nil || deps.Recorder == nil || deps.Clock == nil {
		return nil, errors.InvalidInput("session runner requires input, display, recorder and clock")
	}
	logger := deps.Logger
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &SessionRunner{cfg: cfg, deps: deps, logger: logger}, nil
}

// AddObserver registers o for session events
func (r *SessionRunner) AddObserver(o ports.SessionObserver) {
	r.observers = append(r.observers, o)
}

// Run executes specs in order. On abort or device failure it returns the summary so far
// together with the error; every trial resolved before the stop has been recorded.
func (r *SessionRunner) Run(ctx context.Context, manifest *session.Manifest, specs []trial.TrialSpec) (*Summary, error) {
	estimate := NewRunningEstimate(r.cfg.EstimateWindow, r.cfg.EstimateMinSamples)
	controller := NewTimingController(r.cfg, estimate, r.deps.Display, r.logger)

	summary := &Summary{Manifest: *manifest, Status: session.StatusRunning}
	finish := func(status session.Status, err error) (*Summary, error) {
		summary.Status = status
		summary.Manifest.Status = status
		summary.Estimate = estimate.Snapshot()
		for _, o := range r.observers {
			o.SessionEnded(status)
		}
		r.logger.Info("session %s %s after %d/%d trials (%d unwritten)",
			manifest.SessionID, status, len(summary.Records), len(specs), len(summary.Unwritten))
		return summary, err
	}

	for _, o := range r.observers {
		o.SessionStarted(*manifest)
	}
	r.logger.Info("session %s: participant %d, %s, %d trials, seed %d, sequence %s",
		manifest.SessionID, manifest.Participant, manifest.Mode, len(specs), manifest.Seed,
		core.Hash(manifest.SequenceHash).Short())
	r.send(ports.TriggerSessionStart)

	if err := r.countdown(ctx, r.cfg.RampUpSeconds, "Get ready"); err != nil {
		return finish(session.StatusAborted, r.aborted(err))
	}

	blockStart := 0
	for i, spec := range specs {
		if i == 0 || spec.Block != specs[i-1].Block {
			blockStart = len(summary.Records)
			r.logger.Debug("block %d started", spec.Block)
			r.send(ports.TriggerBlockStart)
		}

		result, err := r.runTrial(ctx, controller, spec)
		if err != nil {
			if ctx.Err() != nil {
				return finish(session.StatusAborted, r.aborted(ctx.Err()))
			}
			return finish(session.StatusFailed, err)
		}

		rec := trial.NewRecord(manifest.SessionID, spec, result)
		summary.Records = append(summary.Records, rec)
		if err := r.deps.Recorder.Record(ctx, result, spec); err != nil {
			werr := errors.WriteError("trial recorder", core.NewWriteError(spec.Index, err))
			r.logger.Error("%v (code %s), keeping record in memory", werr, werr.Code)
			summary.Unwritten = append(summary.Unwritten, rec)
			summary.WriteErrors = append(summary.WriteErrors, werr)
		}
		for _, o := range r.observers {
			o.TrialResolved(rec)
		}
		r.send(outcomeTrigger(result))
		r.logger.Debug("trial %d %s: %s", spec.Index, spec.Condition, result.Outcome)

		if err := r.wait(ctx, spec.InterTrialMs); err != nil {
			return finish(session.StatusAborted, r.aborted(err))
		}

		last := i == len(specs)-1
		if last || specs[i+1].Block != spec.Block {
			r.send(ports.TriggerBlockEnd)
			mean, ok := analysis.MeanProbeRT(summary.Records[blockStart:])
			if !ok {
				mean = math.NaN()
			}
			r.deps.Display.ShowBlockSummary(spec.Block, mean)
			if !last {
				if err := r.countdown(ctx, r.cfg.BreakSeconds, "Break"); err != nil {
					return finish(session.StatusAborted, r.aborted(err))
				}
			}
		}
	}

	return finish(session.StatusComplete, nil)
}

// runTrial polls until the controller resolves spec
func (r *SessionRunner) runTrial(ctx context.Context, controller *TimingController, spec trial.TrialSpec) (trial.TrialResult, error) {
	controller.Begin(spec, r.deps.Clock.Now())
	for {
		if err := r.deps.Clock.NextFrame(ctx); err != nil {
			return trial.TrialResult{}, err
		}
		frame, err := r.deps.Input.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return trial.TrialResult{}, ctx.Err()
			}
			return trial.TrialResult{}, errors.DeviceError("joystick", err)
		}
		if result, done := controller.Tick(frame, r.deps.Clock.Now()); done {
			return result, nil
		}
	}
}

// wait lets frames pass for ms milliseconds
func (r *SessionRunner) wait(ctx context.Context, ms int64) error {
	end := r.deps.Clock.Now() + ms
	for r.deps.Clock.Now() < end {
		if err := r.deps.Clock.NextFrame(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *SessionRunner) countdown(ctx context.Context, seconds int, label string) error {
	for s := seconds; s > 0; s-- {
		r.deps.Display.ShowCountdown(s, label)
		if err := r.wait(ctx, 1000); err != nil {
			return err
		}
	}
	return nil
}

func (r *SessionRunner) send(code ports.TriggerCode) {
	if r.deps.Trigger == nil {
		return
	}
	if err := r.deps.Trigger.Send(code); err != nil {
		r.logger.Warn("trigger %d not sent: %v", code, err)
	}
}

func (r *SessionRunner) aborted(cause error) error {
	return errors.AbortRequested(fmt.Errorf("%w: %v", core.ErrAbortRequested, cause))
}

// outcomeTrigger picks the event code for a resolved trial. Left and up responses use
// the left pair of codes.
func outcomeTrigger(result trial.TrialResult) ports.TriggerCode {
	if result.Movement2Direction == nil {
		return ports.TriggerNoResponse
	}
	correct := result.Outcome == trial.OutcomeCorrect
	switch *result.Movement2Direction {
	case trial.DirectionRight, trial.DirectionDown:
		if correct {
			return ports.TriggerCorrectRight
		}
		return ports.TriggerIncorrectRight
	default:
		if correct {
			return ports.TriggerCorrectLeft
		}
		return ports.TriggerIncorrectLeft
	}
}
