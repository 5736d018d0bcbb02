package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal"
	"pmbr/internal/testkit"
	"pmbr/ports"
)

type timingFixture struct {
	clock      *testkit.FakeClock
	display    *testkit.RecordingDisplay
	controller *TimingController
}

func newTimingFixture(cfg session.Config) *timingFixture {
	clock := testkit.NewFakeClock(1)
	display := testkit.NewRecordingDisplay(clock)
	estimate := NewRunningEstimate(cfg.EstimateWindow, cfg.EstimateMinSamples)
	return &timingFixture{
		clock:      clock,
		display:    display,
		controller: NewTimingController(cfg, estimate, display, internal.NewNopLogger()),
	}
}

func fixedTimingConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.AdaptiveTiming = false
	cfg.ResponseWindowMs = 1000
	cfg.LateGraceMs = 500
	cfg.MaxMovement1WaitMs = 5000
	return cfg
}

// drive begins spec at 0 and ticks one frame per millisecond. moves maps a time to the
// devices deflected in that frame.
func (f *timingFixture) drive(t *testing.T, spec trial.TrialSpec, moves map[int64]map[int]trial.Direction) (trial.TrialResult, int64) {
	t.Helper()
	return f.driveFrames(t, spec, func(ts int64) ports.Frame { return testkit.Frame(ts, moves[ts]) })
}

// driveFrames is drive with full control over each frame's magnitudes
func (f *timingFixture) driveFrames(t *testing.T, spec trial.TrialSpec, frameAt func(ts int64) ports.Frame) (trial.TrialResult, int64) {
	t.Helper()
	f.clock.Set(0)
	f.controller.Begin(spec, 0)
	for ts := int64(1); ts <= 20000; ts++ {
		f.clock.Set(ts)
		if result, done := f.controller.Tick(frameAt(ts), ts); done {
			return result, ts
		}
	}
	t.Fatal("trial never resolved")
	return trial.TrialResult{}, 0
}

func ipsiSpec(delay int64) trial.TrialSpec {
	left := trial.DirectionLeft
	return trial.TrialSpec{Index: 0, Condition: trial.ConditionIpsilateral, TargetDelayMs: delay, Direction1: left.Ptr(), Direction2: left.Ptr()}
}

func TestTiming_GoCueFollowsMovement1(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())

	result, _ := f.drive(t, ipsiSpec(500), map[int64]map[int]trial.Direction{
		1000: {0: trial.DirectionLeft},
		1800: {1: trial.DirectionLeft},
	})

	cues := f.display.Of("cue")
	require.Len(t, cues, 1)
	assert.Equal(t, int64(1500), cues[0].AtMs)
	require.NotNil(t, result.GoCueMs)
	assert.Equal(t, int64(1500), *result.GoCueMs)
	assert.Equal(t, int64(2500), *result.DeadlineMs)
	assert.Equal(t, trial.OutcomeCorrect, result.Outcome)
	assert.Equal(t, int64(300), *result.MeasuredRTMs)
	assert.Equal(t, int64(500), result.AppliedDelayMs)
	assert.Equal(t, int64(1800), *result.Movement2EndMs, "a full deflection completes on onset")
	assert.Equal(t, int64(0), *result.MovementTimeMs)
	assert.Equal(t, StateResolved, f.controller.State())
}

func TestTiming_OnsetAtDeadlineIsCorrect(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())

	result, _ := f.drive(t, ipsiSpec(500), map[int64]map[int]trial.Direction{
		1000: {0: trial.DirectionLeft},
		2500: {1: trial.DirectionLeft},
	})

	assert.Equal(t, trial.OutcomeCorrect, result.Outcome)
	assert.Equal(t, int64(1000), *result.MeasuredRTMs)
	assert.Equal(t, 1, f.controller.Estimate().Count())
}

func TestTiming_LateResponseIsTooSlow(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())

	result, _ := f.drive(t, ipsiSpec(500), map[int64]map[int]trial.Direction{
		1000: {0: trial.DirectionLeft},
		2600: {1: trial.DirectionLeft},
	})

	assert.Equal(t, trial.OutcomeTooSlow, result.Outcome)
	assert.Equal(t, int64(1100), *result.MeasuredRTMs)
	assert.Equal(t, 1, f.controller.Estimate().Count())
}

func TestTiming_PrematureLeavesEstimateAlone(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())

	result, at := f.drive(t, ipsiSpec(500), map[int64]map[int]trial.Direction{
		1000: {0: trial.DirectionLeft},
		1400: {1: trial.DirectionLeft},
	})

	assert.Equal(t, int64(1400), at)
	assert.Equal(t, trial.OutcomePremature, result.Outcome)
	assert.Nil(t, result.MeasuredRTMs)
	assert.Empty(t, f.display.Of("cue"))
	assert.Equal(t, 0, f.controller.Estimate().Updates())
}

func TestTiming_NoResponseAfterGrace(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())

	result, at := f.drive(t, ipsiSpec(500), map[int64]map[int]trial.Direction{
		1000: {0: trial.DirectionLeft},
	})

	assert.Equal(t, int64(3001), at)
	assert.Equal(t, trial.OutcomeNoResponse, result.Outcome)
	assert.Nil(t, result.Movement2OnsetMs)
	assert.Equal(t, 0, f.controller.Estimate().Updates())
	feedback := f.display.Of("feedback")
	require.Len(t, feedback, 1)
	assert.Equal(t, trial.OutcomeNoResponse, feedback[0].Outcome)
}

func TestTiming_Movement1TimeoutIsNoResponse(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())

	result, at := f.drive(t, ipsiSpec(500), nil)

	assert.Equal(t, int64(5001), at)
	assert.Equal(t, trial.OutcomeNoResponse, result.Outcome)
	assert.Nil(t, result.GoCueMs)
	assert.Nil(t, result.DeadlineMs)
	assert.Nil(t, result.Movement1OnsetMs)
	assert.Empty(t, f.display.Of("cue"))
}

func TestTiming_WrongDirection(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())

	result, _ := f.drive(t, ipsiSpec(500), map[int64]map[int]trial.Direction{
		1000: {0: trial.DirectionLeft},
		1700: {1: trial.DirectionRight},
	})

	assert.Equal(t, trial.OutcomeWrongDirection, result.Outcome)
	assert.Equal(t, trial.DirectionRight, *result.Movement2Direction)
	assert.Equal(t, 1, f.controller.Estimate().Count())
}

func TestTiming_SingleMovementCuesFromTrialStart(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())
	spec := trial.TrialSpec{Condition: trial.ConditionSingle, TargetDelayMs: 700, Direction2: trial.DirectionRight.Ptr()}

	result, _ := f.drive(t, spec, map[int64]map[int]trial.Direction{
		1000: {1: trial.DirectionRight},
	})

	require.Len(t, f.display.Of("fixation"), 1)
	assert.Empty(t, f.display.Of("prime"))
	assert.Equal(t, int64(700), f.display.Of("cue")[0].AtMs)
	assert.Equal(t, trial.OutcomeCorrect, result.Outcome)
	assert.Equal(t, int64(300), *result.MeasuredRTMs)
	assert.Nil(t, result.Movement1OnsetMs)
}

func TestTiming_CatchTrial(t *testing.T) {
	cfg := fixedTimingConfig()
	spec := trial.TrialSpec{Condition: trial.ConditionCatch, TargetDelayMs: 500, Direction1: trial.DirectionLeft.Ptr()}

	t.Run("withheld", func(t *testing.T) {
		f := newTimingFixture(cfg)
		result, _ := f.drive(t, spec, map[int64]map[int]trial.Direction{1000: {0: trial.DirectionLeft}})

		assert.Equal(t, trial.OutcomeNoResponse, result.Outcome)
		cues := f.display.Of("cue")
		require.Len(t, cues, 1)
		assert.Nil(t, cues[0].Direction)
	})

	t.Run("answered", func(t *testing.T) {
		f := newTimingFixture(cfg)
		result, _ := f.drive(t, spec, map[int64]map[int]trial.Direction{
			1000: {0: trial.DirectionLeft},
			1800: {1: trial.DirectionLeft},
		})

		assert.Equal(t, trial.OutcomeWrongDirection, result.Outcome)
		assert.Equal(t, 0, f.controller.Estimate().Updates())
	})
}

func TestTiming_HeldDeflectionIsOneMovement(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())
	moves := make(map[int64]map[int]trial.Direction)
	for ts := int64(1000); ts < 2000; ts++ {
		moves[ts] = map[int]trial.Direction{0: trial.DirectionLeft}
	}
	moves[1800] = map[int]trial.Direction{0: trial.DirectionLeft, 1: trial.DirectionLeft}

	result, _ := f.drive(t, ipsiSpec(500), moves)

	assert.Equal(t, trial.OutcomeCorrect, result.Outcome)
	assert.Equal(t, int64(1000), *result.Movement1OnsetMs)
	assert.Equal(t, int64(1800), *result.Movement2OnsetMs)
}

func TestTiming_SameFrameDeflectionIsPremature(t *testing.T) {
	f := newTimingFixture(fixedTimingConfig())
	moves := make(map[int64]map[int]trial.Direction)
	for ts := int64(1000); ts < 1700; ts++ {
		moves[ts] = map[int]trial.Direction{0: trial.DirectionLeft, 1: trial.DirectionLeft}
	}

	result, at := f.drive(t, ipsiSpec(500), moves)

	assert.Equal(t, int64(1000), at, "resolved on the frame both devices moved")
	assert.Equal(t, trial.OutcomePremature, result.Outcome)
	assert.Equal(t, int64(1000), *result.Movement1OnsetMs)
	require.NotNil(t, result.Movement2OnsetMs)
	assert.Equal(t, int64(1000), *result.Movement2OnsetMs)
	assert.Empty(t, f.display.Of("cue"))
	assert.Equal(t, 0, f.controller.Estimate().Updates())
}

func sample(ts int64, device int, dir trial.Direction, magnitude float64) ports.Frame {
	f := testkit.Frame(ts, nil)
	f.Devices[device] = ports.DeviceSample{Direction: dir, Magnitude: magnitude, TimestampMs: ts}
	return f
}

func TestTiming_MovementTime(t *testing.T) {
	tests := []struct {
		name    string
		ramp    func(ts int64) float64 // response device magnitude from 1800 on
		at      int64
		endMs   *int64
		movedMs *int64
	}{
		{
			name: "reaches full push",
			ramp: func(ts int64) float64 {
				if ts < 1850 {
					return 0.3
				}
				return 1
			},
			at:      1850,
			endMs:   ptr(1850),
			movedMs: ptr(50),
		},
		{
			name:    "never completes",
			ramp:    func(int64) float64 { return 0.3 },
			at:      2801,
			endMs:   nil,
			movedMs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTimingFixture(fixedTimingConfig())
			result, at := f.driveFrames(t, ipsiSpec(500), func(ts int64) ports.Frame {
				switch {
				case ts == 1000:
					return sample(ts, 0, trial.DirectionLeft, 1)
				case ts >= 1800:
					return sample(ts, 1, trial.DirectionLeft, tt.ramp(ts))
				}
				return testkit.Frame(ts, nil)
			})

			assert.Equal(t, tt.at, at)
			assert.Equal(t, trial.OutcomeCorrect, result.Outcome)
			assert.Equal(t, int64(300), *result.MeasuredRTMs, "reaction time is measured to onset")
			assert.Equal(t, tt.endMs, result.Movement2EndMs)
			assert.Equal(t, tt.movedMs, result.MovementTimeMs)
			feedback := f.display.Of("feedback")
			require.Len(t, feedback, 1)
			assert.Equal(t, tt.at, feedback[0].AtMs)
		})
	}
}

func TestTiming_AdaptsAcrossTrials(t *testing.T) {
	cfg := fixedTimingConfig()
	cfg.AdaptiveTiming = true
	cfg.EstimateMinSamples = 2
	f := newTimingFixture(cfg)

	respondAt := func(ms int64) map[int64]map[int]trial.Direction {
		moves := map[int64]map[int]trial.Direction{1000: {0: trial.DirectionLeft}}
		if ms > 0 {
			moves[ms] = map[int]trial.Direction{1: trial.DirectionLeft}
		}
		return moves
	}
	window := func(r trial.TrialResult) (int64, int64) {
		require.NotNil(t, r.GoCueMs)
		require.NotNil(t, r.DeadlineMs)
		return *r.GoCueMs, *r.DeadlineMs
	}

	// two correct trials at 400ms fill the estimate; the fixed window applies until then
	for i := 0; i < 2; i++ {
		r, _ := f.drive(t, ipsiSpec(500), respondAt(1900))
		require.Equal(t, trial.OutcomeCorrect, r.Outcome)
		goCue, deadline := window(r)
		assert.Equal(t, int64(1500), goCue)
		assert.Equal(t, int64(2500), deadline)
	}
	require.True(t, f.controller.Estimate().Ready())

	// delay 500 + (400 - 350), window 400 + 3*0
	r, _ := f.drive(t, ipsiSpec(500), respondAt(1400))
	assert.Equal(t, trial.OutcomePremature, r.Outcome)
	goCue, deadline := window(r)
	assert.Equal(t, int64(1550), goCue)
	assert.Equal(t, int64(1950), deadline)
	assert.Equal(t, int64(550), r.AppliedDelayMs)

	r, _ = f.drive(t, ipsiSpec(500), respondAt(0))
	assert.Equal(t, trial.OutcomeNoResponse, r.Outcome)
	goCue, deadline = window(r)
	assert.Equal(t, int64(1550), goCue, "premature trials leave the timing unchanged")
	assert.Equal(t, int64(1950), deadline)

	r, _ = f.drive(t, ipsiSpec(500), respondAt(1850))
	require.Equal(t, trial.OutcomeCorrect, r.Outcome)
	goCue, deadline = window(r)
	assert.Equal(t, int64(1550), goCue, "no-response trials leave the timing unchanged")
	assert.Equal(t, int64(1950), deadline)
	assert.Equal(t, int64(300), *r.MeasuredRTMs)

	// mean now (400+400+300)/3
	r, _ = f.drive(t, ipsiSpec(500), respondAt(0))
	goCue, deadline = window(r)
	assert.Equal(t, int64(1517), goCue)
	assert.Equal(t, f.controller.ResponseWindow(), deadline-goCue)
	assert.Greater(t, deadline-goCue, int64(400), "spread widens the window")
	assert.Equal(t, 3, f.controller.Estimate().Count())
}
