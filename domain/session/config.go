package session

import (
	"fmt"
	"time"

	"pmbr/domain/core"
	"pmbr/domain/trial"
)

// PracticeTrialCount is the fixed length of a practice session
const PracticeTrialCount = 12

// SeedFromParticipant asks for the participant id to be used as seed
const SeedFromParticipant int64 = -1

// Config is the validated set of session parameters the engine is built from.
type Config struct {
	Mode       trial.SessionMode `json:"session_mode" yaml:"session_mode"`
	TrialCount int               `json:"trial_count" yaml:"trial_count"`
	Seed       *int64            `json:"seed,omitempty" yaml:"seed"`
	Blocks     int               `json:"blocks" yaml:"blocks"`

	AdaptiveTiming        bool    `json:"adaptive_timing" yaml:"adaptive_timing"`
	KDeadlineMultiplier   float64 `json:"k_deadline_multiplier" yaml:"k_deadline_multiplier"`
	AdaptiveGain          float64 `json:"adaptive_gain" yaml:"adaptive_gain"`
	AdaptiveReferenceRTMs int64   `json:"adaptive_reference_rt_ms" yaml:"adaptive_reference_rt_ms"`
	EstimateWindow        int     `json:"estimate_window" yaml:"estimate_window"`
	EstimateMinSamples    int     `json:"estimate_min_samples" yaml:"estimate_min_samples"`

	BaseDelayMs         int64 `json:"base_delay_ms" yaml:"base_delay_ms"`
	DelayJitterMs       int64 `json:"delay_jitter_ms" yaml:"delay_jitter_ms"`
	MinDelayMs          int64 `json:"min_delay_ms" yaml:"min_delay_ms"`
	MaxDelayMs          int64 `json:"max_delay_ms" yaml:"max_delay_ms"`
	MaxMovement1WaitMs  int64 `json:"max_movement1_wait_ms" yaml:"max_movement1_wait_ms"`
	ResponseWindowMs    int64 `json:"response_window_ms" yaml:"response_window_ms"`
	MinResponseWindowMs int64 `json:"min_response_window_ms" yaml:"min_response_window_ms"`
	LateGraceMs         int64 `json:"late_grace_ms" yaml:"late_grace_ms"`
	MaxMovementTimeMs   int64 `json:"max_movement_time_ms" yaml:"max_movement_time_ms"`
	InterTrialMinMs     int64 `json:"inter_trial_min_ms" yaml:"inter_trial_min_ms"`
	InterTrialMaxMs     int64 `json:"inter_trial_max_ms" yaml:"inter_trial_max_ms"`

	OnsetThreshold    float64           `json:"onset_threshold" yaml:"onset_threshold"`
	FullPushThreshold float64           `json:"full_push_threshold" yaml:"full_push_threshold"`
	Directions        []trial.Direction `json:"directions" yaml:"directions"`

	FrameRateHz   int `json:"frame_rate_hz" yaml:"frame_rate_hz"`
	RampUpSeconds int `json:"ramp_up_seconds" yaml:"ramp_up_seconds"`
	BreakSeconds  int `json:"break_seconds" yaml:"break_seconds"`
}

// DefaultConfig mirrors the timings of the lab protocol
func DefaultConfig() Config {
	return Config{
		Mode:                  trial.ModeStandard,
		TrialCount:            80,
		Blocks:                1,
		KDeadlineMultiplier:   3.0,
		AdaptiveGain:          1.0,
		AdaptiveReferenceRTMs: 350,
		EstimateWindow:        20,
		EstimateMinSamples:    3,
		BaseDelayMs:           650,
		DelayJitterMs:         200,
		MinDelayMs:            200,
		MaxDelayMs:            2000,
		MaxMovement1WaitMs:    5000,
		ResponseWindowMs:      1000,
		MinResponseWindowMs:   250,
		LateGraceMs:           500,
		MaxMovementTimeMs:     1000,
		InterTrialMinMs:       1000,
		InterTrialMaxMs:       2000,
		OnsetThreshold:        0.05,
		FullPushThreshold:     0.9,
		Directions:            []trial.Direction{trial.DirectionLeft, trial.DirectionRight},
		FrameRateHz:           60,
		RampUpSeconds:         5,
		BreakSeconds:          25,
	}
}

// FrameInterval is the poll cadence derived from FrameRateHz
func (c Config) FrameInterval() time.Duration {
	if c.FrameRateHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRateHz)
}

// ResolveSeed applies the seed rule: -1 means participant id, no seed or 0 means
// wall-clock time, any other value is used as given.
func (c Config) ResolveSeed(participant core.ParticipantID, now time.Time) int64 {
	if c.Seed == nil || *c.Seed == 0 {
		return now.UnixNano()
	}
	if *c.Seed == SeedFromParticipant {
		return int64(participant)
	}
	return *c.Seed
}

// Validate checks every parameter and returns the first InvalidConfig error found.
func (c Config) Validate() error {
	switch c.Mode {
	case trial.ModePractice, trial.ModeStandard:
	default:
		return core.NewInvalidConfigError("session_mode", "must be practice or standard")
	}
	if c.Mode == trial.ModeStandard {
		if c.TrialCount <= 0 {
			return core.NewInvalidConfigError("trial_count", "must be positive")
		}
		if n := len(trial.AllConditions()); c.TrialCount%n != 0 {
			return core.NewInvalidConfigError("trial_count", fmt.Sprintf("must be a multiple of %d", n))
		}
		if c.Blocks < 1 {
			return core.NewInvalidConfigError("blocks", "must be at least 1")
		}
		if c.TrialCount%c.Blocks != 0 {
			return core.NewInvalidConfigError("trial_count", "must divide evenly into blocks")
		}
	}
	if c.Seed != nil && *c.Seed < SeedFromParticipant {
		return core.NewInvalidConfigError("seed", "must be -1 or non-negative")
	}
	if c.KDeadlineMultiplier <= 0 {
		return core.NewInvalidConfigError("k_deadline_multiplier", "must be positive")
	}
	if c.EstimateWindow < 2 {
		return core.NewInvalidConfigError("estimate_window", "must hold at least 2 samples")
	}
	if c.EstimateMinSamples < 1 || c.EstimateMinSamples > c.EstimateWindow {
		return core.NewInvalidConfigError("estimate_min_samples", "must be between 1 and estimate_window")
	}
	if c.BaseDelayMs < 0 || c.DelayJitterMs < 0 {
		return core.NewInvalidConfigError("base_delay_ms", "delay and jitter must be non-negative")
	}
	if c.MinDelayMs < 0 || c.MaxDelayMs < c.MinDelayMs {
		return core.NewInvalidConfigError("max_delay_ms", "must be at least min_delay_ms")
	}
	if c.MaxMovement1WaitMs <= 0 {
		return core.NewInvalidConfigError("max_movement1_wait_ms", "must be positive")
	}
	if c.ResponseWindowMs <= 0 || c.MinResponseWindowMs < 0 {
		return core.NewInvalidConfigError("response_window_ms", "must be positive")
	}
	if c.LateGraceMs < 0 {
		return core.NewInvalidConfigError("late_grace_ms", "must be non-negative")
	}
	if c.MaxMovementTimeMs <= 0 {
		return core.NewInvalidConfigError("max_movement_time_ms", "must be positive")
	}
	if c.InterTrialMinMs < 0 || c.InterTrialMaxMs < c.InterTrialMinMs {
		return core.NewInvalidConfigError("inter_trial_max_ms", "must be at least inter_trial_min_ms")
	}
	if c.OnsetThreshold <= 0 || c.OnsetThreshold >= 1 {
		return core.NewInvalidConfigError("onset_threshold", "must be in (0, 1)")
	}
	if c.FullPushThreshold <= c.OnsetThreshold || c.FullPushThreshold > 1 {
		return core.NewInvalidConfigError("full_push_threshold", "must be above onset_threshold and at most 1")
	}
	if len(c.Directions) == 0 {
		return core.NewInvalidConfigError("directions", "at least one response direction is required")
	}
	for _, d := range c.Directions {
		if _, err := trial.ParseDirection(string(d)); err != nil {
			return core.NewInvalidConfigError("directions", err.Error())
		}
	}
	if c.FrameRateHz <= 0 || c.FrameRateHz > 1000 {
		return core.NewInvalidConfigError("frame_rate_hz", "must be in 1..1000")
	}
	if c.RampUpSeconds < 0 || c.BreakSeconds < 0 {
		return core.NewInvalidConfigError("break_seconds", "countdowns must be non-negative")
	}
	return nil
}
