package trial

import (
	"fmt"
	"strings"
)

// Condition is the movement pairing presented on a trial.
type Condition string

const (
	ConditionIpsilateral   Condition = "ipsilateral-pair"
	ConditionContralateral Condition = "contralateral-pair"
	ConditionSingle        Condition = "single-movement-control"
	ConditionCatch         Condition = "catch"
)

// AllConditions lists conditions in design order
func AllConditions() []Condition {
	return []Condition{ConditionIpsilateral, ConditionContralateral, ConditionSingle, ConditionCatch}
}

// Valid reports whether c is one of the four design conditions
func (c Condition) Valid() bool {
	switch c {
	case ConditionIpsilateral, ConditionContralateral, ConditionSingle, ConditionCatch:
		return true
	}
	return false
}

// HasPriming reports whether the trial starts with a priming movement
func (c Condition) HasPriming() bool {
	return c == ConditionIpsilateral || c == ConditionContralateral || c == ConditionCatch
}

func (c Condition) String() string { return string(c) }

// Direction is a joystick deflection direction.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
)

// ParseDirection accepts the lowercase direction names
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DirectionLeft, DirectionRight, DirectionUp, DirectionDown:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Opposite returns the mirrored direction
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLeft:
		return DirectionRight
	case DirectionRight:
		return DirectionLeft
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	}
	return d
}

func (d Direction) String() string { return string(d) }

// Ptr returns a pointer to a copy of d, for optional fields
func (d Direction) Ptr() *Direction { return &d }

// FormatDirection renders an optional direction, "NA" when absent
func FormatDirection(d *Direction) string {
	if d == nil {
		return "NA"
	}
	return string(*d)
}

// SessionMode selects the practice or standard design.
type SessionMode string

const (
	ModePractice SessionMode = "practice"
	ModeStandard SessionMode = "standard"
)

// ParseSessionMode accepts "practice"/"standard" and the dialog labels "P"/"1"
func ParseSessionMode(s string) (SessionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "practice", "p":
		return ModePractice, nil
	case "standard", "1":
		return ModeStandard, nil
	}
	return "", fmt.Errorf("unknown session mode %q", s)
}

// Outcome classifies a resolved trial.
type Outcome string

const (
	OutcomeCorrect        Outcome = "correct"
	OutcomeTooSlow        Outcome = "too-slow"
	OutcomeWrongDirection Outcome = "wrong-direction"
	OutcomeNoResponse     Outcome = "no-response"
	OutcomePremature      Outcome = "premature"
)

// HasMeasuredRT reports whether a probe onset relative to the go-cue was measured
func (o Outcome) HasMeasuredRT() bool {
	return o == OutcomeCorrect || o == OutcomeTooSlow || o == OutcomeWrongDirection
}

func (o Outcome) String() string { return string(o) }

// TrialSpec is generated once per trial before presentation and never mutated.
type TrialSpec struct {
	Index         int        `json:"trial_index"`
	Block         int        `json:"block"`
	Condition     Condition  `json:"condition"`
	TargetDelayMs int64      `json:"target_delay_ms"`
	InterTrialMs  int64      `json:"inter_trial_ms"`
	Direction1    *Direction `json:"direction1,omitempty"`
	Direction2    *Direction `json:"direction2,omitempty"`
}

// Line is the canonical single-line form used for sequence fingerprints
func (s TrialSpec) Line() string {
	return fmt.Sprintf("%d|%d|%s|%s|%s|%d|%d", s.Index, s.Block, s.Condition,
		FormatDirection(s.Direction1), FormatDirection(s.Direction2), s.TargetDelayMs, s.InterTrialMs)
}

// Movement is a movement onset observed on one device, relative to trial start.
type Movement struct {
	Device    int       `json:"device"`
	Direction Direction `json:"direction"`
	OnsetMs   int64     `json:"onset_ms"`
}

// TrialResult is produced once per trial after classification.
type TrialResult struct {
	TrialIndex         int        `json:"trial_index"`
	Movement1OnsetMs   *int64     `json:"movement1_onset_ms,omitempty"`
	Movement2OnsetMs   *int64     `json:"movement2_onset_ms,omitempty"`
	Movement1Direction *Direction `json:"movement1_direction,omitempty"`
	Movement2Direction *Direction `json:"movement2_direction,omitempty"`
	Outcome            Outcome    `json:"outcome"`
	MeasuredRTMs       *int64     `json:"measured_rt_ms,omitempty"`
	GoCueMs            *int64     `json:"go_cue_ms,omitempty"` // absent when the priming movement never came
	DeadlineMs         *int64     `json:"deadline_ms,omitempty"`
	AppliedDelayMs     int64      `json:"applied_delay_ms"`
	Movement2EndMs     *int64     `json:"movement2_end_ms,omitempty"` // full push of the response device
	MovementTimeMs     *int64     `json:"movement_time_ms,omitempty"`
}
