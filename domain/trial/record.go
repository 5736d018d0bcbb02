package trial

import (
	"fmt"
	"strconv"

	"pmbr/domain/core"
)

// Record is the flat, persisted form of one resolved trial.
type Record struct {
	SessionID        core.SessionID `db:"session_id" json:"session_id"`
	TrialIndex       int            `db:"trial_index" json:"trial_index"`
	Block            int            `db:"block" json:"block"`
	Condition        Condition      `db:"condition" json:"condition"`
	Direction1       *Direction     `db:"direction1" json:"direction1"`
	Direction2       *Direction     `db:"direction2" json:"direction2"`
	TargetDelayMs    int64          `db:"target_delay_ms" json:"target_delay_ms"`
	AppliedDelayMs   int64          `db:"applied_delay_ms" json:"applied_delay_ms"`
	Movement1OnsetMs *int64         `db:"movement1_onset_ms" json:"movement1_onset_ms"`
	Movement2OnsetMs *int64         `db:"movement2_onset_ms" json:"movement2_onset_ms"`
	GoCueMs          *int64         `db:"go_cue_ms" json:"go_cue_ms"`
	DeadlineMs       *int64         `db:"deadline_ms" json:"deadline_ms"`
	Outcome          Outcome        `db:"outcome" json:"outcome"`
	MeasuredRTMs     *int64         `db:"measured_rt_ms" json:"measured_rt_ms"`
	Movement2EndMs   *int64         `db:"movement2_end_ms" json:"movement2_end_ms"`
	MovementTimeMs   *int64         `db:"movement_time_ms" json:"movement_time_ms"`
}

// NewRecord flattens a spec and its result
func NewRecord(sessionID core.SessionID, spec TrialSpec, result TrialResult) Record {
	return Record{
		SessionID:        sessionID,
		TrialIndex:       spec.Index,
		Block:            spec.Block,
		Condition:        spec.Condition,
		Direction1:       spec.Direction1,
		Direction2:       spec.Direction2,
		TargetDelayMs:    spec.TargetDelayMs,
		AppliedDelayMs:   result.AppliedDelayMs,
		Movement1OnsetMs: result.Movement1OnsetMs,
		Movement2OnsetMs: result.Movement2OnsetMs,
		GoCueMs:          result.GoCueMs,
		DeadlineMs:       result.DeadlineMs,
		Outcome:          result.Outcome,
		MeasuredRTMs:     result.MeasuredRTMs,
		Movement2EndMs:   result.Movement2EndMs,
		MovementTimeMs:   result.MovementTimeMs,
	}
}

// RecordHeader is the column order shared by the CSV and workbook sinks
var RecordHeader = []string{
	"session_id", "trial_index", "block", "condition", "direction1", "direction2",
	"target_delay_ms", "applied_delay_ms", "movement1_onset_ms", "movement2_onset_ms",
	"go_cue_ms", "deadline_ms", "outcome", "measured_rt_ms",
	"movement2_end_ms", "movement_time_ms",
}

// Row renders the record in RecordHeader order; absent values become "NA"
func (r Record) Row() []string {
	return []string{
		r.SessionID.String(),
		strconv.Itoa(r.TrialIndex),
		strconv.Itoa(r.Block),
		string(r.Condition),
		FormatDirection(r.Direction1),
		FormatDirection(r.Direction2),
		strconv.FormatInt(r.TargetDelayMs, 10),
		strconv.FormatInt(r.AppliedDelayMs, 10),
		formatOptional(r.Movement1OnsetMs),
		formatOptional(r.Movement2OnsetMs),
		formatOptional(r.GoCueMs),
		formatOptional(r.DeadlineMs),
		string(r.Outcome),
		formatOptional(r.MeasuredRTMs),
		formatOptional(r.Movement2EndMs),
		formatOptional(r.MovementTimeMs),
	}
}

func formatOptional(v *int64) string {
	if v == nil {
		return "NA"
	}
	return strconv.FormatInt(*v, 10)
}

// ParseRow is the inverse of Row
func ParseRow(row []string) (Record, error) {
	if len(row) != len(RecordHeader) {
		return Record{}, fmt.Errorf("expected %d fields, got %d", len(RecordHeader), len(row))
	}
	var (
		r   Record
		err error
	)
	r.SessionID = core.SessionID(row[0])
	if r.TrialIndex, err = strconv.Atoi(row[1]); err != nil {
		return Record{}, fmt.Errorf("trial_index: %w", err)
	}
	if r.Block, err = strconv.Atoi(row[2]); err != nil {
		return Record{}, fmt.Errorf("block: %w", err)
	}
	r.Condition = Condition(row[3])
	if !r.Condition.Valid() {
		return Record{}, fmt.Errorf("condition: unknown %q", row[3])
	}
	if r.Direction1, err = parseOptionalDirection(row[4]); err != nil {
		return Record{}, err
	}
	if r.Direction2, err = parseOptionalDirection(row[5]); err != nil {
		return Record{}, err
	}
	if r.TargetDelayMs, err = strconv.ParseInt(row[6], 10, 64); err != nil {
		return Record{}, fmt.Errorf("target_delay_ms: %w", err)
	}
	if r.AppliedDelayMs, err = strconv.ParseInt(row[7], 10, 64); err != nil {
		return Record{}, fmt.Errorf("applied_delay_ms: %w", err)
	}
	optionals := []**int64{&r.Movement1OnsetMs, &r.Movement2OnsetMs, &r.GoCueMs, &r.DeadlineMs}
	for i, dst := range optionals {
		if *dst, err = parseOptional(row[8+i]); err != nil {
			return Record{}, fmt.Errorf("%s: %w", RecordHeader[8+i], err)
		}
	}
	r.Outcome = Outcome(row[12])
	optionals = []**int64{&r.MeasuredRTMs, &r.Movement2EndMs, &r.MovementTimeMs}
	for i, dst := range optionals {
		if *dst, err = parseOptional(row[13+i]); err != nil {
			return Record{}, fmt.Errorf("%s: %w", RecordHeader[13+i], err)
		}
	}
	return r, nil
}

func parseOptional(s string) (*int64, error) {
	if s == "NA" || s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptionalDirection(s string) (*Direction, error) {
	if s == "NA" || s == "" {
		return nil, nil
	}
	d, err := ParseDirection(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
