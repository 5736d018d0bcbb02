package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"pmbr/domain/core"
	"pmbr/domain/trial"
)

// TrialWriter implements ports.TrialRecorder for one session. Rows are keyed by
// (session_id, trial_index), so a trial can only be written once.
type TrialWriter struct {
	db        *sqlx.DB
	sessionID core.SessionID
}

// NewTrialWriter creates a recorder bound to sessionID
func NewTrialWriter(db *sqlx.DB, sessionID core.SessionID) *TrialWriter {
	return &TrialWriter{db: db, sessionID: sessionID}
}

type trialRow struct {
	trial.Record
	RecordedAt time.Time `db:"recorded_at"`
}

// Record implements ports.TrialRecorder
func (w *TrialWriter) Record(ctx context.Context, result trial.TrialResult, spec trial.TrialSpec) error {
	row := trialRow{
		Record:     trial.NewRecord(w.sessionID, spec, result),
		RecordedAt: time.Now().UTC(),
	}
	_, err := w.db.NamedExecContext(ctx, `
		INSERT INTO trials (session_id, trial_index, block, condition, direction1, direction2,
			target_delay_ms, applied_delay_ms, movement1_onset_ms, movement2_onset_ms,
			go_cue_ms, deadline_ms, outcome, measured_rt_ms, movement2_end_ms, movement_time_ms, recorded_at)
		VALUES (:session_id, :trial_index, :block, :condition, :direction1, :direction2,
			:target_delay_ms, :applied_delay_ms, :movement1_onset_ms, :movement2_onset_ms,
			:go_cue_ms, :deadline_ms, :outcome, :measured_rt_ms, :movement2_end_ms, :movement_time_ms, :recorded_at)
	`, row)
	return err
}
