package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/ports"
)

// SessionRepositoryImpl implements ports.SessionRepository over Postgres or SQLite
type SessionRepositoryImpl struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sqlx.DB) *SessionRepositoryImpl {
	return &SessionRepositoryImpl{db: db}
}

var _ ports.SessionRepository = (*SessionRepositoryImpl)(nil)

// sessionRow carries the timestamp columns the manifest keeps as core.Timestamp
type sessionRow struct {
	session.Manifest
	StartedAt   time.Time    `db:"started_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func (row sessionRow) manifest() *session.Manifest {
	m := row.Manifest
	m.StartedAt = core.NewTimestamp(row.StartedAt)
	if row.CompletedAt.Valid {
		ts := core.NewTimestamp(row.CompletedAt.Time)
		m.CompletedAt = &ts
	}
	return &m
}

const sessionColumns = `id, participant_id, session_no, run_no, mode, seed, trial_count,
	sequence_hash, config_json, status, started_at, completed_at`

// CreateSession stores the manifest before the first trial runs
func (r *SessionRepositoryImpl) CreateSession(ctx context.Context, m *session.Manifest) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sessions (id, participant_id, session_no, run_no, mode, seed, trial_count,
			sequence_hash, config_json, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), m.SessionID, m.Participant, m.SessionNo, m.RunNo, m.Mode, m.Seed, m.TrialCount,
		m.SequenceHash, m.ConfigJSON, m.Status, m.StartedAt.Time().UTC())
	return err
}

// CompleteSession records the final status of a session
func (r *SessionRepositoryImpl) CompleteSession(ctx context.Context, id core.SessionID, status session.Status) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE sessions SET status = ?, completed_at = ? WHERE id = ?
	`), status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return nil
}

// GetSession retrieves a session manifest
func (r *SessionRepositoryImpl) GetSession(ctx context.Context, id core.SessionID) (*session.Manifest, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.manifest(), nil
}

// ListSessions returns sessions newest first, optionally limited
func (r *SessionRepositoryImpl) ListSessions(ctx context.Context, limit int) ([]*session.Manifest, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []sessionRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	sessions := make([]*session.Manifest, len(rows))
	for i, row := range rows {
		sessions[i] = row.manifest()
	}
	return sessions, nil
}

// ListTrials returns a session's records in trial order
func (r *SessionRepositoryImpl) ListTrials(ctx context.Context, id core.SessionID) ([]trial.Record, error) {
	records := []trial.Record{}
	err := r.db.SelectContext(ctx, &records, r.db.Rebind(`
		SELECT session_id, trial_index, block, condition, direction1, direction2,
			target_delay_ms, applied_delay_ms, movement1_onset_ms, movement2_onset_ms,
			go_cue_ms, deadline_ms, outcome, measured_rt_ms, movement2_end_ms, movement_time_ms
		FROM trials
		WHERE session_id = ?
		ORDER BY trial_index
	`), id)
	return records, err
}
