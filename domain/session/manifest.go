package session

import (
	"encoding/json"

	"pmbr/domain/core"
	"pmbr/domain/trial"
)

// Status tracks a session through its lifecycle
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusAborted  Status = "aborted"
	StatusFailed   Status = "failed"
)

// Participant identifies who ran the session, as entered by the operator.
type Participant struct {
	ID      core.ParticipantID `json:"id" yaml:"id"`
	Session int                `json:"session" yaml:"session"`
	Run     int                `json:"run" yaml:"run"`
}

// Manifest is the per-session parameters record, written before the first trial.
type Manifest struct {
	SessionID    core.SessionID     `db:"id" json:"session_id"`
	Participant  core.ParticipantID `db:"participant_id" json:"participant_id"`
	SessionNo    int                `db:"session_no" json:"session"`
	RunNo        int                `db:"run_no" json:"run"`
	Mode         trial.SessionMode  `db:"mode" json:"mode"`
	Seed         int64              `db:"seed" json:"seed"`
	TrialCount   int                `db:"trial_count" json:"trial_count"`
	SequenceHash core.SequenceHash  `db:"sequence_hash" json:"sequence_hash"`
	ConfigJSON   string             `db:"config_json" json:"-"`
	Status       Status             `db:"status" json:"status"`
	StartedAt    core.Timestamp     `db:"-" json:"started_at"`
	CompletedAt  *core.Timestamp    `db:"-" json:"completed_at,omitempty"`
}

// NewManifest snapshots the configuration a session was run with
func NewManifest(p Participant, cfg Config, seed int64, specs []trial.TrialSpec) (*Manifest, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(specs))
	for i, s := range specs {
		lines[i] = s.Line()
	}
	return &Manifest{
		SessionID:    core.NewSessionID(),
		Participant:  p.ID,
		SessionNo:    p.Session,
		RunNo:        p.Run,
		Mode:         cfg.Mode,
		Seed:         seed,
		TrialCount:   len(specs),
		SequenceHash: core.ComputeSequenceHash(lines),
		ConfigJSON:   string(raw),
		Status:       StatusRunning,
		StartedAt:    core.Now(),
	}, nil
}
