package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
)

// LastParamsPath is where the most recently entered participant is remembered, so the
// operator does not retype it between runs.
func LastParamsPath(dataDir string) string {
	return filepath.Join(dataDir, "last_params.json")
}

type lastParams struct {
	Participant session.Participant `json:"participant"`
	Mode        trial.SessionMode   `json:"session_mode"`
	SavedAt     time.Time           `json:"saved_at"`
}

// SaveLastParams writes p and mode to path
func SaveLastParams(path string, p session.Participant, mode trial.SessionMode) error {
	data, err := json.MarshalIndent(lastParams{Participant: p, Mode: mode, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadLastParams reads what SaveLastParams wrote. A missing or unreadable file reports
// false; fields that are absent or malformed fall back individually.
func LoadLastParams(path string) (session.Participant, trial.SessionMode, bool) {
	data, err := os.ReadFile(path)
	if err != nil || !gjson.ValidBytes(data) {
		return session.Participant{}, "", false
	}

	p := session.Participant{Session: 1, Run: 1}
	result := gjson.GetManyBytes(data, "participant.id", "participant.session", "participant.run", "session_mode")
	if result[0].Exists() {
		p.ID = core.ParticipantID(result[0].Int())
	}
	if result[1].Int() > 0 {
		p.Session = int(result[1].Int())
	}
	if result[2].Int() > 0 {
		p.Run = int(result[2].Int())
	}

	mode, err := trial.ParseSessionMode(result[3].String())
	if err != nil {
		mode = trial.ModeStandard
	}
	return p, mode, true
}
