package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal/errors"
)

// isolate points DATA_DIR at an empty directory so no last_params.json leaks in
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("PMBR_CONFIG", "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, session.DefaultConfig(), cfg.Session)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, "pmbr.db"), cfg.Storage.URL)
	assert.Equal(t, "", cfg.Server.MonitorPort)
	assert.Equal(t, session.Participant{Session: 1, Run: 1}, cfg.Participant)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PMBR_SESSION_MODE", "P")
	t.Setenv("PMBR_SEED", "-1")
	t.Setenv("PMBR_ADAPTIVE_TIMING", "true")
	t.Setenv("PMBR_K_DEADLINE_MULTIPLIER", "2.5")
	t.Setenv("PMBR_BASE_DELAY_MS", "500")
	t.Setenv("PMBR_MAX_MOVEMENT1_WAIT_MS", "3000")
	t.Setenv("PMBR_DIRECTIONS", "up, down")
	t.Setenv("PMBR_PARTICIPANT_ID", "17")
	t.Setenv("PMBR_RUN", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, trial.ModePractice, cfg.Session.Mode)
	require.NotNil(t, cfg.Session.Seed)
	assert.Equal(t, session.SeedFromParticipant, *cfg.Session.Seed)
	assert.True(t, cfg.Session.AdaptiveTiming)
	assert.Equal(t, 2.5, cfg.Session.KDeadlineMultiplier)
	assert.Equal(t, int64(500), cfg.Session.BaseDelayMs)
	assert.Equal(t, int64(3000), cfg.Session.MaxMovement1WaitMs)
	assert.Equal(t, []trial.Direction{trial.DirectionUp, trial.DirectionDown}, cfg.Session.Directions)
	assert.Equal(t, session.Participant{ID: 17, Session: 1, Run: 2}, cfg.Participant)
}

func TestLoad_MalformedValueIsInvalidConfig(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PMBR_TRIAL_COUNT", "eighty"},
		{"PMBR_TRIAL_COUNT", "42"},
		{"PMBR_ADAPTIVE_TIMING", "sometimes"},
		{"PMBR_SESSION_MODE", "marathon"},
		{"PMBR_DIRECTIONS", "left,sideways"},
		{"PMBR_SEED", "abc"},
		{"PMBR_ONSET_THRESHOLD", "1.5"},
		{"PMBR_FULL_PUSH_THRESHOLD", "0.01"},
		{"PMBR_MAX_MOVEMENT_TIME_MS", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, core.IsInvalidConfig(err), "%v", err)
		})
	}
}

func TestLoad_UnsupportedDriver(t *testing.T) {
	isolate(t)
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session_mode: standard
trial_count: 120
blocks: 3
adaptive_timing: true
directions: [left, right, up, down]
`), 0644))

	cfg, err := LoadFile(path, session.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.TrialCount)
	assert.Equal(t, 3, cfg.Blocks)
	assert.True(t, cfg.AdaptiveTiming)
	assert.Len(t, cfg.Directions, 4)
	assert.Equal(t, int64(650), cfg.BaseDelayMs, "keys absent from the file keep defaults")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trial_count: [1, 2"), 0644))

	_, err := LoadFile(path, session.DefaultConfig())
	assert.True(t, core.IsInvalidConfig(err))
}

func TestLastParams_RoundTrip(t *testing.T) {
	dir := isolate(t)
	p := session.Participant{ID: 23, Session: 2, Run: 4}
	require.NoError(t, SaveLastParams(LastParamsPath(dir), p, trial.ModePractice))

	got, mode, ok := LoadLastParams(LastParamsPath(dir))
	require.True(t, ok)
	assert.Equal(t, p, got)
	assert.Equal(t, trial.ModePractice, mode)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, p, cfg.Participant, "the last participant is remembered")
	assert.Equal(t, trial.ModePractice, cfg.Session.Mode)
}

func TestLoadLastParams_MissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, _, ok := LoadLastParams(filepath.Join(dir, "none.json"))
	assert.False(t, ok)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, _, ok = LoadLastParams(path)
	assert.False(t, ok)
}
