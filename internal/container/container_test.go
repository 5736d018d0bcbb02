package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal/config"
	"pmbr/internal/errors"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Session: session.DefaultConfig(),
		Storage: config.StorageConfig{
			DataDir: dir,
			Driver:  "sqlite3",
			URL:     filepath.Join(dir, "db", "pmbr.db"),
		},
		Logging: config.LoggingConfig{Level: "ERROR"},
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := New(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, c.Logger)
	require.NotNil(t, c.RNG)

	_, err = c.TrialWriter(core.NewSessionID())
	assert.Error(t, err, "writer before database init")

	require.NoError(t, c.InitWithDatabase(ctx))
	t.Cleanup(func() { _ = c.Shutdown() })

	m, err := session.NewManifest(session.Participant{ID: 5, Session: 1, Run: 1}, session.DefaultConfig(), 5, nil)
	require.NoError(t, err)
	require.NoError(t, c.SessionRepo.CreateSession(ctx, m))

	w, err := c.TrialWriter(m.SessionID)
	require.NoError(t, err)
	spec := trial.TrialSpec{Index: 0, Block: 1, Condition: trial.ConditionCatch, TargetDelayMs: 1500}
	require.NoError(t, w.Record(ctx, trial.TrialResult{Outcome: trial.OutcomeNoResponse}, spec))

	records, err := c.SessionRepo.ListTrials(ctx, m.SessionID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, trial.OutcomeNoResponse, records[0].Outcome)
}

func TestContainer_UnsupportedDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "mysql"
	c, err := New(cfg)
	require.NoError(t, err)
	err = c.InitWithDatabase(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
}
