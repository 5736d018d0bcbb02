package migration

import (
	"context"
	"fmt"

	"pmbr/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations for Postgres and SQLite
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.2.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every step is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, err)
	}

	if err := r.createSessionsTable(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to create sessions table")
	}

	if err := r.createTrialsTable(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to create trials table")
	}

	if err := r.addMovementColumns(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to add movement columns")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	if err := r.recordVersion(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}

	return nil
}

// dialect holds the column types that differ between the supported drivers
type dialect struct {
	timestamp string
	bigint    string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return dialect{timestamp: "TIMESTAMP WITH TIME ZONE", bigint: "BIGINT"}, nil
	case "sqlite3":
		return dialect{timestamp: "TIMESTAMP", bigint: "INTEGER"}, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

func (r *MigrationRunner) createSessionsTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			participant_id INTEGER NOT NULL,
			session_no INTEGER NOT NULL DEFAULT 1,
			run_no INTEGER NOT NULL DEFAULT 1,
			mode VARCHAR(20) NOT NULL,
			seed %[2]s NOT NULL,
			trial_count INTEGER NOT NULL,
			sequence_hash VARCHAR(64) NOT NULL,
			config_json TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			started_at %[1]s NOT NULL,
			completed_at %[1]s
		)
	`, d.timestamp, d.bigint))
	return err
}

func (r *MigrationRunner) createTrialsTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS trials (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			trial_index INTEGER NOT NULL,
			block INTEGER NOT NULL,
			condition VARCHAR(40) NOT NULL,
			direction1 VARCHAR(10),
			direction2 VARCHAR(10),
			target_delay_ms %[2]s NOT NULL,
			applied_delay_ms %[2]s NOT NULL,
			movement1_onset_ms %[2]s,
			movement2_onset_ms %[2]s,
			go_cue_ms %[2]s,
			deadline_ms %[2]s,
			outcome VARCHAR(20) NOT NULL,
			measured_rt_ms %[2]s,
			movement2_end_ms %[2]s,
			movement_time_ms %[2]s,
			recorded_at %[1]s NOT NULL,
			PRIMARY KEY (session_id, trial_index)
		)
	`, d.timestamp, d.bigint))
	return err
}

// addMovementColumns upgrades trials tables created before schema 1.2.0
func (r *MigrationRunner) addMovementColumns(ctx context.Context, db *sqlx.DB, d dialect) error {
	for _, col := range []string{"movement2_end_ms", "movement_time_ms"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`SELECT %s FROM trials LIMIT 1`, col)); err == nil {
			continue
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE trials ADD COLUMN %s %s`, col, d.bigint)); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sessions_participant ON sessions(participant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trials_condition ON trials(session_id, condition)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB, d dialect) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version VARCHAR(20) PRIMARY KEY,
			applied_at %s NOT NULL
		)
	`, d.timestamp)); err != nil {
		return err
	}

	var count int
	if err := db.GetContext(ctx, &count, db.Rebind(`SELECT COUNT(*) FROM schema_version WHERE version = ?`), r.version); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`), r.version)
	return err
}

// AppliedVersions lists the schema versions recorded in db
func AppliedVersions(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var versions []string
	err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_version ORDER BY version`)
	return versions, err
}
