package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"pmbr/adapters/rng"
	"pmbr/adapters/sqlstore"
	"pmbr/domain/core"
	"pmbr/internal"
	"pmbr/internal/config"
	"pmbr/internal/errors"
	"pmbr/ports"
)

// Container holds the shared dependencies of the pmbr binaries and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB  *sqlx.DB
	RNG *rng.SeededAdapter

	// Repositories
	SessionRepo ports.SessionRepository
}

// New creates a container with the logger the configuration asks for
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Container{
		Config: cfg,
		Logger: logger,
		RNG:    rng.NewSeededAdapter(),
	}, nil
}

// newLogger honours LOG_LEVEL and, when LOG_DIR is set, rotates into that directory
func newLogger(cfg config.LoggingConfig) (*internal.Logger, error) {
	level := internal.ParseLogLevel(cfg.Level)
	if cfg.Dir == "" {
		return internal.NewLogger(level), nil
	}
	return internal.NewFileLogger(level, cfg.Dir)
}

// InitWithDatabase connects to the configured store, applies migrations and builds the
// repositories on top of it
func (c *Container) InitWithDatabase(ctx context.Context) error {
	storage := c.Config.Storage
	if storage.Driver == "sqlite3" && storage.URL != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(storage.URL), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlstore.Open(ctx, storage.Driver, storage.URL)
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("database connection failed: %w", err))
	}
	c.DB = db
	c.SessionRepo = sqlstore.NewSessionRepository(db)

	c.Logger.Debug("container initialized with %s store at %s", storage.Driver, storage.URL)
	return nil
}

// TrialWriter returns a database sink for one session's records
func (c *Container) TrialWriter(sessionID core.SessionID) (*sqlstore.TrialWriter, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return sqlstore.NewTrialWriter(c.DB, sessionID), nil
}

// Shutdown closes the database and flushes the logger
func (c *Container) Shutdown() error {
	var err error
	if c.DB != nil {
		err = c.DB.Close()
	}
	_ = c.Logger.Sync()
	return err
}
