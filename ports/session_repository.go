package ports

import (
	"context"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
)

// SessionRepository defines the interface for session data operations
type SessionRepository interface {
	// CreateSession stores the manifest before the first trial runs
	CreateSession(ctx context.Context, m *session.Manifest) error

	// CompleteSession records the final status of a session
	CompleteSession(ctx context.Context, id core.SessionID, status session.Status) error

	// GetSession retrieves a session manifest
	GetSession(ctx context.Context, id core.SessionID) (*session.Manifest, error)

	// ListSessions returns sessions newest first, optionally limited
	ListSessions(ctx context.Context, limit int) ([]*session.Manifest, error)

	// ListTrials returns a session's records in trial order
	ListTrials(ctx context.Context, id core.SessionID) ([]trial.Record, error)
}
