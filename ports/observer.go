package ports

import (
	"pmbr/domain/session"
	"pmbr/domain/trial"
)

// SessionObserver is notified synchronously from the runner's loop. Implementations
// must not block.
type SessionObserver interface {
	SessionStarted(m session.Manifest)
	TrialResolved(rec trial.Record)
	SessionEnded(status session.Status)
}
