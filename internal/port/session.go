package port

import "github.com/mkarpin/blobfetch/internal/domain"

// SessionStore persists download sessions so an interrupted transfer can be
// resumed after a process restart. The engine treats it as optional
// bookkeeping: a nil store disables persistence, and store failures never
// fail a transfer.
type SessionStore interface {
	// Save upserts the session checkpoint for its object.
	Save(session domain.DownloadSession) error

	// Get returns the persisted session for an object.
	// Returns domain.ErrSessionNotFound when none exists.
	Get(containerName, objectName string) (domain.DownloadSession, error)

	// Delete removes the session for an object once the transfer reaches a
	// terminal outcome.
	Delete(containerName, objectName string) error

	// ListPending returns all persisted sessions.
	ListPending() ([]domain.DownloadSession, error)
}
