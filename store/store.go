// Package store defines the session storage interface and implementations.
package store

import (
	"context"
	"errors"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// ErrAlreadyExists is returned when creating a session with a taken ID.
var ErrAlreadyExists = errors.New("session already exists")

// Store owns the canonical copy of every session. Writes go through the
// orchestrator only; reads return snapshots that are safe to hand out.
type Store interface {
	// CreateSession stores a new session.
	CreateSession(ctx context.Context, session *domain.Session) error
	// GetSession returns a deep snapshot of the session.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	// ListSessions returns summaries of all sessions, newest first.
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)
	// CommitSession atomically replaces the stored session with the given
	// snapshot. One commit per stage transition.
	CommitSession(ctx context.Context, session *domain.Session) error

	// Lifecycle
	Close() error
}
