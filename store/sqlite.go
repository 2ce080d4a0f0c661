package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
)

// SQLiteStore implements Store using SQLite. It is the optional durable
// variant; the session aggregate is stored as one JSON snapshot per row, so
// a commit stays a single atomic UPDATE.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		stage TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		snapshot TEXT NOT NULL
	)`)
	return err
}

// CreateSession stores a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	snapshot, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, query, stage, created_at, updated_at, snapshot)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.Query, string(session.Stage),
		session.CreatedAt, session.UpdatedAt, string(snapshot),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession returns a snapshot of the session.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(snapshot), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ListSessions returns summaries of all sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, query, stage, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var summaries []domain.SessionSummary
	for rows.Next() {
		var sum domain.SessionSummary
		var stage string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&sum.SessionID, &sum.Query, &stage, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.Stage = domain.Stage(stage)
		sum.CreatedAt = createdAt
		sum.UpdatedAt = updatedAt
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// CommitSession atomically replaces the stored session with the snapshot.
func (s *SQLiteStore) CommitSession(ctx context.Context, session *domain.Session) error {
	snapshot, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET stage = ?, updated_at = ?, snapshot = ? WHERE session_id = ?`,
		string(session.Stage), session.UpdatedAt, string(snapshot), session.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint failures in the message; checking
	// the text avoids importing the driver's error type here.
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY must be unique"))
}
