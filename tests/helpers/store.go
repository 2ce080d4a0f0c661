// Package helpers provides shared test setup.
package helpers

import (
	"testing"

	"github.com/Tom-dlhy/local-llm-consensus-engine/store"
)

// NewTestSQLiteStore creates an in-memory SQLite store that is closed when
// the test ends.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
