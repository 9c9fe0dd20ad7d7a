package testutil

import (
	"path/filepath"
	"testing"

	"github.com/nhle/mailnotify/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestJSONStore returns a JSONStore whose file lives in a per-test temp
// directory, along with the file path.
func NewTestJSONStore(t *testing.T) (*store.JSONStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state", "processed_emails.json")
	return store.NewJSONStore(path), path
}
