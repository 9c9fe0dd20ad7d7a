package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailnotify/internal/store"
	"github.com/nhle/mailnotify/tests/testutil"
)

func TestIDSet(t *testing.T) {
	s := store.NewIDSet("b", "a")
	s.Add("c")
	s.Add("a")

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("z"))
	assert.Equal(t, []string{"a", "b", "c"}, s.Sorted())
}

// backends runs fn against a fresh store of every backend.
func backends(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Run("json", func(t *testing.T) {
		s, _ := testutil.NewTestJSONStore(t)
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, testutil.NewTestStore(t))
	})
}

func TestStoreEmptyLoad(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		ids, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, ids.Len())
	})
}

func TestStoreAddThenLoad(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		require.NoError(t, s.Add(ctx, "<one@example.com>"))
		require.NoError(t, s.Add(ctx, "uid:7|date:Mon|from:a@x.com"))
		require.NoError(t, s.Add(ctx, "<one@example.com>"))

		ids, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"<one@example.com>", "uid:7|date:Mon|from:a@x.com"}, ids.Sorted())

		ts, ok := s.(store.Timestamped)
		require.True(t, ok)
		last, err := ts.LastUpdated(ctx)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), last, time.Minute)
	})
}

func TestJSONStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	first, path := testutil.NewTestJSONStore(t)
	require.NoError(t, first.Add(ctx, "X"))

	reopened := store.NewJSONStore(path)
	ids, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ids.Contains("X"))
}

func TestJSONStoreFileLayout(t *testing.T) {
	ctx := context.Background()
	s, path := testutil.NewTestJSONStore(t)
	require.NoError(t, s.Add(ctx, "a"))
	require.NoError(t, s.Add(ctx, "b"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `["a","b"]`, string(doc["processed_ids"]))

	var last time.Time
	require.NoError(t, json.Unmarshal(doc["last_updated"], &last))
	assert.False(t, last.IsZero())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestJSONStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	s, path := testutil.NewTestJSONStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, store.ErrCorruptState)

	require.NoError(t, s.Add(ctx, "fresh"))

	ids, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids.Sorted())

	backup, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestJSONStoreEmptyFile(t *testing.T) {
	s, path := testutil.NewTestJSONStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	ids, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ids.Len())
}

func TestJSONStoreCanceledContext(t *testing.T) {
	s, _ := testutil.NewTestJSONStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Add(ctx, "x"), context.Canceled)
}

func TestSQLiteStoreProcessedRecords(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	require.NoError(t, s.Add(ctx, "first"))
	require.NoError(t, s.Add(ctx, "second"))

	rows, err := s.Processed(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.ElementsMatch(t, []string{"first", "second"}, []string{rows[0].ID, rows[1].ID})
	assert.False(t, rows[0].NotifiedAt.IsZero())
}

func TestSQLiteStoreReopenKeepsSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, "X"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	ids, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ids.Contains("X"))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := store.Open("", filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.IsType(t, &store.JSONStore{}, s)

	s, err = store.Open(store.BackendSQLite, filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = store.Open("redis", "")
	assert.Error(t, err)
}
