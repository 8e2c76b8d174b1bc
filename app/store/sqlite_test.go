package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLite(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")
		s, err := NewSQLite(context.Background(), dbPath)
		require.NoError(t, err)
		assert.Equal(t, dbPath, s.String())
		require.NoError(t, s.Close())
	})

	t.Run("invalid path", func(t *testing.T) {
		s, err := NewSQLite(context.Background(), "/invalid/path/that/does/not/exist/test.db")
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestSQLite_CreateSchema(t *testing.T) {
	s := newTestStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='items'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// second call is a no-op and keeps the data
	_, err = s.Insert(context.Background(), "Widget", 9.99, 10)
	require.NoError(t, err)
	require.NoError(t, s.CreateSchema(context.Background()))
	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSQLite_WALMode(t *testing.T) {
	s := newTestStore(t)

	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestSQLite_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "Widget", 9.99, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: 1, Name: "Widget", Price: 9.99, Quantity: 10}}, items)

	require.NoError(t, s.Update(ctx, id, 12.50, 5))
	items, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: 1, Name: "Widget", Price: 12.50, Quantity: 5}}, items)

	require.NoError(t, s.Delete(ctx, id))
	items, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSQLite_ListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"c", "a", "b"} {
		_, err := s.Insert(ctx, name, 1, 1)
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(ctx, 2))
	_, err := s.Insert(ctx, "d", 2, 2)
	require.NoError(t, err)

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].ID, items[i].ID)
	}
	assert.Equal(t, "c", items[0].Name)
	assert.Equal(t, "d", items[2].Name)
}

func TestSQLite_UpdateKeepsOtherFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.Insert(ctx, "Widget", 9.99, 10)
	require.NoError(t, err)
	id2, err := s.Insert(ctx, "Gadget", 3.5, 7)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, id1, 0, 0))

	item, err := s.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, Item{ID: id1, Name: "Widget", Price: 0, Quantity: 0}, item)

	other, err := s.Get(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, Item{ID: id2, Name: "Gadget", Price: 3.5, Quantity: 7}, other)
}

func TestSQLite_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Update(ctx, 42, 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Delete(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_EmptyDatabase(t *testing.T) {
	s := newTestStore(t)

	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestSQLite_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// break the database by dropping the items table
	_, err := s.db.Exec("DROP TABLE items")
	require.NoError(t, err)

	items, err := s.List(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query items")
	assert.Nil(t, items)

	_, err = s.Insert(ctx, "Widget", 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert item")

	err = s.Update(ctx, 1, 1, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	err = s.Delete(ctx, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Backup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "Widget", 9.99, 10)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, s.Backup(ctx, dst))

	_, err = os.Stat(dst)
	require.NoError(t, err)

	restored, err := NewSQLite(ctx, dst)
	require.NoError(t, err)
	defer restored.Close()
	items, err := restored.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: 1, Name: "Widget", Price: 9.99, Quantity: 10}}, items)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLite(ctx, dbPath)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "Widget", 9.99, 10)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLite(ctx, dbPath)
	require.NoError(t, err)
	defer s.Close()
	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget", items[0].Name)
}
