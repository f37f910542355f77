package pgstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/task-sync-client/internal/store"
	"github.com/BuzzLyutic/task-sync-client/internal/testutil"
)

func TestStore_RoundTrip(t *testing.T) {
	pool, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	testutil.TruncateSnapshots(t, pool)

	ctx := context.Background()
	s := New(pool)
	require.NoError(t, s.EnsureSchema(ctx))

	_, err := s.Get(ctx, store.KeyToken)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, store.SaveValue(ctx, s, store.KeyToken, "tok-1"))
	require.NoError(t, store.SaveValue(ctx, s, store.KeyToken, "tok-2"))

	v, ok, err := store.ReadValue[string](ctx, s, store.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", v)

	require.NoError(t, s.Delete(ctx, store.KeyToken))
	_, err = s.Get(ctx, store.KeyToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Lists(t *testing.T) {
	pool, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	testutil.TruncateSnapshots(t, pool)

	ctx := context.Background()
	s := New(pool)

	require.NoError(t, store.AppendAndSave(ctx, s, "items:personal", map[string]int{"id": 1}))
	require.NoError(t, store.AppendAndSave(ctx, s, "items:personal", map[string]int{"id": 2}))

	list, err := store.ReadList[map[string]int](ctx, s, "items:personal")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[1]["id"])
}

func TestStore_InvalidJSON(t *testing.T) {
	pool, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	err := New(pool).Set(context.Background(), "broken", []byte("{nope"))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}
