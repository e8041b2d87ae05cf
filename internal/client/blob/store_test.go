package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/fieldsync/internal/common"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPut_AssignsDistinctAscendingIDs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	idA, err := s.Put(ctx, []byte("photo-a"))
	require.NoError(t, err)
	idB, err := s.Put(ctx, []byte("photo-b"))
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)
	assert.Greater(t, idB, idA)

	got, err := s.Get(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, []byte("photo-a"), got)
}

func TestGet_AbsentIDReturnsNotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.Get(context.Background(), 9999)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCapturedAt_SetOnPut(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.Put(ctx, []byte("photo"))
	require.NoError(t, err)

	ts, err := s.CapturedAt(ctx, id)
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	_, err = s.CapturedAt(ctx, id+1000)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete_IsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.Put(ctx, []byte("photo"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, common.ErrNotFound)

	// Second delete of the same id must not fail.
	require.NoError(t, s.Delete(ctx, id))

	// Deleting an id that never existed is fine too.
	require.NoError(t, s.Delete(ctx, 123456))
}

func TestIDsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	idA, err := s1.Put(ctx, []byte("photo-a"))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, []byte("photo-a"), got)

	idB, err := s2.Put(ctx, []byte("photo-b"))
	require.NoError(t, err)
	assert.Greater(t, idB, idA)
}
