package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s KeyValueStore) {
	t.Helper()

	_, err := s.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put("k", []byte("v1")))
	got, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Put("k", []byte("v2")))
	got, err = s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error.
	require.NoError(t, s.Delete("never-existed"))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	v := []byte("original")
	require.NoError(t, s.Put("k", v))
	v[0] = 'X'

	got, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again)
}

func TestSQLStore(t *testing.T) {
	s, err := OpenSQLStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestSQLStorePersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/kv.db"

	s, err := OpenSQLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("identity/seed", []byte("seed bytes")))
	require.NoError(t, s.Close())

	s, err = OpenSQLStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("identity/seed")
	require.NoError(t, err)
	require.Equal(t, []byte("seed bytes"), got)
}
