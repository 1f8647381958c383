package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get([]byte("alpha"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put([]byte("alpha"), []byte("1")))
	v, err := store.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, store.Put([]byte("alpha"), []byte("2")))
	v, err = store.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)

	require.NoError(t, store.Delete([]byte("alpha")))
	_, err = store.Get([]byte("alpha"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Delete([]byte("never-existed")))
}

func TestReopenPersistsData(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}
