package client

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store ClientStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "b", []byte("two")))
	require.NoError(t, store.Set(ctx, "a", []byte("one")))
	require.NoError(t, store.Set(ctx, "a", []byte("uno")))

	v, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "uno", string(v))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirStore(dir)
	require.NoError(t, err)
	exerciseStore(t, store)

	// survives reopening
	again, err := NewDirStore(dir)
	require.NoError(t, err)
	v, ok, err := again.Get(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", string(v))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(mr.Addr(), "", 0)
	t.Cleanup(func() { store.Close() })
	exerciseStore(t, store)
}

func TestNamespacedIsolation(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	files := Namespaced(inner, "uploaded_files")
	exerciseStore(t, files)

	require.NoError(t, inner.Set(ctx, "other:x", []byte("1")))
	keys, err := files.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)

	raw, err := inner.Keys(ctx)
	require.NoError(t, err)
	assert.Contains(t, raw, "uploaded_files:b")
}

func TestStoredFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, saveFile(ctx, store, StoredFile{FileID: "f1", Filename: "a.txt", Content: []byte("hi")}))

	f, ok, err := loadFile(ctx, store, "f1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.txt", f.Filename)
	assert.Equal(t, []byte("hi"), f.Content)

	require.NoError(t, store.Set(ctx, "bad", []byte("{")))
	_, _, err = loadFile(ctx, store, "bad")
	assert.Error(t, err)
}
