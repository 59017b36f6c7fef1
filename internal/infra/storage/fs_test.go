package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutFetchRoundtrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	ref, err := store.Put(ctx, "acme/abc123", []byte("document bytes"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "acme/abc123", ref)

	got, err := store.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("document bytes"), got)
}

func TestFileStore_NestedKeyCreatesDirs(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)
	ctx := context.Background()

	_, err := store.Put(ctx, "tenant/2026/03/doc", []byte("x"), "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "tenant", "2026", "03", "doc"))
	assert.NoError(t, err)
}

func TestFileStore_PutOverwritesSameKey(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Put(ctx, "acme/doc", []byte("v1"), "")
	require.NoError(t, err)
	_, err = store.Put(ctx, "acme/doc", []byte("v2"), "")
	require.NoError(t, err)

	got, err := store.Fetch(ctx, "acme/doc")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestFileStore_FetchMissingRef(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.Fetch(context.Background(), "acme/never-stored")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStore_PingCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-yet-created")
	store := NewFileStore(root)

	require.NoError(t, store.Ping(context.Background()))

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
