package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/tts-cache/internal/core"
	"github.com/book-expert/tts-cache/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ core.BlobStore = (*objectstore.NatsObjectStore)(nil)
	_ core.BlobStore = (*objectstore.FSObjectStore)(nil)
	_ core.BlobStore = (*objectstore.MemoryObjectStore)(nil)
)

func TestFSObjectStore_Lifecycle(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "public", "tts")
	store, err := objectstore.NewFSObjectStore(root)
	require.NoError(t, err)

	ctx := context.Background()
	key := "article-7_deadbeef.mp3"

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Download(ctx, key)
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)

	require.NoError(t, store.Upload(ctx, key, []byte("first")))
	require.NoError(t, store.Upload(ctx, key, []byte("second")))

	data, err := store.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	onDisk, err := os.ReadFile(filepath.Join(root, key))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), onDisk)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFSObjectStore_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	store, err := objectstore.NewFSObjectStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../etc/passwd", "a/b.mp3", `a\b.mp3`, ".hidden"} {
		err := store.Upload(context.Background(), key, []byte("x"))
		require.ErrorIs(t, err, objectstore.ErrInvalidKey, "key %q", key)
	}
}

func TestMemoryObjectStore_Lifecycle(t *testing.T) {
	t.Parallel()

	store := objectstore.NewMemoryObjectStore()
	ctx := context.Background()

	payload := []byte("audio")
	require.NoError(t, store.Upload(ctx, "b.mp3", payload))
	require.NoError(t, store.Upload(ctx, "a.mp3", []byte("other")))

	payload[0] = 'X'

	data, err := store.Download(ctx, "b.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), data, "store keeps its own copy")
	assert.Equal(t, []string{"a.mp3", "b.mp3"}, store.Keys())

	require.NoError(t, store.Delete(ctx, "b.mp3"))

	exists, err := store.Exists(ctx, "b.mp3")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Download(ctx, "b.mp3")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)
}
