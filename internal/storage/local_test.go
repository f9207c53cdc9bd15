package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_WriteAndOverwrite(t *testing.T) {
	base := t.TempDir()
	store := NewLocalStore(base, "/uploads/designs/")
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.EnsureDir(ctx, id, AreaFiles))
	require.NoError(t, store.EnsureDir(ctx, id, AreaFiles)) // idempotent

	url, err := store.Write(ctx, id, AreaFiles, "design_pes.pes", strings.NewReader("v1"), 2, "")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/designs/"+id.String()+"/files/design_pes.pes", url)

	_, err = store.Write(ctx, id, AreaFiles, "design_pes.pes", strings.NewReader("v2"), 2, "")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(base, id.String(), "files", "design_pes.pes"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(filepath.Join(base, id.String(), "files"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLocalStore_WriteRequiresDir(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/uploads/designs")
	_, err := store.Write(context.Background(), uuid.New(), AreaImages, "a.png", strings.NewReader("x"), 1, "image/png")
	assert.Error(t, err)
}

func TestLocalStore_RejectsEscapingNames(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/uploads/designs")
	id := uuid.New()
	require.NoError(t, store.EnsureDir(context.Background(), id, AreaImages))

	for _, name := range []string{"../evil.png", "a/b.png", "..", "", `a\b.png`} {
		_, err := store.Write(context.Background(), id, AreaImages, name, strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestLocalStore_RemoveAll(t *testing.T) {
	base := t.TempDir()
	store := NewLocalStore(base, "/uploads/designs")
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.EnsureDir(ctx, id, AreaImages))
	_, err := store.Write(ctx, id, AreaImages, "a.png", strings.NewReader("x"), 1, "image/png")
	require.NoError(t, err)

	require.NoError(t, store.RemoveAll(ctx, id))
	_, err = os.Stat(filepath.Join(base, id.String()))
	assert.True(t, os.IsNotExist(err))

	// Removing a design without assets is not an error.
	assert.NoError(t, store.RemoveAll(ctx, uuid.New()))
}

func TestMinioStore_URL(t *testing.T) {
	store, err := NewMinioStore("localhost:9000", "key", "secret", "designs", false, "")
	require.NoError(t, err)

	key, err := objectKey(uuid.MustParse("6f1c1a52-8d3e-4a55-9d7c-1b0c7d3e2f10"), AreaImages, "image_1.png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/designs/6f1c1a52-8d3e-4a55-9d7c-1b0c7d3e2f10/images/image_1.png", store.URL(key))

	store, err = NewMinioStore("s3.internal:9000", "key", "secret", "designs", true, "https://cdn.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/designs/x", store.URL("x"))
}
