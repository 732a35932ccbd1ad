package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "originals", "a.jpg", bytes.NewReader([]byte("a"))))
	require.NoError(t, s.Put(ctx, "originals", "b.jpg", bytes.NewReader([]byte("b"))))

	r, err := s.Get(ctx, "originals", "a.jpg")
	require.NoError(t, err)
	got, _ := io.ReadAll(r)
	r.Close()
	assert.Equal(t, []byte("a"), got)

	names, err := s.List(ctx, "originals")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)

	names, err = s.List(ctx, "thumbnails")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "originals", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetMetadata(ctx, "originals", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.SetMetadata(ctx, "originals", "missing", map[string]string{"k": "v"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_MetadataIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "originals", "a.jpg", bytes.NewReader([]byte("a"))))

	set := map[string]string{"Caption": "a"}
	require.NoError(t, s.SetMetadata(ctx, "originals", "a.jpg", set))
	set["Caption"] = "mutated"

	meta, err := s.GetMetadata(ctx, "originals", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "a", meta["Caption"])

	// Mutating the returned map must not touch stored state either
	meta["Caption"] = "mutated again"
	meta2, err := s.GetMetadata(ctx, "originals", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "a", meta2["Caption"])
}

func TestMemoryStore_OverwriteClearsMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "originals", "a.jpg", bytes.NewReader([]byte("v1"))))
	require.NoError(t, s.SetMetadata(ctx, "originals", "a.jpg", map[string]string{"Caption": "old"}))
	require.NoError(t, s.Put(ctx, "originals", "a.jpg", bytes.NewReader([]byte("v2"))))

	meta, err := s.GetMetadata(ctx, "originals", "a.jpg")
	require.NoError(t, err)
	assert.Empty(t, meta)
}
