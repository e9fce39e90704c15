package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/storage/localfs"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(localfs.New(dir), "")

	m := domain.IndexManifest{
		BuildID:        "b1",
		EmbeddingModel: "ollama/nomic-embed-text",
		Dimension:      768,
		ChunkSize:      800,
		ChunkOverlap:   200,
		Sources:        []domain.SourceFingerprint{domain.FingerprintSource("playdate1.txt", "hello")},
		Location:       filepath.Join(dir, "index-b1.gob"),
		ChunkCount:     12,
		BuiltAt:        time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	m.Seal()

	require.NoError(t, store.Save(context.Background(), m))
	_, err := os.Stat(filepath.Join(dir, DefaultKey))
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.Fingerprint, got.Fingerprint)
	assert.Equal(t, m.Sources, got.Sources)
	assert.True(t, m.BuiltAt.Equal(got.BuiltAt))
	assert.NoError(t, got.Verify(m))
}

func TestStoreLoadMissing(t *testing.T) {
	store := New(localfs.New(t.TempDir()), "")
	_, err := store.Load(context.Background())
	assert.True(t, domain.IsKind(err, domain.ErrNotFound), "got %v", err)
}

func TestStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.yaml"), []byte("build_id: [unterminated"), 0o644))

	_, err := New(localfs.New(dir), "m.yaml").Load(context.Background())
	require.Error(t, err)
	assert.False(t, domain.IsKind(err, domain.ErrNotFound))
}
