package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sealedManifest(sources ...SourceFingerprint) IndexManifest {
	m := IndexManifest{
		EmbeddingModel: "ollama/all-minilm",
		ChunkSize:      800,
		ChunkOverlap:   200,
		Sources:        sources,
	}
	m.Seal()
	return m
}

func TestSealIsOrderIndependent(t *testing.T) {
	a := FingerprintSource("playdate1.txt", "one")
	b := FingerprintSource("playdate2.txt", "two")

	assert.Equal(t, sealedManifest(a, b).Fingerprint, sealedManifest(b, a).Fingerprint)
}

func TestVerifyAcceptsIdenticalInputs(t *testing.T) {
	src := FingerprintSource("playdate1.txt", "one")
	require.NoError(t, sealedManifest(src).Verify(sealedManifest(src)))
}

func TestVerifyDetectsChangedSource(t *testing.T) {
	persisted := sealedManifest(FingerprintSource("playdate1.txt", "one"))
	current := sealedManifest(FingerprintSource("playdate1.txt", "one, edited"))

	err := persisted.Verify(current)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrStaleIndex))
	assert.Contains(t, err.Error(), "changed playdate1.txt")
}

func TestVerifyDetectsChunkingChange(t *testing.T) {
	src := FingerprintSource("playdate1.txt", "one")
	persisted := sealedManifest(src)
	current := sealedManifest(src)
	current.ChunkOverlap = 100
	current.Seal()

	err := persisted.Verify(current)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunking 800/200 != 800/100")
}

func TestVerifyDetectsAddedAndRemovedSources(t *testing.T) {
	persisted := sealedManifest(FingerprintSource("playdate1.txt", "one"))
	current := sealedManifest(FingerprintSource("playdate2.txt", "two"))

	err := persisted.Verify(current)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "added playdate2.txt")
	assert.Contains(t, err.Error(), "removed playdate1.txt")
}

func TestIndexTextCarriesEpisodeHeader(t *testing.T) {
	doc := Document{RawText: "hello", PodcastName: DefaultPodcastName, EpisodeLabel: "12"}
	assert.Equal(t, "This is from Will and Rusty's Playdate podcast, Episode 12.\n\nhello", doc.IndexText())
}
