package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SourceFingerprint identifies one corpus file by content.
type SourceFingerprint struct {
	Name   string `json:"name" yaml:"name"`
	Size   int    `json:"size" yaml:"size"`
	SHA256 string `json:"sha256" yaml:"sha256"`
}

func FingerprintSource(name, content string) SourceFingerprint {
	sum := sha256.Sum256([]byte(content))
	return SourceFingerprint{
		Name:   name,
		Size:   len(content),
		SHA256: hex.EncodeToString(sum[:]),
	}
}

// IndexManifest describes a persisted index and the inputs it was built from.
type IndexManifest struct {
	BuildID        string              `json:"build_id" yaml:"build_id"`
	EmbeddingModel string              `json:"embedding_model" yaml:"embedding_model"`
	Dimension      int                 `json:"dimension" yaml:"dimension"`
	ChunkSize      int                 `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap   int                 `json:"chunk_overlap" yaml:"chunk_overlap"`
	Sources        []SourceFingerprint `json:"sources" yaml:"sources"`
	Fingerprint    string              `json:"fingerprint" yaml:"fingerprint"`
	Location       string              `json:"location" yaml:"location"`
	ChunkCount     int                 `json:"chunk_count" yaml:"chunk_count"`
	BuiltAt        time.Time           `json:"built_at" yaml:"built_at"`
}

// Seal sorts sources and computes the fingerprint over every build input.
func (m *IndexManifest) Seal() {
	sort.Slice(m.Sources, func(i, j int) bool { return m.Sources[i].Name < m.Sources[j].Name })

	var b strings.Builder
	b.WriteString("model=" + m.EmbeddingModel + "\n")
	b.WriteString("chunk_size=" + strconv.Itoa(m.ChunkSize) + "\n")
	b.WriteString("chunk_overlap=" + strconv.Itoa(m.ChunkOverlap) + "\n")
	for _, src := range m.Sources {
		b.WriteString("source=" + src.Name + ":" + src.SHA256 + "\n")
	}
	sum := sha256.Sum256([]byte(b.String()))
	m.Fingerprint = hex.EncodeToString(sum[:])
}

// Verify reports ErrStaleIndex when the persisted manifest was built from
// different inputs than expected.
func (m IndexManifest) Verify(expected IndexManifest) error {
	if m.Fingerprint == expected.Fingerprint {
		return nil
	}

	var reasons []string
	if m.EmbeddingModel != expected.EmbeddingModel {
		reasons = append(reasons, fmt.Sprintf("embedding model %q != %q", m.EmbeddingModel, expected.EmbeddingModel))
	}
	if m.ChunkSize != expected.ChunkSize || m.ChunkOverlap != expected.ChunkOverlap {
		reasons = append(reasons, fmt.Sprintf("chunking %d/%d != %d/%d", m.ChunkSize, m.ChunkOverlap, expected.ChunkSize, expected.ChunkOverlap))
	}
	if diff := diffSources(m.Sources, expected.Sources); diff != "" {
		reasons = append(reasons, diff)
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "fingerprint changed")
	}
	return WrapError(ErrStaleIndex, "verify manifest", fmt.Errorf("%s", strings.Join(reasons, "; ")))
}

func diffSources(have, want []SourceFingerprint) string {
	haveByName := make(map[string]string, len(have))
	for _, src := range have {
		haveByName[src.Name] = src.SHA256
	}
	var added, changed []string
	for _, src := range want {
		hash, ok := haveByName[src.Name]
		switch {
		case !ok:
			added = append(added, src.Name)
		case hash != src.SHA256:
			changed = append(changed, src.Name)
		}
		delete(haveByName, src.Name)
	}
	removed := make([]string, 0, len(haveByName))
	for name := range haveByName {
		removed = append(removed, name)
	}
	sort.Strings(removed)

	var parts []string
	if len(added) > 0 {
		parts = append(parts, "added "+strings.Join(added, ","))
	}
	if len(changed) > 0 {
		parts = append(parts, "changed "+strings.Join(changed, ","))
	}
	if len(removed) > 0 {
		parts = append(parts, "removed "+strings.Join(removed, ","))
	}
	return strings.Join(parts, "; ")
}

// IndexRebuilt is published after a new index is committed.
type IndexRebuilt struct {
	BuildID     string    `json:"build_id"`
	Fingerprint string    `json:"fingerprint"`
	Location    string    `json:"location"`
	ChunkCount  int       `json:"chunk_count"`
	BuiltAt     time.Time `json:"built_at"`
}

func (m IndexManifest) RebuiltEvent() IndexRebuilt {
	return IndexRebuilt{
		BuildID:     m.BuildID,
		Fingerprint: m.Fingerprint,
		Location:    m.Location,
		ChunkCount:  m.ChunkCount,
		BuiltAt:     m.BuiltAt,
	}
}
