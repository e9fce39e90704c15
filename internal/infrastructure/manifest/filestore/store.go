// Package filestore keeps the index manifest as a YAML document next to the
// index files.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

const DefaultKey = "manifest.yaml"

type Store struct {
	storage ports.ObjectStorage
	key     string
}

func New(storage ports.ObjectStorage, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{storage: storage, key: key}
}

// Load returns ErrNotFound when no manifest has been written yet.
func (s *Store) Load(ctx context.Context) (domain.IndexManifest, error) {
	rc, err := s.storage.Open(ctx, s.key)
	if err != nil {
		return domain.IndexManifest{}, fmt.Errorf("open manifest: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return domain.IndexManifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m domain.IndexManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return domain.IndexManifest{}, fmt.Errorf("decode manifest %s: %w", s.key, err)
	}
	return m, nil
}

func (s *Store) Save(ctx context.Context, m domain.IndexManifest) error {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.storage.Save(ctx, s.key, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
