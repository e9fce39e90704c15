package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

const schemaLockID int64 = 2026021001

// ManifestRepository keeps every index build; the most recent one is current.
type ManifestRepository struct {
	db *sql.DB
}

func NewManifestRepository(db *sql.DB) *ManifestRepository {
	return &ManifestRepository{db: db}
}

func (r *ManifestRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/indexer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS index_manifests (
	build_id TEXT PRIMARY KEY,
	embedding_model TEXT NOT NULL,
	dimension INTEGER NOT NULL,
	chunk_size INTEGER NOT NULL,
	chunk_overlap INTEGER NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	fingerprint TEXT NOT NULL,
	location TEXT NOT NULL,
	chunk_count INTEGER NOT NULL,
	built_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_index_manifests_built_at ON index_manifests(built_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ManifestRepository) Load(ctx context.Context) (domain.IndexManifest, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT build_id, embedding_model, dimension, chunk_size, chunk_overlap, sources, fingerprint, location, chunk_count, built_at
FROM index_manifests
ORDER BY built_at DESC
LIMIT 1
`)

	var m domain.IndexManifest
	var sourcesRaw []byte
	err := row.Scan(
		&m.BuildID, &m.EmbeddingModel, &m.Dimension, &m.ChunkSize, &m.ChunkOverlap,
		&sourcesRaw, &m.Fingerprint, &m.Location, &m.ChunkCount, &m.BuiltAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IndexManifest{}, domain.WrapError(domain.ErrNotFound, "load manifest", err)
		}
		return domain.IndexManifest{}, fmt.Errorf("scan manifest: %w", err)
	}
	if err := json.Unmarshal(sourcesRaw, &m.Sources); err != nil {
		return domain.IndexManifest{}, fmt.Errorf("unmarshal sources: %w", err)
	}
	return m, nil
}

func (r *ManifestRepository) Save(ctx context.Context, m domain.IndexManifest) error {
	sourcesJSON, err := json.Marshal(m.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO index_manifests (
	build_id, embedding_model, dimension, chunk_size, chunk_overlap, sources, fingerprint, location, chunk_count, built_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (build_id) DO UPDATE SET
	location = EXCLUDED.location,
	chunk_count = EXCLUDED.chunk_count,
	built_at = EXCLUDED.built_at
`,
		m.BuildID, m.EmbeddingModel, m.Dimension, m.ChunkSize, m.ChunkOverlap, sourcesJSON,
		m.Fingerprint, m.Location, m.ChunkCount, m.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("insert manifest: %w", err)
	}
	return nil
}
