package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

const DefaultEmbedBatchSize = 32

type BuildOptions struct {
	BatchSize int
	// Dimension is the declared embedding size. Zero adopts the size of the
	// first returned vector.
	Dimension int
}

// BuiltIndex is a committed index together with its manifest.
type BuiltIndex struct {
	Index    ports.VectorIndex
	Manifest domain.IndexManifest
	Reused   bool
}

type BuildIndexUseCase struct {
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.IndexStore
	manifests ports.ManifestStore
	opts      BuildOptions
}

func NewBuildIndexUseCase(
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.IndexStore,
	manifests ports.ManifestStore,
	opts BuildOptions,
) *BuildIndexUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultEmbedBatchSize
	}
	return &BuildIndexUseCase{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		manifests: manifests,
		opts:      opts,
	}
}

// Build returns the persisted index when it was built from exactly these
// documents and parameters, and otherwise builds a new one from scratch.
// A failed build never replaces the persisted index.
func (uc *BuildIndexUseCase) Build(ctx context.Context, docs []domain.Document, force bool) (*BuiltIndex, error) {
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "build index", errors.New("no documents"))
	}

	expected := uc.expectedManifest(docs)
	if !force {
		if built, ok := uc.tryReuse(ctx, expected); ok {
			return built, nil
		}
	}
	return uc.rebuild(ctx, docs, expected)
}

// Open loads the persisted index as recorded by the manifest store without
// checking it against a corpus.
func (uc *BuildIndexUseCase) Open(ctx context.Context) (*BuiltIndex, error) {
	manifest, err := uc.manifests.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	idx, err := uc.store.Open(ctx, manifest)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", manifest.Location, err)
	}
	return &BuiltIndex{Index: idx, Manifest: manifest, Reused: true}, nil
}

func (uc *BuildIndexUseCase) expectedManifest(docs []domain.Document) domain.IndexManifest {
	m := domain.IndexManifest{
		EmbeddingModel: uc.embedder.ModelID(),
		Dimension:      uc.opts.Dimension,
		ChunkSize:      uc.chunker.Size(),
		ChunkOverlap:   uc.chunker.Overlap(),
		Sources:        make([]domain.SourceFingerprint, 0, len(docs)),
	}
	for _, doc := range docs {
		m.Sources = append(m.Sources, domain.FingerprintSource(doc.SourceName, doc.IndexText()))
	}
	m.Seal()
	return m
}

func (uc *BuildIndexUseCase) tryReuse(ctx context.Context, expected domain.IndexManifest) (*BuiltIndex, bool) {
	persisted, err := uc.manifests.Load(ctx)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("index_manifest_unreadable")
		}
		return nil, false
	}
	if err := persisted.Verify(expected); err != nil {
		log.Info().Err(err).Msg("index_stale_rebuilding")
		return nil, false
	}
	if expected.Dimension > 0 && persisted.Dimension != expected.Dimension {
		log.Info().
			Int("persisted", persisted.Dimension).
			Int("declared", expected.Dimension).
			Msg("index_dimension_changed_rebuilding")
		return nil, false
	}

	idx, err := uc.store.Open(ctx, persisted)
	if err != nil {
		log.Warn().Err(err).Str("location", persisted.Location).Msg("index_open_failed_rebuilding")
		return nil, false
	}
	log.Info().
		Str("build_id", persisted.BuildID).
		Int("chunks", persisted.ChunkCount).
		Msg("index_reused")
	return &BuiltIndex{Index: idx, Manifest: persisted, Reused: true}, true
}

func (uc *BuildIndexUseCase) rebuild(ctx context.Context, docs []domain.Document, manifest domain.IndexManifest) (*BuiltIndex, error) {
	start := time.Now()

	chunks, err := uc.chunk(docs)
	if err != nil {
		return nil, err
	}

	manifest.BuildID = uuid.NewString()
	builder, err := uc.store.Create(ctx, &manifest)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	dimension, err := uc.embedAndAdd(ctx, builder, chunks)
	if err != nil {
		if discardErr := builder.Discard(ctx); discardErr != nil {
			log.Warn().Err(discardErr).Str("build_id", manifest.BuildID).Msg("index_discard_failed")
		}
		return nil, err
	}

	manifest.Dimension = dimension
	manifest.ChunkCount = len(chunks)
	manifest.BuiltAt = time.Now().UTC()

	idx, err := builder.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("commit index: %w", err)
	}
	previous, hasPrevious := uc.previousManifest(ctx)
	if err := uc.manifests.Save(ctx, manifest); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}
	if hasPrevious {
		uc.prune(ctx, manifest, previous)
	} else {
		uc.prune(ctx, manifest)
	}

	log.Info().
		Str("build_id", manifest.BuildID).
		Int("documents", len(docs)).
		Int("chunks", len(chunks)).
		Int("dimension", dimension).
		Dur("duration", time.Since(start)).
		Msg("index_build_finished")
	return &BuiltIndex{Index: idx, Manifest: manifest}, nil
}

func (uc *BuildIndexUseCase) previousManifest(ctx context.Context) (domain.IndexManifest, bool) {
	previous, err := uc.manifests.Load(ctx)
	if err != nil {
		return domain.IndexManifest{}, false
	}
	return previous, previous.Location != ""
}

// prune drops every build except the ones in keep. Services still serving the
// previous build keep working until they reload.
func (uc *BuildIndexUseCase) prune(ctx context.Context, keep ...domain.IndexManifest) {
	pruner, ok := uc.store.(ports.IndexPruner)
	if !ok {
		return
	}
	removed, err := pruner.Prune(ctx, keep...)
	if err != nil {
		log.Warn().Err(err).Str("build_id", keep[0].BuildID).Msg("index_prune_failed")
		return
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("build_id", keep[0].BuildID).Msg("index_builds_pruned")
	}
}

func (uc *BuildIndexUseCase) chunk(docs []domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, uc.chunker.Split(doc)...)
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "chunk documents", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *BuildIndexUseCase) embedAndAdd(ctx context.Context, builder ports.IndexBuilder, chunks []domain.Chunk) (int, error) {
	dimension := uc.opts.Dimension

	for from := 0; from < len(chunks); from += uc.opts.BatchSize {
		to := from + uc.opts.BatchSize
		if to > len(chunks) {
			to = len(chunks)
		}
		batch := chunks[from:to]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", from, to, err)
		}
		if len(vectors) != len(batch) {
			return 0, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(batch)),
			)
		}

		entries := make([]domain.IndexEntry, len(batch))
		for i, c := range batch {
			if dimension == 0 {
				dimension = len(vectors[i])
			}
			if len(vectors[i]) != dimension || dimension == 0 {
				return 0, domain.WrapError(
					domain.ErrEmbeddingDimensionMismatch,
					"embed chunks",
					fmt.Errorf("chunk %s: got %d values, index dimension is %d", c.ID, len(vectors[i]), dimension),
				)
			}
			entries[i] = domain.IndexEntry{
				ID:       c.ID,
				Vector:   vectors[i],
				Text:     c.Text,
				Metadata: c.Metadata,
			}
		}

		if err := builder.Add(ctx, entries); err != nil {
			return 0, fmt.Errorf("add entries to index: %w", err)
		}
	}
	return dimension, nil
}
