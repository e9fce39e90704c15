package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// ObjectStorage stores corpus files and small index artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context) ([]ObjectInfo, error)
}

// TextExtractor decodes one stored object into text.
type TextExtractor interface {
	Extract(ctx context.Context, key string) (string, error)
}

// CorpusLoader produces documents from the corpus source.
type CorpusLoader interface {
	Load(ctx context.Context) (domain.CorpusReport, error)
}

// Chunker splits a document into overlapping, size-bounded chunks.
type Chunker interface {
	Split(doc domain.Document) []domain.Chunk
	Size() int
	Overlap() int
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// VectorIndex is a committed, read-only index.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, fetchK int) ([]domain.Candidate, error)
	Dimension() int
	Count() int
}

// IndexBuilder accumulates entries for one build. Nothing is visible to
// readers until Commit succeeds.
type IndexBuilder interface {
	Add(ctx context.Context, entries []domain.IndexEntry) error
	Commit(ctx context.Context) (VectorIndex, error)
	Discard(ctx context.Context) error
}

// IndexStore creates new indexes and opens persisted ones.
type IndexStore interface {
	Create(ctx context.Context, manifest *domain.IndexManifest) (IndexBuilder, error)
	Open(ctx context.Context, manifest domain.IndexManifest) (VectorIndex, error)
}

// IndexPruner is implemented by index stores that can drop builds no manifest
// refers to anymore. Prune keeps the builds at the given manifests' locations
// and reports how many others it removed.
type IndexPruner interface {
	Prune(ctx context.Context, keep ...domain.IndexManifest) (int, error)
}

// ManifestStore persists the manifest of the active index.
type ManifestStore interface {
	Load(ctx context.Context) (domain.IndexManifest, error)
	Save(ctx context.Context, manifest domain.IndexManifest) error
}

// AnswerGenerator turns an assembled prompt into raw model output.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string, decoding domain.DecodingConfig) (string, error)
}

// RebuildNotifier announces committed indexes to other processes.
type RebuildNotifier interface {
	PublishIndexRebuilt(ctx context.Context, event domain.IndexRebuilt) error
}

// RebuildSubscriber receives index rebuild announcements.
type RebuildSubscriber interface {
	SubscribeIndexRebuilt(ctx context.Context, handler func(context.Context, domain.IndexRebuilt) error) error
}

// PipelineObserver receives build and answer measurements.
type PipelineObserver interface {
	ObserveIndexBuild(outcome string, chunks int, duration time.Duration)
	ObserveAnswer(sources int, duration time.Duration, err error)
}
