// Package chromemdb persists vector indexes as chromem-go collections exported
// to a single file per build.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

const (
	DefaultCollection = "podcast_chunks"

	// seqKey records insertion order so equal similarities keep a stable order.
	seqKey = "_seq"
)

type Options struct {
	Dir        string
	Collection string
	Compress   bool
	// EncryptionKey is either empty or exactly 32 bytes (AES-256).
	EncryptionKey string
}

type Store struct {
	opts Options
}

func NewStore(opts Options) (*Store, error) {
	if opts.Dir == "" {
		opts.Dir = "./index"
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.EncryptionKey != "" && len(opts.EncryptionKey) != 32 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chromem store", fmt.Errorf("encryption key must be 32 bytes, got %d", len(opts.EncryptionKey)))
	}
	return &Store{opts: opts}, nil
}

func (s *Store) location(buildID string) string {
	name := "index-" + buildID + ".gob"
	if s.opts.Compress {
		name += ".gz"
	}
	return filepath.Join(s.opts.Dir, name)
}

func (s *Store) Create(_ context.Context, manifest *domain.IndexManifest) (ports.IndexBuilder, error) {
	if manifest.BuildID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create chromem index", errors.New("build id is required"))
	}
	db := chromem.NewDB()
	coll, err := db.CreateCollection(s.opts.Collection, map[string]string{"build_id": manifest.BuildID}, suppliedEmbeddings)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	manifest.Location = s.location(manifest.BuildID)
	return &builder{
		store:     s,
		db:        db,
		coll:      coll,
		location:  manifest.Location,
		dimension: manifest.Dimension,
	}, nil
}

func (s *Store) Open(_ context.Context, manifest domain.IndexManifest) (ports.VectorIndex, error) {
	if manifest.Location == "" {
		return nil, domain.WrapError(domain.ErrNotFound, "open chromem index", errors.New("manifest has no location"))
	}
	if _, err := os.Stat(manifest.Location); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "open chromem index", err)
		}
		return nil, fmt.Errorf("stat index file: %w", err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(manifest.Location, s.opts.EncryptionKey, s.opts.Collection); err != nil {
		return nil, fmt.Errorf("import index %s: %w", manifest.Location, err)
	}
	coll := db.GetCollection(s.opts.Collection, suppliedEmbeddings)
	if coll == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "open chromem index", fmt.Errorf("collection %q missing in %s", s.opts.Collection, manifest.Location))
	}
	if manifest.ChunkCount > 0 && coll.Count() != manifest.ChunkCount {
		return nil, domain.WrapError(
			domain.ErrStaleIndex,
			"open chromem index",
			fmt.Errorf("index holds %d entries, manifest records %d", coll.Count(), manifest.ChunkCount),
		)
	}
	return &Index{coll: coll, dimension: manifest.Dimension}, nil
}

// Prune removes index files in the store directory other than the ones the
// given manifests point at. Files written with either compression setting
// count as builds.
func (s *Store) Prune(_ context.Context, keep ...domain.IndexManifest) (int, error) {
	kept := make(map[string]bool, len(keep))
	for _, m := range keep {
		if m.Location != "" {
			kept[filepath.Base(m.Location)] = true
		}
	}

	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list index dir: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || kept[name] || !isIndexFile(name) {
			continue
		}
		if err := os.Remove(filepath.Join(s.opts.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func isIndexFile(name string) bool {
	if !strings.HasPrefix(name, "index-") {
		return false
	}
	return strings.HasSuffix(name, ".gob") || strings.HasSuffix(name, ".gob.gz")
}

type builder struct {
	store     *Store
	db        *chromem.DB
	coll      *chromem.Collection
	location  string
	dimension int
	seq       int
}

func (b *builder) Add(ctx context.Context, entries []domain.IndexEntry) error {
	docs := make([]chromem.Document, 0, len(entries))
	for _, e := range entries {
		if b.dimension == 0 {
			b.dimension = len(e.Vector)
		}
		if len(e.Vector) != b.dimension {
			return domain.WrapError(
				domain.ErrEmbeddingDimensionMismatch,
				"add chromem entry",
				fmt.Errorf("entry %s has %d values, index dimension is %d", e.ID, len(e.Vector), b.dimension),
			)
		}
		metadata := make(map[string]string, len(e.Metadata)+1)
		for k, v := range e.Metadata {
			metadata[k] = v
		}
		metadata[seqKey] = strconv.Itoa(b.seq)
		b.seq++

		docs = append(docs, chromem.Document{
			ID:        e.ID,
			Metadata:  metadata,
			Embedding: e.Vector,
			Content:   e.Text,
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := b.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Commit exports the collection next to its final path and renames it into
// place, so a reader never sees a partially written index.
func (b *builder) Commit(context.Context) (ports.VectorIndex, error) {
	if err := os.MkdirAll(filepath.Dir(b.location), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	tmp := b.tmpPath()
	if err := b.db.ExportToFile(tmp, b.store.opts.Compress, b.store.opts.EncryptionKey, b.store.opts.Collection); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("export index: %w", err)
	}
	if err := os.Rename(tmp, b.location); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("publish index file: %w", err)
	}
	return &Index{coll: b.coll, dimension: b.dimension}, nil
}

func (b *builder) Discard(context.Context) error {
	b.coll = nil
	b.db = nil
	if err := os.Remove(b.tmpPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove partial index: %w", err)
	}
	return nil
}

func (b *builder) tmpPath() string {
	return filepath.Join(filepath.Dir(b.location), ".tmp-"+filepath.Base(b.location))
}

// Index is a read-only view over a committed collection.
type Index struct {
	coll      *chromem.Collection
	dimension int
}

func (i *Index) Dimension() int { return i.dimension }

func (i *Index) Count() int { return i.coll.Count() }

// Query returns the fetchK nearest entries ordered by score, then insertion
// order. Chromem picks arbitrarily among equal scores at its cutoff, so the
// window grows until the entry after the boundary scores strictly lower.
func (i *Index) Query(ctx context.Context, vector []float32, fetchK int) ([]domain.Candidate, error) {
	count := i.coll.Count()
	n := fetchK
	if n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}
	if len(vector) != i.dimension {
		return nil, domain.WrapError(
			domain.ErrEmbeddingDimensionMismatch,
			"query chromem index",
			fmt.Errorf("query has %d values, index dimension is %d", len(vector), i.dimension),
		)
	}

	window := n + 1
	for {
		if window > count {
			window = count
		}
		out, err := i.nearest(ctx, vector, window)
		if err != nil {
			return nil, err
		}
		if window == count || len(out) < window || out[window-1].Score < out[n-1].Score {
			return out[:min(n, len(out))], nil
		}
		window *= 2
	}
}

func (i *Index) nearest(ctx context.Context, vector []float32, window int) ([]domain.Candidate, error) {
	results, err := i.coll.QueryEmbedding(ctx, vector, window, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]domain.Candidate, 0, len(results))
	for _, r := range results {
		seq, _ := strconv.Atoi(r.Metadata[seqKey])
		metadata := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			if k != seqKey {
				metadata[k] = v
			}
		}
		out = append(out, domain.Candidate{
			Entry: domain.IndexEntry{
				ID:       r.ID,
				Vector:   r.Embedding,
				Text:     r.Content,
				Metadata: metadata,
			},
			Score: float64(r.Similarity),
			Seq:   seq,
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Seq < out[b].Seq
	})
	return out, nil
}

func suppliedEmbeddings(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromemdb: vectors are supplied by the embedder")
}
