package usecase

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

type embedderFake struct {
	model      string
	vectorFor  func(text string) []float32
	err        error
	embedCalls int
	batches    []int
	queries    []string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	f.batches = append(f.batches, len(texts))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func (f *embedderFake) ModelID() string {
	if f.model == "" {
		return "fake/embed"
	}
	return f.model
}

func constantVector(v ...float32) func(string) []float32 {
	return func(string) []float32 { return v }
}

type memIndex struct {
	dimension int
	entries   []domain.IndexEntry
}

func (m *memIndex) Dimension() int { return m.dimension }
func (m *memIndex) Count() int     { return len(m.entries) }

func (m *memIndex) Query(_ context.Context, vector []float32, fetchK int) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, 0, len(m.entries))
	for i, e := range m.entries {
		out = append(out, domain.Candidate{Entry: e, Score: cosineForTest(vector, e.Vector), Seq: i})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if fetchK < len(out) {
		out = out[:fetchK]
	}
	return out, nil
}

func cosineForTest(a, b []float32) float64 {
	var ab, aa, bb float64
	for i := range a {
		ab += float64(a[i]) * float64(b[i])
		aa += float64(a[i]) * float64(a[i])
		bb += float64(b[i]) * float64(b[i])
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / (math.Sqrt(aa) * math.Sqrt(bb))
}

type memIndexStore struct {
	committed map[string]*memIndex
	creates   int
	discards  int
	opens     int
	addErr    error
	prunes    int
	pruneErr  error
}

func newMemIndexStore() *memIndexStore {
	return &memIndexStore{committed: map[string]*memIndex{}}
}

func (s *memIndexStore) Create(_ context.Context, manifest *domain.IndexManifest) (ports.IndexBuilder, error) {
	s.creates++
	manifest.Location = "mem://" + manifest.BuildID
	return &memBuilder{store: s, location: manifest.Location}, nil
}

func (s *memIndexStore) Open(_ context.Context, manifest domain.IndexManifest) (ports.VectorIndex, error) {
	s.opens++
	idx, ok := s.committed[manifest.Location]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open index", errors.New(manifest.Location))
	}
	return idx, nil
}

func (s *memIndexStore) Prune(_ context.Context, keep ...domain.IndexManifest) (int, error) {
	s.prunes++
	if s.pruneErr != nil {
		return 0, s.pruneErr
	}
	kept := make(map[string]bool, len(keep))
	for _, m := range keep {
		kept[m.Location] = true
	}
	removed := 0
	for location := range s.committed {
		if !kept[location] {
			delete(s.committed, location)
			removed++
		}
	}
	return removed, nil
}

type memBuilder struct {
	store    *memIndexStore
	location string
	pending  memIndex
}

func (b *memBuilder) Add(_ context.Context, entries []domain.IndexEntry) error {
	if b.store.addErr != nil {
		return b.store.addErr
	}
	for _, e := range entries {
		b.pending.dimension = len(e.Vector)
		b.pending.entries = append(b.pending.entries, e)
	}
	return nil
}

func (b *memBuilder) Commit(context.Context) (ports.VectorIndex, error) {
	idx := b.pending
	b.store.committed[b.location] = &idx
	return &idx, nil
}

func (b *memBuilder) Discard(context.Context) error {
	b.store.discards++
	return nil
}

type manifestStoreFake struct {
	manifest *domain.IndexManifest
	saves    int
	loadErr  error
}

func (f *manifestStoreFake) Load(context.Context) (domain.IndexManifest, error) {
	if f.loadErr != nil {
		return domain.IndexManifest{}, f.loadErr
	}
	if f.manifest == nil {
		return domain.IndexManifest{}, domain.WrapError(domain.ErrNotFound, "load manifest", errors.New("absent"))
	}
	return *f.manifest, nil
}

func (f *manifestStoreFake) Save(_ context.Context, m domain.IndexManifest) error {
	f.saves++
	f.manifest = &m
	return nil
}

type generatorFake struct {
	prompts  []string
	decoding []domain.DecodingConfig
	out      string
	err      error
}

func (f *generatorFake) Generate(_ context.Context, prompt string, decoding domain.DecodingConfig) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.decoding = append(f.decoding, decoding)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type loaderFake struct {
	report domain.CorpusReport
	err    error
}

func (f *loaderFake) Load(context.Context) (domain.CorpusReport, error) {
	return f.report, f.err
}

func document(id, episode, raw string) domain.Document {
	return domain.Document{
		ID:           id,
		RawText:      raw,
		SourceName:   id,
		EpisodeLabel: episode,
		PodcastName:  domain.DefaultPodcastName,
		DocType:      domain.DefaultDocType,
	}
}

func paragraphText(doc, n int) string {
	paras := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		prefix := "d" + string(rune('0'+doc)) + "p" + string(rune('0'+i)) + " "
		paras = append(paras, prefix+strings.Repeat("w", 188-len(prefix)))
	}
	return strings.Join(paras, "\n\n")
}
