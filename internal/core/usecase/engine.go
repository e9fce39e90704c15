package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

type engineState struct {
	index    ports.VectorIndex
	manifest domain.IndexManifest
}

// Engine owns the pipeline collaborators and the live index. Queries read a
// published snapshot; rebuilds are serialized and swap the snapshot only
// after a complete build.
type Engine struct {
	loader   ports.CorpusLoader
	builder  *BuildIndexUseCase
	query    *QueryUseCase
	observer ports.PipelineObserver
	notifier ports.RebuildNotifier

	rebuildMu sync.Mutex
	state     atomic.Pointer[engineState]
}

type EngineOption func(*Engine)

func WithObserver(o ports.PipelineObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

func WithNotifier(n ports.RebuildNotifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

func NewEngine(loader ports.CorpusLoader, builder *BuildIndexUseCase, query *QueryUseCase, opts ...EngineOption) *Engine {
	e := &Engine{
		loader:  loader,
		builder: builder,
		query:   query,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild loads the corpus and builds or reuses the index for it.
func (e *Engine) Rebuild(ctx context.Context, force bool) (domain.IndexManifest, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	built, err := e.loadAndBuild(ctx, force)
	if err != nil {
		e.observeBuild("failed", 0, start)
		return domain.IndexManifest{}, err
	}

	outcome := "built"
	if built.Reused {
		outcome = "reused"
	}
	e.observeBuild(outcome, built.Manifest.ChunkCount, start)
	e.publish(built)

	if !built.Reused && e.notifier != nil {
		if err := e.notifier.PublishIndexRebuilt(ctx, built.Manifest.RebuiltEvent()); err != nil {
			log.Warn().Err(err).Str("build_id", built.Manifest.BuildID).Msg("index_rebuilt_notify_failed")
		}
	}
	return built.Manifest, nil
}

func (e *Engine) loadAndBuild(ctx context.Context, force bool) (*BuiltIndex, error) {
	report, err := e.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	built, err := e.builder.Build(ctx, report.Documents, force)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return built, nil
}

// Reload opens the index currently recorded in the manifest store. It is a
// no-op when that index is already live.
func (e *Engine) Reload(ctx context.Context) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	built, err := e.builder.Open(ctx)
	if err != nil {
		return fmt.Errorf("reload index: %w", err)
	}
	if current := e.state.Load(); current != nil && current.manifest.Fingerprint == built.Manifest.Fingerprint &&
		current.manifest.BuildID == built.Manifest.BuildID {
		return nil
	}
	e.publish(built)
	log.Info().Str("build_id", built.Manifest.BuildID).Msg("index_reloaded")
	return nil
}

func (e *Engine) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	st := e.state.Load()
	if st == nil {
		return nil, domain.WrapError(domain.ErrIndexNotReady, "answer", errors.New("index has not been built"))
	}

	start := time.Now()
	answer, err := e.query.Answer(ctx, st.index, question)
	if e.observer != nil {
		sources := 0
		if answer != nil {
			sources = len(answer.Chunks)
		}
		e.observer.ObserveAnswer(sources, time.Since(start), err)
	}
	return answer, err
}

func (e *Engine) Manifest() (domain.IndexManifest, bool) {
	st := e.state.Load()
	if st == nil {
		return domain.IndexManifest{}, false
	}
	return st.manifest, true
}

func (e *Engine) Close() error {
	old := e.state.Swap(nil)
	return closeIndex(old)
}

// publish swaps the live snapshot. The previous index is left to in-flight
// queries and collected once they finish.
func (e *Engine) publish(built *BuiltIndex) {
	e.state.Store(&engineState{index: built.Index, manifest: built.Manifest})
}

func (e *Engine) observeBuild(outcome string, chunks int, start time.Time) {
	if e.observer != nil {
		e.observer.ObserveIndexBuild(outcome, chunks, time.Since(start))
	}
}

func closeIndex(st *engineState) error {
	if st == nil {
		return nil
	}
	if closer, ok := st.index.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
