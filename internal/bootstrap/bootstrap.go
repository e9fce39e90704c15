package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/config"
	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
	"github.com/kirillkom/podcast-qa/internal/core/usecase"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/chunking"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/corpus"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/llm/langchain"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/manifest/filestore"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/resilience"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/transcript"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/vector/chromemdb"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/podcast-qa/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Engine  *usecase.Engine
	Metrics *metrics.HTTPServerMetrics
	// Notifications is nil when NATS_URL is unset.
	Notifications ports.RebuildSubscriber

	closers []func() error
}

// New wires the pipeline for one process. The returned engine has no live
// index yet; callers either Rebuild or Reload it.
func New(ctx context.Context, cfg config.Config, service string) (_ *App, err error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics(service),
	}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	executor := resilience.NewExecutor(cfg.Resilience())

	embedder, generator, err := newLLM(cfg, executor, resilience.NewGenerationExecutor(cfg.Generation()))
	if err != nil {
		return nil, err
	}

	indexStore, err := app.newIndexStore(cfg, executor)
	if err != nil {
		return nil, err
	}

	manifests, err := app.newManifestStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []usecase.EngineOption{
		usecase.WithObserver(metrics.NewPipelineMetrics(service, app.Metrics.Registry())),
	}
	if cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closers = append(app.closers, func() error {
			queue.Close()
			return nil
		})
		app.Notifications = queue
		opts = append(opts, usecase.WithNotifier(queue))
	}

	splitter := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	builder := usecase.NewBuildIndexUseCase(splitter, embedder, indexStore, manifests, usecase.BuildOptions{
		BatchSize: cfg.EmbedBatchSize,
		Dimension: cfg.EmbedDimension,
	})
	query := usecase.NewQueryUseCase(
		embedder,
		generator,
		usecase.NewRetriever(domain.RetrievalParams{
			K:      cfg.RAGTopK,
			FetchK: cfg.RAGFetchK,
			Lambda: cfg.RAGMMRLambda,
		}),
		usecase.NewAnswerCleaner(cfg.ReasoningStart, cfg.ReasoningEnd),
		domain.DecodingConfig{
			Temperature:     cfg.GenTemperature,
			ContextWindow:   cfg.GenContextWindow,
			MaxOutputTokens: cfg.GenMaxTokens,
		},
	)

	app.Engine = usecase.NewEngine(newCorpusLoader(cfg), builder, query, opts...)
	app.closers = append(app.closers, app.Engine.Close)

	log.Info().
		Str("service", service).
		Str("index_backend", cfg.IndexBackend).
		Str("manifest_backend", cfg.ManifestBackend).
		Str("llm_provider", cfg.LLMProvider).
		Str("embedding_model", embedder.ModelID()).
		Bool("notifications", app.Notifications != nil).
		Msg("pipeline_ready")
	return app, nil
}

func newCorpusLoader(cfg config.Config) *corpus.Loader {
	storage := localfs.New(cfg.CorpusDir)
	opts := corpus.Options{
		Extensions:  cfg.CorpusExtensions,
		PodcastName: cfg.PodcastName,
		DocType:     cfg.DocType,
	}
	if cfg.CorpusSegment {
		segmenter := transcript.DefaultSegmenter()
		opts.Segmenter = &segmenter
	}
	return corpus.NewLoader(storage, plaintext.NewExtractor(storage), opts)
}

func newLLM(cfg config.Config, executor, genExecutor *resilience.Executor) (ports.Embedder, ports.AnswerGenerator, error) {
	openAI := langchain.Config{
		BaseURL:        cfg.OpenAIBaseURL,
		APIKey:         cfg.OpenAIAPIKey,
		ChatModel:      cfg.OpenAIGenModel,
		EmbeddingModel: cfg.OpenAIEmbedModel,
	}

	if cfg.LLMProvider == "openai" {
		embedder, err := langchain.NewEmbedder(openAI)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai embedder: %w", err)
		}
		generator, err := langchain.NewGenerator(openAI)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai generator: %w", err)
		}
		return embedder, generator, nil
	}

	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel,
		ollama.WithExecutor(executor),
		ollama.WithGenerationExecutor(genExecutor),
	)
	var generator ports.AnswerGenerator = ollama.NewGenerator(client)
	if cfg.OpenAIFallbackEnabled() {
		fallback, err := langchain.NewGenerator(openAI)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai fallback generator: %w", err)
		}
		generator = usecase.NewFallbackGenerator(
			usecase.NamedGenerator{Name: "ollama", Generator: generator},
			usecase.NamedGenerator{Name: "openai", Generator: fallback},
		)
	}
	return ollama.NewEmbedder(client), generator, nil
}

func (a *App) newIndexStore(cfg config.Config, executor *resilience.Executor) (ports.IndexStore, error) {
	switch cfg.IndexBackend {
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(executor)), nil
	default:
		store, err := chromemdb.NewStore(chromemdb.Options{
			Dir:           cfg.IndexDir,
			Compress:      cfg.IndexCompress,
			EncryptionKey: cfg.IndexEncryptionKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init chromem store: %w", err)
		}
		return store, nil
	}
}

func (a *App) newManifestStore(ctx context.Context, cfg config.Config) (ports.ManifestStore, error) {
	if cfg.ManifestBackend != "postgres" {
		return filestore.New(localfs.New(cfg.IndexDir), filestore.DefaultKey), nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	repo := postgres.NewManifestRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
