package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/kirillkom/podcast-qa/internal/infrastructure/resilience"
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	CorpusDir        string   `env:"CORPUS_DIR" envDefault:"./transcripts"`
	CorpusExtensions []string `env:"CORPUS_EXTENSIONS" envDefault:".txt" envSeparator:","`
	CorpusSegment    bool     `env:"CORPUS_SEGMENT" envDefault:"false"`
	PodcastName      string   `env:"PODCAST_NAME" envDefault:"Will and Rusty's Playdate"`
	DocType          string   `env:"DOC_TYPE" envDefault:"podcast_transcript"`

	IndexDir           string `env:"INDEX_DIR" envDefault:"./index"`
	IndexBackend       string `env:"INDEX_BACKEND" envDefault:"chromem"`
	IndexCompress      bool   `env:"INDEX_COMPRESS" envDefault:"true"`
	IndexEncryptionKey string `env:"INDEX_ENCRYPTION_KEY"`
	ManifestBackend    string `env:"MANIFEST_BACKEND" envDefault:"file"`
	PostgresDSN        string `env:"POSTGRES_DSN"`
	QdrantURL          string `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	QdrantCollection   string `env:"QDRANT_COLLECTION" envDefault:"podcast_chunks"`

	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"ollama"`
	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaGenModel   string `env:"OLLAMA_GEN_MODEL" envDefault:"qwen3:4b"`
	OllamaEmbedModel string `env:"OLLAMA_EMBED_MODEL" envDefault:"all-minilm"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIGenModel   string `env:"OPENAI_GEN_MODEL"`
	OpenAIEmbedModel string `env:"OPENAI_EMBED_MODEL"`

	EmbedBatchSize int `env:"EMBED_BATCH_SIZE" envDefault:"32"`
	EmbedDimension int `env:"EMBED_DIMENSION" envDefault:"0"`

	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"800"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"200"`

	RAGTopK      int     `env:"RAG_TOP_K" envDefault:"4"`
	RAGFetchK    int     `env:"RAG_FETCH_K" envDefault:"20"`
	RAGMMRLambda float64 `env:"RAG_MMR_LAMBDA" envDefault:"0.7"`

	GenTemperature   float64 `env:"GEN_TEMPERATURE" envDefault:"0.1"`
	GenContextWindow int     `env:"GEN_CONTEXT_WINDOW" envDefault:"2048"`
	GenMaxTokens     int     `env:"GEN_MAX_TOKENS" envDefault:"256"`
	ReasoningStart   string  `env:"REASONING_START" envDefault:"<think>"`
	ReasoningEnd     string  `env:"REASONING_END" envDefault:"</think>"`

	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"podcastqa.index.rebuilt"`

	APIPort                string        `env:"API_PORT" envDefault:"8080"`
	APIRateLimitRPS        float64       `env:"API_RATE_LIMIT_RPS" envDefault:"5"`
	APIRateLimitBurst      int           `env:"API_RATE_LIMIT_BURST" envDefault:"10"`
	APIBackpressureMax     int           `env:"API_BACKPRESSURE_MAX_IN_FLIGHT" envDefault:"8"`
	APIBackpressureWait    time.Duration `env:"API_BACKPRESSURE_WAIT" envDefault:"250ms"`
	APIRequestTimeout      time.Duration `env:"API_REQUEST_TIMEOUT" envDefault:"120s"`
	APIShutdownGracePeriod time.Duration `env:"API_SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	RetryMaxAttempts        int           `env:"RESILIENCE_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialBackoff     time.Duration `env:"RESILIENCE_RETRY_INITIAL_BACKOFF" envDefault:"100ms"`
	RetryMaxBackoff         time.Duration `env:"RESILIENCE_RETRY_MAX_BACKOFF" envDefault:"400ms"`
	RetryMultiplier         float64       `env:"RESILIENCE_RETRY_MULTIPLIER" envDefault:"2"`
	BreakerEnabled          bool          `env:"RESILIENCE_BREAKER_ENABLED" envDefault:"true"`
	BreakerMinRequests      uint32        `env:"RESILIENCE_BREAKER_MIN_REQUESTS" envDefault:"10"`
	BreakerFailureRatio     float64       `env:"RESILIENCE_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerOpenTimeout      time.Duration `env:"RESILIENCE_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
	BreakerHalfOpenMaxCalls uint32        `env:"RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS" envDefault:"2"`

	GenerateMaxAttempts        int           `env:"RESILIENCE_GENERATE_MAX_ATTEMPTS" envDefault:"1"`
	GenerateBreakerMinRequests uint32        `env:"RESILIENCE_GENERATE_BREAKER_MIN_REQUESTS" envDefault:"3"`
	GenerateBreakerOpenTimeout time.Duration `env:"RESILIENCE_GENERATE_BREAKER_OPEN_TIMEOUT" envDefault:"60s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.IndexBackend = strings.ToLower(strings.TrimSpace(cfg.IndexBackend))
	cfg.ManifestBackend = strings.ToLower(strings.TrimSpace(cfg.ManifestBackend))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must not be negative, got %d", c.ChunkOverlap))
	}
	if c.RAGTopK <= 0 {
		errs = append(errs, fmt.Errorf("RAG_TOP_K must be positive, got %d", c.RAGTopK))
	}
	if c.RAGFetchK < c.RAGTopK {
		errs = append(errs, fmt.Errorf("RAG_FETCH_K (%d) must be at least RAG_TOP_K (%d)", c.RAGFetchK, c.RAGTopK))
	}
	if c.RAGMMRLambda < 0 || c.RAGMMRLambda > 1 {
		errs = append(errs, fmt.Errorf("RAG_MMR_LAMBDA must be within [0,1], got %v", c.RAGMMRLambda))
	}
	switch c.IndexBackend {
	case "chromem", "qdrant":
	default:
		errs = append(errs, fmt.Errorf("INDEX_BACKEND must be chromem or qdrant, got %q", c.IndexBackend))
	}
	switch c.ManifestBackend {
	case "file":
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for MANIFEST_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("MANIFEST_BACKEND must be file or postgres, got %q", c.ManifestBackend))
	}
	switch c.LLMProvider {
	case "ollama":
	case "openai":
		if c.OpenAIGenModel == "" || c.OpenAIEmbedModel == "" {
			errs = append(errs, errors.New("OPENAI_GEN_MODEL and OPENAI_EMBED_MODEL are required for LLM_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be ollama or openai, got %q", c.LLMProvider))
	}
	if c.IndexEncryptionKey != "" && len(c.IndexEncryptionKey) != 32 {
		errs = append(errs, errors.New("INDEX_ENCRYPTION_KEY must be exactly 32 bytes"))
	}
	return errors.Join(errs...)
}

// OpenAIFallbackEnabled reports whether an OpenAI-compatible generator is
// configured behind the Ollama one.
func (c Config) OpenAIFallbackEnabled() bool {
	return c.LLMProvider == "ollama" && c.OpenAIGenModel != ""
}

func (c Config) Resilience() resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        c.RetryMaxAttempts,
		RetryInitialBackoff:     c.RetryInitialBackoff,
		RetryMaxBackoff:         c.RetryMaxBackoff,
		RetryMultiplier:         c.RetryMultiplier,
		BreakerEnabled:          c.BreakerEnabled,
		BreakerMinRequests:      c.BreakerMinRequests,
		BreakerFailureRatio:     c.BreakerFailureRatio,
		BreakerOpenTimeout:      c.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: c.BreakerHalfOpenMaxCalls,
	}
}

// Generation is the policy for answer generation calls. Fields not set here
// come from resilience.GenerationConfig.
func (c Config) Generation() resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:   c.GenerateMaxAttempts,
		BreakerEnabled:     c.BreakerEnabled,
		BreakerMinRequests: c.GenerateBreakerMinRequests,
		BreakerOpenTimeout: c.GenerateBreakerOpenTimeout,
	}
}
