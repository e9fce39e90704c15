// Package langchain adapts OpenAI-compatible endpoints through langchaingo.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

type Config struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
}

func newClient(cfg Config) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.ChatModel != "" {
		opts = append(opts, openai.WithModel(cfg.ChatModel))
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
	}
	return openai.New(opts...)
}

type Embedder struct {
	embedder embeddings.Embedder
	modelID  string
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.EmbeddingModel == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "langchain embedder", errors.New("embedding model is required"))
	}
	llm, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	return WrapEmbedder(embedder, "openai/"+cfg.EmbeddingModel), nil
}

func WrapEmbedder(e embeddings.Embedder, modelID string) *Embedder {
	return &Embedder{embedder: e, modelID: modelID}
}

func (e *Embedder) ModelID() string { return e.modelID }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vector, nil
}

type Generator struct {
	model llms.Model
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.ChatModel == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "langchain generator", errors.New("chat model is required"))
	}
	llm, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	return WrapModel(llm), nil
}

func WrapModel(m llms.Model) *Generator {
	return &Generator{model: m}
}

// Generate sends the prompt as a single human message. The context window
// is a property of the served model and is not sent.
func (g *Generator) Generate(ctx context.Context, prompt string, decoding domain.DecodingConfig) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	opts := []llms.CallOption{llms.WithTemperature(decoding.Temperature)}
	if decoding.MaxOutputTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(decoding.MaxOutputTokens))
	}

	resp, err := g.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("generate content: empty response")
	}
	return resp.Choices[0].Content, nil
}
