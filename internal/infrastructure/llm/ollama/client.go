package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor

	// genExecutor guards /api/generate; nil means executor.
	genExecutor *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.httpClient = c }
}

func WithExecutor(e *resilience.Executor) Option {
	return func(client *Client) { client.executor = e }
}

// WithGenerationExecutor gives answer generation its own retry and breaker
// policy, usually built with resilience.NewGenerationExecutor.
func WithGenerationExecutor(e *resilience.Executor) Option {
	return func(client *Client) { client.genExecutor = e }
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// ModelID identifies the embedding model in index manifests.
func (e *Embedder) ModelID() string {
	return "ollama/" + e.client.embedModel
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.call(ctx, e.client.executor, "/api/embed", request, &response, "embed", classifyOllamaError)
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string, decoding domain.DecodingConfig) (string, error) {
	reqBody := map[string]any{
		"model":   g.client.genModel,
		"prompt":  prompt,
		"stream":  false,
		"options": decodingOptions(decoding),
	}

	var response struct {
		Response string `json:"response"`
	}
	executor := g.client.genExecutor
	if executor == nil {
		executor = g.client.executor
	}
	err := g.client.call(ctx, executor, "/api/generate", reqBody, &response, "generate", classifyGenerationError)
	if err != nil {
		return "", err
	}
	return response.Response, nil
}

func decodingOptions(d domain.DecodingConfig) map[string]any {
	options := map[string]any{"temperature": d.Temperature}
	if d.ContextWindow > 0 {
		options["num_ctx"] = d.ContextWindow
	}
	if d.MaxOutputTokens > 0 {
		options["num_predict"] = d.MaxOutputTokens
	}
	return options
}

func (c *Client) call(
	ctx context.Context,
	executor *resilience.Executor,
	path string,
	payload, out any,
	operation string,
	classifier resilience.ErrorClassifier,
) error {
	if executor == nil {
		return c.postJSON(ctx, path, payload, out, operation)
	}
	err := executor.Execute(ctx, "ollama."+operation, func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}, classifier)
	return markTemporary("ollama "+operation, err)
}
