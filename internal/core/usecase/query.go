package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

type QueryUseCase struct {
	embedder  ports.Embedder
	generator ports.AnswerGenerator
	retriever *Retriever
	cleaner   *AnswerCleaner
	decoding  domain.DecodingConfig
}

func NewQueryUseCase(
	embedder ports.Embedder,
	generator ports.AnswerGenerator,
	retriever *Retriever,
	cleaner *AnswerCleaner,
	decoding domain.DecodingConfig,
) *QueryUseCase {
	if cleaner == nil {
		cleaner = NewAnswerCleaner(DefaultReasoningStart, DefaultReasoningEnd)
	}
	return &QueryUseCase{
		embedder:  embedder,
		generator: generator,
		retriever: retriever,
		cleaner:   cleaner,
		decoding:  decoding,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, idx ports.VectorIndex, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("question is empty"))
	}
	if idx == nil {
		return nil, domain.WrapError(domain.ErrIndexNotReady, "answer", errors.New("no index loaded"))
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVector) != idx.Dimension() {
		return nil, domain.WrapError(
			domain.ErrEmbeddingDimensionMismatch,
			"embed query",
			fmt.Errorf("got %d values, index dimension is %d", len(queryVector), idx.Dimension()),
		)
	}

	chunks, err := uc.retriever.Retrieve(ctx, idx, queryVector)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(chunks) == 0 {
		log.Info().Msg("empty_retrieval")
	}

	raw, err := uc.generator.Generate(ctx, BuildPrompt(question, chunks), uc.decoding)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGenerationFailed, "generate answer", err)
	}

	return &domain.Answer{
		Text:    uc.cleaner.Clean(raw),
		Sources: episodeSources(chunks),
		Chunks:  chunks,
	}, nil
}

func episodeSources(chunks []domain.RetrievedChunk) []string {
	out := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		ep := c.Episode()
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		out = append(out, ep)
	}
	return out
}
