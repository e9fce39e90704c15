package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

// Strategy is one entry of an ordered list of alternatives.
type Strategy[T any] struct {
	Name string
	Run  func(context.Context) (T, error)
}

// FirstSuccess runs strategies in order and returns the first success. When
// every strategy fails, the last failure is returned.
func FirstSuccess[T any](ctx context.Context, strategies ...Strategy[T]) (T, error) {
	var zero T
	if len(strategies) == 0 {
		return zero, errors.New("no strategies configured")
	}

	var lastErr error
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := s.Run(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = fmt.Errorf("%s: %w", s.Name, err)
		if i < len(strategies)-1 {
			log.Warn().Str("strategy", s.Name).Err(err).Msg("strategy_failed_trying_next")
		}
	}
	return zero, lastErr
}

type NamedGenerator struct {
	Name      string
	Generator ports.AnswerGenerator
}

// FallbackGenerator tries generators in priority order.
type FallbackGenerator struct {
	generators []NamedGenerator
}

func NewFallbackGenerator(generators ...NamedGenerator) *FallbackGenerator {
	return &FallbackGenerator{generators: generators}
}

func (g *FallbackGenerator) Generate(ctx context.Context, prompt string, decoding domain.DecodingConfig) (string, error) {
	strategies := make([]Strategy[string], 0, len(g.generators))
	for _, ng := range g.generators {
		gen := ng.Generator
		strategies = append(strategies, Strategy[string]{
			Name: ng.Name,
			Run: func(ctx context.Context) (string, error) {
				return gen.Generate(ctx, prompt, decoding)
			},
		})
	}
	return FirstSuccess(ctx, strategies...)
}
