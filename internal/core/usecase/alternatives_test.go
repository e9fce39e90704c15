package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

func TestFirstSuccessReturnsFirstWorkingStrategy(t *testing.T) {
	var calls []string
	strategy := func(name string, out int, err error) Strategy[int] {
		return Strategy[int]{Name: name, Run: func(context.Context) (int, error) {
			calls = append(calls, name)
			return out, err
		}}
	}

	got, err := FirstSuccess(context.Background(),
		strategy("primary", 0, errors.New("down")),
		strategy("secondary", 2, nil),
		strategy("tertiary", 3, nil),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, []string{"primary", "secondary"}, calls)
}

func TestFirstSuccessReportsLastFailure(t *testing.T) {
	_, err := FirstSuccess(context.Background(),
		Strategy[string]{Name: "a", Run: func(context.Context) (string, error) { return "", errors.New("first") }},
		Strategy[string]{Name: "b", Run: func(context.Context) (string, error) { return "", errors.New("second") }},
	)
	require.Error(t, err)
	assert.Equal(t, "b: second", err.Error())
}

func TestFirstSuccessWithoutStrategies(t *testing.T) {
	_, err := FirstSuccess[int](context.Background())
	assert.Error(t, err)
}

func TestFirstSuccessStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := FirstSuccess(ctx, Strategy[int]{Name: "a", Run: func(context.Context) (int, error) {
		called = true
		return 1, nil
	}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestFallbackGeneratorUsesNextGenerator(t *testing.T) {
	primary := &generatorFake{err: errors.New("connection refused")}
	secondary := &generatorFake{out: "answer"}
	gen := NewFallbackGenerator(
		NamedGenerator{Name: "ollama", Generator: primary},
		NamedGenerator{Name: "openai", Generator: secondary},
	)

	decoding := domain.DecodingConfig{Temperature: 0.1}
	out, err := gen.Generate(context.Background(), "prompt", decoding)
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, []string{"prompt"}, primary.prompts)
	assert.Equal(t, []domain.DecodingConfig{decoding}, secondary.decoding)
}
