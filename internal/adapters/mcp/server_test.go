package mcpadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

type answererFake struct {
	answer    *domain.Answer
	err       error
	questions []string
}

func (f *answererFake) Answer(_ context.Context, question string) (*domain.Answer, error) {
	f.questions = append(f.questions, question)
	return f.answer, f.err
}

func callAsk(t *testing.T, s *Server, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = askToolName
	req.Params.Arguments = args
	result, err := s.handleAsk(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestNewServerRequiresAnswerer(t *testing.T) {
	_, err := NewServer(nil)
	require.Error(t, err)
}

func TestAskPodcastReturnsAnswerWithCitations(t *testing.T) {
	fake := &answererFake{answer: &domain.Answer{
		Text:    "They discussed playdates.",
		Sources: []string{"1"},
		Chunks: []domain.RetrievedChunk{{
			ChunkID:  "playdate1.txt#1",
			Metadata: map[string]string{domain.MetaEpisode: "1", domain.MetaSource: "playdate1.txt"},
		}},
	}}
	s, err := NewServer(fake)
	require.NoError(t, err)

	result := callAsk(t, s, map[string]any{"question": "what about playdates?"})

	assert.False(t, result.IsError)
	assert.Equal(t, "They discussed playdates.\n\nSources:\n- Episode 1 (playdate1.txt)", resultText(t, result))
	assert.Equal(t, []string{"what about playdates?"}, fake.questions)
}

func TestAskPodcastWithoutCitations(t *testing.T) {
	s, err := NewServer(&answererFake{answer: &domain.Answer{Text: "I don't know."}})
	require.NoError(t, err)

	result := callAsk(t, s, map[string]any{"question": "anything"})

	assert.False(t, result.IsError)
	assert.Equal(t, "I don't know.", resultText(t, result))
}

func TestAskPodcastRejectsMissingQuestion(t *testing.T) {
	fake := &answererFake{}
	s, err := NewServer(fake)
	require.NoError(t, err)

	for _, args := range []map[string]any{{}, {"question": "  "}, {"question": 42}} {
		result := callAsk(t, s, args)
		assert.True(t, result.IsError)
	}
	assert.Empty(t, fake.questions)
}

func TestAskPodcastReportsEngineErrorsAsToolErrors(t *testing.T) {
	s, err := NewServer(&answererFake{
		err: domain.WrapError(domain.ErrIndexNotReady, "answer", errors.New("index has not been built")),
	})
	require.NoError(t, err)

	result := callAsk(t, s, map[string]any{"question": "q"})

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "index not ready")
}
