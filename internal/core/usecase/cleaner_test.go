package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnswerCleanerClean(t *testing.T) {
	cleaner := NewAnswerCleaner(DefaultReasoningStart, DefaultReasoningEnd)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "Episode 3 covered Zelda.", want: "Episode 3 covered Zelda."},
		{name: "leading reasoning", raw: "<think>let me see</think>Answer here.", want: "Answer here."},
		{name: "multiline reasoning", raw: "<think>\nline one\n\nline two\n</think>\n\nAnswer.", want: "Answer."},
		{name: "several segments", raw: "<think>a</think>One.<think>b</think> Two.", want: "One. Two."},
		{name: "blank lines collapse", raw: "First.\n\n\n\nSecond.\n \t\nThird.", want: "First.\n\nSecond.\n\nThird."},
		{name: "surrounding whitespace", raw: "  \n Answer \n\n", want: "Answer"},
		{name: "unbalanced marker kept", raw: "<think>never closed\nAnswer", want: "<think>never closed\nAnswer"},
		{name: "empty", raw: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleaner.Clean(tt.raw))
		})
	}
}

func TestAnswerCleanerIsIdempotent(t *testing.T) {
	cleaner := NewAnswerCleaner("", "")
	once := cleaner.Clean("<think>x</think>\n\nA.\n\n\nB.")
	assert.Equal(t, once, cleaner.Clean(once))
}

func TestAnswerCleanerCustomMarkers(t *testing.T) {
	cleaner := NewAnswerCleaner("[[", "]]")
	assert.Equal(t, "kept <think>x</think>", cleaner.Clean("[[drop]]kept <think>x</think>"))
}
