package usecase

import (
	"strings"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

// AnswerPromptTemplate is rendered verbatim; {context} and {question} are the only slots.
const AnswerPromptTemplate = `
You are analyzing transcripts from "Will and Rusty's Playdate" podcast. This is a gaming/entertainment podcast hosted by Will and Rusty.

Context from podcast episodes:
{context}

Question: {question}

Instructions:
- Answer based only on the provided context
- If you don't know something based on the context, say "I don't have that information in the provided transcripts"
- Be conversational and natural in your responses
- Reference specific episodes when relevant
- Focus on being helpful and accurate
- Avoid making up information or hallucinating details
- If the user asks about a specific episode number, prioritize that episode's content.

Answer:`

// BuildPrompt joins chunk texts in selection order, separated by blank lines.
// Each chunk already carries its episode through the loader's header.
func BuildPrompt(question string, chunks []domain.RetrievedChunk) string {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	return strings.NewReplacer(
		"{context}", strings.Join(texts, "\n\n"),
		"{question}", question,
	).Replace(AnswerPromptTemplate)
}
