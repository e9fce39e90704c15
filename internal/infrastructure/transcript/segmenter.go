// Package transcript re-paragraphs raw auto-generated transcripts.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+`)
	spaceRun    = regexp.MustCompile(`\s+`)
)

// Segmenter groups sentences into paragraphs. A paragraph closes after
// SentencesPerParagraph sentences, or earlier at a sentence containing one of
// BreakWords once it holds at least MinSentencesAtBreak sentences.
type Segmenter struct {
	SentencesPerParagraph int
	MinSentencesAtBreak   int
	BreakWords            []string
	SpeakerMarker         string
}

func DefaultSegmenter() Segmenter {
	return Segmenter{
		SentencesPerParagraph: 4,
		MinSentencesAtBreak:   2,
		BreakWords:            []string{"anyway", "so", "but", "well", "okay", "alright"},
		SpeakerMarker:         ">>",
	}
}

// Sentences splits text on runs of terminal punctuation. A trailing fragment
// without punctuation is kept as its own sentence.
func (s Segmenter) Sentences(text string) []string {
	if s.SpeakerMarker != "" {
		text = strings.ReplaceAll(text, s.SpeakerMarker, "")
	}

	var out []string
	cursor := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if sentence := squash(text[cursor:loc[1]]); hasLetters(sentence) {
			out = append(out, sentence)
		}
		cursor = loc[1]
	}
	if tail := squash(text[cursor:]); hasLetters(tail) {
		out = append(out, tail)
	}
	return out
}

func (s Segmenter) Paragraphs(text string) []string {
	perParagraph := s.SentencesPerParagraph
	if perParagraph <= 0 {
		perParagraph = 4
	}
	breakWords := make(map[string]struct{}, len(s.BreakWords))
	for _, w := range s.BreakWords {
		breakWords[strings.ToLower(w)] = struct{}{}
	}

	var (
		out     []string
		current []string
	)
	for _, sentence := range s.Sentences(text) {
		current = append(current, sentence)
		atBreak := len(current) >= s.MinSentencesAtBreak && containsWord(sentence, breakWords)
		if len(current) >= perParagraph || atBreak {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// Normalize returns the paragraphs joined by blank lines.
func (s Segmenter) Normalize(text string) string {
	return strings.Join(s.Paragraphs(text), "\n\n")
}

func squash(text string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}

func hasLetters(text string) bool {
	return strings.IndexFunc(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func containsWord(sentence string, words map[string]struct{}) bool {
	if len(words) == 0 {
		return false
	}
	fields := strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, f := range fields {
		if _, ok := words[f]; ok {
			return true
		}
	}
	return false
}
