package usecase

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	DefaultReasoningStart = "<think>"
	DefaultReasoningEnd   = "</think>"
)

var blankLineRun = regexp.MustCompile(`\n\s*\n`)

// AnswerCleaner strips delimited reasoning segments and normalizes blank lines.
type AnswerCleaner struct {
	start     string
	reasoning *regexp.Regexp
}

func NewAnswerCleaner(start, end string) *AnswerCleaner {
	if start == "" || end == "" {
		start, end = DefaultReasoningStart, DefaultReasoningEnd
	}
	return &AnswerCleaner{
		start:     start,
		reasoning: regexp.MustCompile(`(?s)` + regexp.QuoteMeta(start) + `.*?` + regexp.QuoteMeta(end)),
	}
}

func (c *AnswerCleaner) Clean(raw string) string {
	out := c.reasoning.ReplaceAllString(raw, "")
	if strings.Contains(out, c.start) {
		log.Warn().Str("marker", c.start).Msg("unbalanced_reasoning_marker")
	}
	out = blankLineRun.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
