package chunking

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

func testDocument(raw string) domain.Document {
	return domain.Document{
		ID:           "playdate1.txt",
		RawText:      raw,
		SourceName:   "playdate1.txt",
		EpisodeLabel: "1",
		PodcastName:  domain.DefaultPodcastName,
		DocType:      domain.DefaultDocType,
	}
}

func paragraphs(n, width int) string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		prefix := fmt.Sprintf("p%d ", i)
		out = append(out, prefix+strings.Repeat("w", width-len(prefix)))
	}
	return strings.Join(out, "\n\n")
}

func mixedTranscript() string {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Speaker %d said something about game number %d and then kept going", i%3, i)
		switch i % 7 {
		case 0:
			b.WriteString("\n\n")
		case 3:
			b.WriteString("\n")
		default:
			b.WriteString(". ")
		}
		if i == 20 {
			b.WriteString(strings.Repeat("ё", 1900))
			b.WriteString(" ")
		}
	}
	return b.String()
}

func reassemble(chunks []domain.Chunk) string {
	var b strings.Builder
	covered := 0
	for _, c := range chunks {
		skip := covered - c.Start
		if skip < 0 {
			skip = 0
		}
		b.WriteString(c.Text[skip:])
		covered = c.End
	}
	return b.String()
}

type uncoveredRange struct {
	start, end    int
	before, after int
}

// uncovered lists the byte ranges of text that no chunk holds, with the
// indexes of the chunks around each range (-1 at either end of the text).
func uncovered(text string, chunks []domain.Chunk) []uncoveredRange {
	var out []uncoveredRange
	covered := 0
	for i, c := range chunks {
		if c.Start > covered {
			out = append(out, uncoveredRange{start: covered, end: c.Start, before: i - 1, after: i})
		}
		covered = max(covered, c.End)
	}
	if covered < len(text) {
		out = append(out, uncoveredRange{start: covered, end: len(text), before: len(chunks) - 1, after: -1})
	}
	return out
}

func spacedTranscript() string {
	lines := []string{
		"Welcome back to the show.",
		"Today we talk   about   Zelda.",
		"\tЁжик в тумане, again.",
		"Ads:   buy more playdates.",
		"   indented remark",
	}
	gaps := []string{"\n", "\n\n", "\n\n\n\n", " \n \n", "\n\t\n"}
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString(lines[i%len(lines)])
		b.WriteString(gaps[(i*3)%len(gaps)])
	}
	b.WriteString("Goodbye.")
	return b.String()
}

func TestSplitKeepsWhitespaceRunsInChunks(t *testing.T) {
	doc := testDocument(spacedTranscript())
	for _, tc := range []struct{ size, overlap int }{{800, 200}, {50, 10}} {
		t.Run(fmt.Sprintf("%d/%d", tc.size, tc.overlap), func(t *testing.T) {
			chunks := NewSplitter(tc.size, tc.overlap).Split(doc)
			require.NotEmpty(t, chunks)
			for i, c := range chunks {
				assert.NotEmpty(t, strings.TrimSpace(c.Text), "chunk %d is blank", i)
				assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), tc.size, "chunk %d too long", i)
			}
			assert.Empty(t, uncovered(doc.IndexText(), chunks))
			assert.Equal(t, doc.IndexText(), reassemble(chunks))
		})
	}
}

func TestSplitLeavesOutOnlyWhitespaceThatFitsNoNeighbour(t *testing.T) {
	raw := "intro words here" + strings.Repeat(" ", 120) + "middle ёёё part" +
		strings.Repeat("\n", 9) + "tail words" + strings.Repeat("\t ", 40)
	doc := testDocument(raw)
	text := doc.IndexText()

	for _, tc := range []struct{ size, overlap int }{{50, 10}, {7, 3}, {20, 0}} {
		t.Run(fmt.Sprintf("%d/%d", tc.size, tc.overlap), func(t *testing.T) {
			chunks := NewSplitter(tc.size, tc.overlap).Split(doc)
			require.NotEmpty(t, chunks)
			for i, c := range chunks {
				assert.NotEmpty(t, strings.TrimSpace(c.Text), "chunk %d is blank", i)
				assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), tc.size, "chunk %d too long", i)
			}

			gaps := uncovered(text, chunks)
			require.NotEmpty(t, gaps, "a 120 rune run cannot fit around two chunks")
			for _, g := range gaps {
				assert.Empty(t, strings.TrimSpace(text[g.start:g.end]), "non-whitespace left out at %d", g.start)
				if g.before >= 0 {
					assert.Equal(t, tc.size, utf8.RuneCountInString(chunks[g.before].Text), "chunk before gap at %d has room", g.start)
				}
				if g.after >= 0 {
					assert.Equal(t, tc.size, utf8.RuneCountInString(chunks[g.after].Text), "chunk after gap at %d has room", g.start)
				}
			}
		})
	}
}

func TestSplitShortDocumentYieldsSingleChunk(t *testing.T) {
	doc := testDocument("short transcript")
	chunks := NewSplitter(800, 200).Split(doc)

	require.Len(t, chunks, 1)
	assert.Equal(t, doc.IndexText(), chunks[0].Text)
	assert.Equal(t, "playdate1.txt#0", chunks[0].ID)
	assert.Equal(t, "1", chunks[0].Metadata[domain.MetaEpisode])
	assert.Equal(t, "0", chunks[0].Metadata[domain.MetaPosition])
}

func TestSplitIsDeterministic(t *testing.T) {
	doc := testDocument(mixedTranscript())
	s := NewSplitter(300, 80)

	first := s.Split(doc)
	second := NewSplitter(300, 80).Split(doc)
	assert.Equal(t, first, second)
}

func TestSplitBoundsAndCoverage(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "default", size: 800, overlap: 200},
		{name: "small", size: 120, overlap: 30},
		{name: "no overlap", size: 250, overlap: 0},
	}

	doc := testDocument(mixedTranscript())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := NewSplitter(tc.size, tc.overlap).Split(doc)
			require.NotEmpty(t, chunks)

			for i, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), tc.size, "chunk %d too long", i)
				assert.Equal(t, i, c.Position)
				if i > 0 {
					prev := chunks[i-1]
					assert.LessOrEqual(t, c.Start, prev.End, "gap before chunk %d", i)
					assert.Greater(t, c.End, prev.End, "chunk %d adds nothing", i)
					overlap := utf8.RuneCountInString(doc.IndexText()[c.Start:prev.End])
					assert.LessOrEqual(t, overlap, tc.overlap, "overlap before chunk %d", i)
				}
			}
			assert.Equal(t, doc.IndexText(), reassemble(chunks))
		})
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	// Header is 60 runes, every paragraph is 190 with its separator.
	doc := testDocument(paragraphs(9, 188))
	chunks := NewSplitter(800, 200).Split(doc)

	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "This is from"))
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"))
	assert.True(t, strings.HasPrefix(chunks[1].Text, "p3 "))
	assert.True(t, strings.HasPrefix(chunks[2].Text, "p6 "))
	assert.True(t, strings.HasSuffix(chunks[2].Text, "p9 "+strings.Repeat("w", 185)))
}

func TestSplitFallsBackToRunesForUnbrokenText(t *testing.T) {
	doc := testDocument(strings.Repeat("x", 500))
	chunks := NewSplitter(100, 20).Split(doc)

	require.Greater(t, len(chunks), 5)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 100)
	}
	assert.Equal(t, doc.IndexText(), reassemble(chunks))
}

func TestNewSplitterNormalizesOverlap(t *testing.T) {
	s := NewSplitter(100, 150)
	assert.Equal(t, 25, s.Overlap())

	s = NewSplitter(0, -1)
	assert.Equal(t, 800, s.Size())
	assert.Equal(t, 0, s.Overlap())
}

func TestSplitEmptyDocument(t *testing.T) {
	doc := domain.Document{}
	// The header alone is not empty, so a document always yields at least one chunk.
	assert.Len(t, NewSplitter(800, 200).Split(doc), 1)
}
