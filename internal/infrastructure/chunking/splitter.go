package chunking

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

// DefaultSeparators go from coarse to fine. The empty separator slices runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter is a recursive character splitter. Sizes are measured in runes.
// Separators stay attached to the piece before them, so every chunk is an
// exact substring of the document's index text. Whitespace runs are packed
// rune by rune into the neighbouring chunks; a run is left out only where it
// fits into neither neighbour, and no chunk is whitespace alone.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

type Option func(*Splitter)

func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.separators = append([]string(nil), separators...)
		}
	}
}

func NewSplitter(chunkSize, overlap int, opts ...Option) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	s := &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.separators[len(s.separators)-1] != "" {
		s.separators = append(s.separators, "")
	}
	return s
}

func (s *Splitter) Size() int    { return s.chunkSize }
func (s *Splitter) Overlap() int { return s.overlap }

type piece struct {
	start, end int
	runes      int
	blank      bool
}

func (s *Splitter) Split(doc domain.Document) []domain.Chunk {
	text := doc.IndexText()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pieces := s.splitRange(text, 0, len(text), 0, nil)
	spans := s.merge(pieces)

	meta := doc.Metadata()
	out := make([]domain.Chunk, 0, len(spans))
	for position, sp := range spans {
		chunkText := text[sp.start:sp.end]
		chunkMeta := make(map[string]string, len(meta)+1)
		for k, v := range meta {
			chunkMeta[k] = v
		}
		chunkMeta[domain.MetaPosition] = strconv.Itoa(position)
		out = append(out, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, position),
			DocumentID: doc.ID,
			Text:       chunkText,
			Position:   position,
			Start:      sp.start,
			End:        sp.end,
			Metadata:   chunkMeta,
		})
	}
	return out
}

// splitRange breaks text[start:end] into pieces no longer than chunkSize,
// using the coarsest separator present and recursing with finer ones.
func (s *Splitter) splitRange(text string, start, end, sepIdx int, out []piece) []piece {
	n := utf8.RuneCountInString(text[start:end])
	if n <= s.chunkSize {
		if strings.TrimSpace(text[start:end]) == "" {
			return sliceRunes(text, start, end, out)
		}
		return append(out, piece{start: start, end: end, runes: n})
	}

	for ; sepIdx < len(s.separators); sepIdx++ {
		sep := s.separators[sepIdx]
		if sep == "" {
			return sliceRunes(text, start, end, out)
		}
		if strings.Contains(text[start:end], sep) {
			break
		}
	}
	if sepIdx == len(s.separators) {
		return sliceRunes(text, start, end, out)
	}

	sep := s.separators[sepIdx]
	cursor := start
	for cursor < end {
		idx := strings.Index(text[cursor:end], sep)
		partEnd := end
		if idx >= 0 {
			partEnd = cursor + idx + len(sep)
		}
		out = s.splitRange(text, cursor, partEnd, sepIdx+1, out)
		cursor = partEnd
	}
	return out
}

func sliceRunes(text string, start, end int, out []piece) []piece {
	for i := start; i < end; {
		r, size := utf8.DecodeRuneInString(text[i:end])
		out = append(out, piece{start: i, end: i + size, runes: 1, blank: unicode.IsSpace(r)})
		i += size
	}
	return out
}

// merge packs pieces into windows of at most chunkSize runes. After each
// emitted window the tail that fits in the overlap is carried into the next.
// A window with no new text besides whitespace is never emitted; it slides
// forward and keeps what still fits in front of the next piece.
func (s *Splitter) merge(pieces []piece) []piece {
	var (
		spans   []piece
		window  []piece
		total   int
		covered int
	)
	drop := func() {
		total -= window[0].runes
		window = window[1:]
	}
	hasNewText := func() bool {
		for _, p := range window {
			if !p.blank && p.end > covered {
				return true
			}
		}
		return false
	}
	emit := func() {
		covered = window[len(window)-1].end
		spans = append(spans, piece{
			start: window[0].start,
			end:   covered,
			runes: total,
		})
	}

	for _, p := range pieces {
		if len(window) > 0 && total+p.runes > s.chunkSize {
			if hasNewText() {
				emit()
				for len(window) > 0 && total > s.overlap {
					drop()
				}
			}
			for len(window) > 0 && total+p.runes > s.chunkSize {
				drop()
			}
		}
		window = append(window, p)
		total += p.runes
	}
	if len(window) > 0 && hasNewText() {
		emit()
	}
	return spans
}
