package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/transcript"
)

var (
	trailingDigits = regexp.MustCompile(`(\d+)\.[^./\\]+$`)
	anyDigits      = regexp.MustCompile(`\d+`)
)

// EpisodeLabel extracts the episode number from a transcript file name:
// the digit run just before the extension, else the first digit run, else
// domain.UnknownEpisode.
func EpisodeLabel(name string) string {
	base := filepath.Base(name)
	if m := trailingDigits.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	if m := anyDigits.FindString(base); m != "" {
		return m
	}
	return domain.UnknownEpisode
}

type Options struct {
	Extensions  []string
	PodcastName string
	DocType     string
	// Segmenter, when set, re-paragraphs each transcript before indexing.
	Segmenter *transcript.Segmenter
}

type Loader struct {
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	opts      Options
}

func NewLoader(storage ports.ObjectStorage, extractor ports.TextExtractor, opts Options) *Loader {
	exts := make([]string, 0, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = []string{".txt"}
	}
	opts.Extensions = exts
	if opts.PodcastName == "" {
		opts.PodcastName = domain.DefaultPodcastName
	}
	if opts.DocType == "" {
		opts.DocType = domain.DefaultDocType
	}
	return &Loader{storage: storage, extractor: extractor, opts: opts}
}

// Load reads every matching file in lexical order. Unreadable files are
// skipped and reported; an empty result is ErrEmptyCorpus.
func (l *Loader) Load(ctx context.Context) (domain.CorpusReport, error) {
	objects, err := l.storage.List(ctx)
	if err != nil {
		return domain.CorpusReport{}, fmt.Errorf("list corpus: %w", err)
	}

	var report domain.CorpusReport
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return domain.CorpusReport{}, err
		}
		if !l.accepts(obj.Key) {
			continue
		}

		text, err := l.extractor.Extract(ctx, obj.Key)
		if err != nil {
			log.Warn().Str("file", obj.Key).Err(err).Msg("corpus_file_skipped")
			report.Skipped = append(report.Skipped, domain.SkippedFile{Name: obj.Key, Reason: err.Error()})
			continue
		}
		if l.opts.Segmenter != nil {
			text = l.opts.Segmenter.Normalize(text)
		}
		if strings.TrimSpace(text) == "" {
			log.Debug().Str("file", obj.Key).Msg("corpus_file_empty")
			continue
		}

		report.Documents = append(report.Documents, domain.Document{
			ID:           obj.Key,
			RawText:      text,
			SourceName:   obj.Key,
			EpisodeLabel: EpisodeLabel(obj.Key),
			PodcastName:  l.opts.PodcastName,
			DocType:      l.opts.DocType,
		})
	}

	if len(report.Documents) == 0 {
		return report, domain.WrapError(
			domain.ErrEmptyCorpus,
			"load corpus",
			fmt.Errorf("no readable %s files (%d skipped)", strings.Join(l.opts.Extensions, "/"), len(report.Skipped)),
		)
	}

	log.Info().
		Int("documents", len(report.Documents)).
		Int("skipped", len(report.Skipped)).
		Msg("corpus_loaded")
	return report, nil
}

func (l *Loader) accepts(key string) bool {
	ext := strings.ToLower(filepath.Ext(key))
	for _, allowed := range l.opts.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
