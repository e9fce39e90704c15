package domain

import "strconv"

const (
	UnknownEpisode = "Unknown"

	DefaultPodcastName = "Will and Rusty's Playdate"
	DefaultDocType     = "podcast_transcript"
)

// Metadata keys attached to every chunk of a document.
const (
	MetaSource   = "source"
	MetaPodcast  = "podcast"
	MetaEpisode  = "episode"
	MetaType     = "type"
	MetaDocument = "document_id"
	MetaPosition = "position"
)

// Document is one ingested transcript. It is never mutated after the loader returns it.
type Document struct {
	ID           string `json:"id"`
	RawText      string `json:"raw_text"`
	SourceName   string `json:"source_name"`
	EpisodeLabel string `json:"episode_label"`
	PodcastName  string `json:"podcast_name"`
	DocType      string `json:"doc_type"`
}

// IndexText is the text the chunker sees: a short header naming the podcast and
// episode followed by the transcript, so every early chunk carries its episode.
func (d Document) IndexText() string {
	return "This is from " + d.PodcastName + " podcast, Episode " + d.EpisodeLabel + ".\n\n" + d.RawText
}

func (d Document) Metadata() map[string]string {
	return map[string]string{
		MetaSource:   d.SourceName,
		MetaPodcast:  d.PodcastName,
		MetaEpisode:  d.EpisodeLabel,
		MetaType:     d.DocType,
		MetaDocument: d.ID,
	}
}

// Chunk is a contiguous passage of Document.IndexText. Start and End are byte offsets.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	Position   int               `json:"position"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Metadata   map[string]string `json:"metadata"`
}

func ChunkID(documentID string, position int) string {
	return documentID + "#" + strconv.Itoa(position)
}

// CorpusReport is the result of loading a corpus directory.
type CorpusReport struct {
	Documents []Document    `json:"documents"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
}

type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
