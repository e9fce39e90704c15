package domain

import (
	"fmt"
	"sort"
	"strconv"
)

// IndexEntry is what the vector index stores per chunk.
type IndexEntry struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Candidate is a nearest-neighbour hit. Seq is the insertion ordinal used to
// break score ties.
type Candidate struct {
	Entry IndexEntry
	Score float64
	Seq   int
}

type RetrievedChunk struct {
	ChunkID  string            `json:"chunk_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
	Rank     int               `json:"rank"`
}

func (c RetrievedChunk) Episode() string {
	if ep := c.Metadata[MetaEpisode]; ep != "" {
		return ep
	}
	return UnknownEpisode
}

func (c RetrievedChunk) Source() string {
	return c.Metadata[MetaSource]
}

type Answer struct {
	Text    string           `json:"text"`
	Sources []string         `json:"sources"`
	Chunks  []RetrievedChunk `json:"chunks"`
}

// Citations lists the distinct "Episode <label> (<file>)" references behind
// the answer, ordered by episode number and then by file.
func (a Answer) Citations() []string {
	type citation struct {
		episode string
		source  string
	}
	seen := make(map[citation]struct{}, len(a.Chunks))
	list := make([]citation, 0, len(a.Chunks))
	for _, c := range a.Chunks {
		key := citation{episode: c.Episode(), source: c.Source()}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		list = append(list, key)
	}

	sort.Slice(list, func(i, j int) bool {
		ni, errI := strconv.Atoi(list[i].episode)
		nj, errJ := strconv.Atoi(list[j].episode)
		switch {
		case errI == nil && errJ == nil && ni != nj:
			return ni < nj
		case (errI == nil) != (errJ == nil):
			return errI == nil
		case list[i].episode != list[j].episode:
			return list[i].episode < list[j].episode
		}
		return list[i].source < list[j].source
	})

	out := make([]string, len(list))
	for i, c := range list {
		if c.source == "" {
			out[i] = "Episode " + c.episode
			continue
		}
		out[i] = fmt.Sprintf("Episode %s (%s)", c.episode, c.source)
	}
	return out
}

// DecodingConfig is passed to the generation capability unchanged.
type DecodingConfig struct {
	Temperature     float64 `json:"temperature"`
	ContextWindow   int     `json:"context_window"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

type RetrievalParams struct {
	K      int
	FetchK int
	Lambda float64
}
