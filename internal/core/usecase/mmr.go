package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

const (
	DefaultTopK      = 4
	DefaultFetchK    = 20
	DefaultMMRLambda = 0.7
)

func normalizeRetrieval(p domain.RetrievalParams) domain.RetrievalParams {
	if p.K <= 0 {
		p.K = DefaultTopK
	}
	if p.FetchK <= 0 {
		p.FetchK = DefaultFetchK
	}
	if p.FetchK < p.K {
		p.FetchK = p.K
	}
	if p.Lambda < 0 || p.Lambda > 1 {
		p.Lambda = DefaultMMRLambda
	}
	return p
}

type Retriever struct {
	params domain.RetrievalParams
}

func NewRetriever(params domain.RetrievalParams) *Retriever {
	return &Retriever{params: normalizeRetrieval(params)}
}

func (r *Retriever) Params() domain.RetrievalParams { return r.params }

// Retrieve fetches FetchK nearest candidates and reranks them with MMR down to K.
func (r *Retriever) Retrieve(ctx context.Context, idx ports.VectorIndex, queryVector []float32) ([]domain.RetrievedChunk, error) {
	candidates, err := idx.Query(ctx, queryVector, r.params.FetchK)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	return SelectMMR(queryVector, candidates, r.params.K, r.params.Lambda), nil
}

// SelectMMR greedily picks up to k candidates maximizing
// lambda*rel(c) - (1-lambda)*max sim(c, selected). Candidates are expected in
// index order; on equal scores the earlier candidate wins. Duplicate ids are
// considered once.
func SelectMMR(query []float32, candidates []domain.Candidate, k int, lambda float64) []domain.RetrievedChunk {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	pool := make([]domain.Candidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Entry.ID]; dup {
			continue
		}
		seen[c.Entry.ID] = struct{}{}
		pool = append(pool, c)
	}

	queryNorm := norm(query)
	norms := make([]float64, len(pool))
	relevance := make([]float64, len(pool))
	for i, c := range pool {
		norms[i] = norm(c.Entry.Vector)
		if len(c.Entry.Vector) == len(query) && norms[i] > 0 && queryNorm > 0 {
			relevance[i] = dot(query, c.Entry.Vector) / (queryNorm * norms[i])
		} else {
			relevance[i] = c.Score
		}
	}

	if k > len(pool) {
		k = len(pool)
	}
	maxSim := make([]float64, len(pool))
	taken := make([]bool, len(pool))
	out := make([]domain.RetrievedChunk, 0, k)

	for len(out) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range pool {
			if taken[i] {
				continue
			}
			score := lambda*relevance[i] - (1-lambda)*maxSim[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}

		taken[best] = true
		chosen := pool[best]
		out = append(out, domain.RetrievedChunk{
			ChunkID:  chosen.Entry.ID,
			Text:     chosen.Entry.Text,
			Metadata: chosen.Entry.Metadata,
			Score:    relevance[best],
			Rank:     len(out) + 1,
		})

		for i := range pool {
			if taken[i] {
				continue
			}
			if sim := cosine(pool[i].Entry.Vector, chosen.Entry.Vector, norms[i], norms[best]); sim > maxSim[i] || len(out) == 1 {
				maxSim[i] = sim
			}
		}
	}
	return out
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	return dot(a, b) / (normA * normB)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
