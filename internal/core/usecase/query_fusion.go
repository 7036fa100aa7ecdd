package usecase

import (
	"sort"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

const defaultFusionRankC = 60

// FusionWeights controls weighted reciprocal-rank fusion of lexical and
// semantic result lists.
type FusionWeights struct {
	Lexical  float64
	Semantic float64
	RankC    int
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Lexical: 0.3, Semantic: 0.7, RankC: defaultFusionRankC}
}

type fusedCandidate struct {
	candidate domain.Candidate
	score     float64
}

// fuseWeighted merges two ranked lists. Each list contributes
// weight/(rank+1+c) for the first occurrence of a chunk; a chunk present in
// one list only is scored by that list's term alone.
func fuseWeighted(lexical, semantic []domain.Candidate, w FusionWeights) []domain.Candidate {
	rankC := w.RankC
	if rankC <= 0 {
		rankC = defaultFusionRankC
	}

	acc := make(map[string]*fusedCandidate, len(lexical)+len(semantic))
	order := make([]string, 0, len(lexical)+len(semantic))
	addList := func(list []domain.Candidate, weight float64) {
		seen := make(map[string]struct{}, len(list))
		for rank, c := range list {
			key := c.Chunk.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			entry, ok := acc[key]
			if !ok {
				entry = &fusedCandidate{candidate: c}
				acc[key] = entry
				order = append(order, key)
			}
			if entry.candidate.Vector == nil && c.Vector != nil {
				entry.candidate.Vector = c.Vector
			}
			entry.score += weight / float64(rank+1+rankC)
		}
	}

	addList(lexical, w.Lexical)
	addList(semantic, w.Semantic)

	out := make([]domain.Candidate, 0, len(acc))
	for _, key := range order {
		entry := acc[key]
		c := entry.candidate
		c.Score = entry.score
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		a, b := out[i].Chunk, out[j].Chunk
		if a.SourceFilename != b.SourceFilename {
			return a.SourceFilename < b.SourceFilename
		}
		if a.PageIndex != b.PageIndex {
			return a.PageIndex < b.PageIndex
		}
		return a.Content < b.Content
	})
	return out
}

func filterByCompany(candidates []domain.Candidate, filter domain.SearchFilter) []domain.Candidate {
	if !filter.Active() {
		return candidates
	}
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if filter.Matches(c.Chunk) {
			out = append(out, c)
		}
	}
	return out
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
