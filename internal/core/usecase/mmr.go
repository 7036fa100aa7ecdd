package usecase

import (
	"math"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

const defaultMMRLambda = 0.5

// selectMMR picks up to k candidates balancing query similarity against
// redundancy with already selected candidates. Candidates without a stored
// vector keep their incoming similarity score and count as non-redundant.
func selectMMR(queryVector []float32, candidates []domain.Candidate, k int, lambda float64) []domain.Candidate {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if lambda < 0 || lambda > 1 {
		lambda = defaultMMRLambda
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		if len(c.Vector) > 0 && len(queryVector) > 0 {
			relevance[i] = cosineSimilarity(queryVector, c.Vector)
		} else {
			relevance[i] = c.Score
		}
	}

	selected := make([]int, 0, k)
	used := make([]bool, len(candidates))
	// maxRedundancy[i] is the highest similarity of candidate i to the
	// selection, -Inf until it has been compared with a selected vector.
	maxRedundancy := make([]float64, len(candidates))
	for i := range maxRedundancy {
		maxRedundancy[i] = math.Inf(-1)
	}

	for len(selected) < k {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if used[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				redundancy := maxRedundancy[i]
				if math.IsInf(redundancy, -1) {
					redundancy = 0
				}
				score = lambda*relevance[i] - (1-lambda)*redundancy
			}
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, bestIdx)

		picked := candidates[bestIdx].Vector
		if len(picked) == 0 {
			continue
		}
		for i := range candidates {
			if used[i] || len(candidates[i].Vector) == 0 {
				continue
			}
			if sim := cosineSimilarity(picked, candidates[i].Vector); sim > maxRedundancy[i] {
				maxRedundancy[i] = sim
			}
		}
	}

	out := make([]domain.Candidate, 0, len(selected))
	for _, idx := range selected {
		c := candidates[idx]
		c.Score = relevance[idx]
		out = append(out, c)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
