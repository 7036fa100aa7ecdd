// Package bm25 ranks chunks with Okapi BM25 over an in-memory inverted index.
package bm25

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

type Params struct {
	K1 float64
	B  float64
	// Epsilon floors negative IDF values at Epsilon * mean IDF, or at
	// Epsilon itself when the mean is not positive.
	Epsilon float64
}

func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75, Epsilon: 0.25}
}

type posting struct {
	doc  int
	freq int
}

// Index is immutable after construction and safe for concurrent readers.
type Index struct {
	params   Params
	chunks   []domain.Chunk
	docLens  []int
	avgLen   float64
	postings map[string][]posting
	idf      map[string]float64
}

func New(chunks []domain.Chunk, params Params) *Index {
	if params.K1 <= 0 {
		params.K1 = DefaultParams().K1
	}
	if params.B < 0 || params.B > 1 {
		params.B = DefaultParams().B
	}

	idx := &Index{
		params:   params,
		chunks:   chunks,
		docLens:  make([]int, len(chunks)),
		postings: make(map[string][]posting),
		idf:      make(map[string]float64),
	}

	total := 0
	for i, c := range chunks {
		terms := Tokenize(c.Content)
		idx.docLens[i] = len(terms)
		total += len(terms)

		freqs := make(map[string]int, len(terms))
		for _, t := range terms {
			freqs[t]++
		}
		for t, f := range freqs {
			idx.postings[t] = append(idx.postings[t], posting{doc: i, freq: f})
		}
	}
	if len(chunks) > 0 {
		idx.avgLen = float64(total) / float64(len(chunks))
	}
	idx.computeIDF()
	return idx
}

func (x *Index) computeIDF() {
	n := float64(len(x.chunks))
	sum := 0.0
	negative := make([]string, 0)
	for term, list := range x.postings {
		df := float64(len(list))
		v := math.Log(n-df+0.5) - math.Log(df+0.5)
		x.idf[term] = v
		sum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	if len(x.idf) == 0 {
		return
	}
	floor := x.params.Epsilon * sum / float64(len(x.idf))
	if floor <= 0 {
		floor = x.params.Epsilon
	}
	for _, term := range negative {
		x.idf[term] = floor
	}
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int { return len(x.chunks) }

// Search returns at most limit chunks with a positive score, best first.
// Ties keep corpus order.
func (x *Index) Search(query string, limit int) []domain.Candidate {
	if limit <= 0 || len(x.chunks) == 0 {
		return []domain.Candidate{}
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return []domain.Candidate{}
	}

	scores := make(map[int]float64)
	for _, t := range terms {
		idf, ok := x.idf[t]
		if !ok {
			continue
		}
		for _, p := range x.postings[t] {
			tf := float64(p.freq)
			norm := 1 - x.params.B + x.params.B*float64(x.docLens[p.doc])/x.avgLen
			scores[p.doc] += idf * tf * (x.params.K1 + 1) / (tf + x.params.K1*norm)
		}
	}

	docs := make([]int, 0, len(scores))
	for doc, s := range scores {
		if s > 0 {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if scores[docs[i]] != scores[docs[j]] {
			return scores[docs[i]] > scores[docs[j]]
		}
		return docs[i] < docs[j]
	})
	if len(docs) > limit {
		docs = docs[:limit]
	}

	out := make([]domain.Candidate, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.Candidate{Chunk: x.chunks[doc], Score: scores[doc]})
	}
	return out
}
// Tokenize lowercases text and splits it on anything that is not a letter or
// digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
