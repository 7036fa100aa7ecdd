package usecase

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

const defaultMatchThreshold = 60.0

// EntityMatch describes how a raw company name was resolved against the catalog.
type EntityMatch struct {
	Name  string
	Score float64
	Exact bool
	OK    bool
}

// Catalog is the read-only set of company names observed in the corpus.
type Catalog struct {
	names     []string
	sorted    []string
	byLower   map[string]string
	threshold float64
}

// NewCatalog collects distinct known company names in first-seen order,
// preserving the casing of the first occurrence.
func NewCatalog(chunks []domain.Chunk, threshold float64) *Catalog {
	if threshold <= 0 {
		threshold = defaultMatchThreshold
	}
	c := &Catalog{
		byLower:   make(map[string]string),
		threshold: threshold,
	}
	for _, chunk := range chunks {
		if !chunk.HasKnownCompany() {
			continue
		}
		name := strings.TrimSpace(chunk.CompanyName)
		key := strings.ToLower(name)
		if _, seen := c.byLower[key]; seen {
			continue
		}
		c.byLower[key] = name
		c.names = append(c.names, name)
		c.sorted = append(c.sorted, tokenSortKey(name))
	}
	return c
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) Len() int {
	return len(c.names)
}

// Resolve maps a noisy extracted name to its canonical catalog entry.
// ok is false for empty input or when no entry is similar enough; callers
// treat that as "search unfiltered".
func (c *Catalog) Resolve(raw string) (string, bool) {
	m := c.Match(raw)
	return m.Name, m.OK
}

func (c *Catalog) Match(raw string) EntityMatch {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(c.names) == 0 {
		return EntityMatch{}
	}
	if name, ok := c.byLower[strings.ToLower(raw)]; ok {
		return EntityMatch{Name: name, Score: 100, Exact: true, OK: true}
	}

	query := tokenSortKey(raw)
	best := EntityMatch{}
	for i, candidate := range c.sorted {
		score := indelRatio(query, candidate)
		if score > best.Score {
			best = EntityMatch{Name: c.names[i], Score: score}
		}
	}
	if best.Score > c.threshold {
		best.OK = true
		return best
	}
	return EntityMatch{Score: best.Score}
}

// tokenSortKey lowercases, drops punctuation and sorts whitespace tokens so
// that similarity ignores word order.
func tokenSortKey(s string) string {
	tokens := strings.Fields(strings.Map(func(r rune) rune {
		if isAlphaNum(r) {
			return r
		}
		return ' '
	}, strings.ToLower(s)))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// indelRatio is the normalized insertion/deletion similarity on a 0..100 scale.
func indelRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	lcs := edlib.LCS(a, b)
	return 100 * float64(2*lcs) / float64(la+lb)
}
