package domain

import "strings"

// SearchFilter restricts retrieval to one resolved company. Empty means no filter.
type SearchFilter struct {
	Company string
}

func (f SearchFilter) Active() bool {
	return f.Company != ""
}

// Matches reports whether the chunk passes the filter. Company names compare
// case-insensitively, like catalog entries.
func (f SearchFilter) Matches(c Chunk) bool {
	return !f.Active() || CompanyKey(c.CompanyName) == CompanyKey(f.Company)
}

// CompanyKey is the normalized form used to filter by company in stores that
// only support exact matches.
func CompanyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Candidate is a chunk scored by a single retrieval method. Scores are only
// comparable within the method that produced them.
type Candidate struct {
	Chunk  Chunk     `json:"chunk"`
	Score  float64   `json:"score"`
	Vector []float32 `json:"-"`
}

// QueryAnalysis is the structured result of the entity/query analyzer.
type QueryAnalysis struct {
	ExtractedCompany string `json:"extracted_company"`
	SearchQuery      string `json:"search_query"`
}
