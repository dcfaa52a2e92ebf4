package matcher

import (
	"strings"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// findRequest is the POST /api/find-competitor body.
type findRequest struct {
	Keyword     string `json:"keyword"`
	Description string `json:"description"`
}

// findResponse is the matching service reply. BestMatch is null when the
// search produced no candidates.
type findResponse struct {
	Success       *bool      `json:"success"`
	BestMatch     *APIMatch  `json:"best_match"`
	AllCandidates []APIMatch `json:"all_candidates,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// APIMatch is a competitor listing as returned by the matching service.
type APIMatch struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Price      float64  `json:"price"`
	Currency   string   `json:"currency"`
	Sales      *float64 `json:"sales,omitempty"`
	Similarity float64  `json:"similarity"`
	MatchType  string   `json:"matchType,omitempty"`
	Features   string   `json:"features"`
	Link       string   `json:"link,omitempty"`
}

// ToDomainMatch converts the wire representation into a domain.MatchResult.
func (m APIMatch) ToDomainMatch() domain.MatchResult {
	out := domain.MatchResult{
		ID:         m.ID,
		Title:      m.Title,
		Price:      m.Price,
		Currency:   strings.ToUpper(strings.TrimSpace(m.Currency)),
		Similarity: m.Similarity,
		MatchType:  m.MatchType,
		Features:   m.Features,
	}
	if out.Currency == "" {
		out.Currency = "EUR"
	}
	if m.Sales != nil {
		sales := int64(*m.Sales)
		out.Sales = &sales
	}
	if out.MatchType == "" {
		out.MatchType = MatchTier(m.Similarity)
	}
	return out
}

// MatchTier buckets a similarity score into a match-quality label.
func MatchTier(similarity float64) string {
	switch {
	case similarity >= 0.9:
		return "High"
	case similarity >= 0.75:
		return "Medium"
	default:
		return "Low"
	}
}
