package pipeline

import (
	"math"
	"strings"

	"github.com/farshadkazemi/clarity/internal/helpers"
)

const (
	textWeight   = 0.7
	domainWeight = 0.3
	// Baseline quality for domains outside the trust signals.
	baselineDomainQuality = 0.6
)

// Scorer assigns relevance scores to search results against a query.
// Scores are deterministic for a fixed (result, query) pair and in [0,1].
type Scorer struct {
	trusted map[string]struct{}
}

// NewScorer builds a scorer with the configured trusted-outlet list.
func NewScorer(trustedDomains []string) *Scorer {
	trusted := make(map[string]struct{}, len(trustedDomains))
	for _, d := range trustedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			trusted[d] = struct{}{}
		}
	}
	return &Scorer{trusted: trusted}
}

// Score combines term coverage of title+snippet with domain quality:
// round(0.7*textRelevance + 0.3*domainQuality, 2).
func (s *Scorer) Score(query, title, snippet, rawURL string) float64 {
	text := textRelevance(query, title+" "+snippet)
	domain := s.domainQuality(helpers.Domain(rawURL))
	return math.Round((textWeight*text+domainWeight*domain)*100) / 100
}

// textRelevance is the fraction of distinct query terms occurring as
// substrings of the haystack. Terms are lower-cased and whitespace-split.
func textRelevance(query, haystack string) float64 {
	haystack = strings.ToLower(haystack)
	seen := make(map[string]struct{})
	matched := 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	if len(seen) == 0 {
		return 0
	}
	return float64(matched) / float64(len(seen))
}

func (s *Scorer) domainQuality(domain string) float64 {
	if domain == "" {
		return baselineDomainQuality
	}
	for _, suffix := range []string{".gov", ".edu", ".org"} {
		if strings.HasSuffix(domain, suffix) {
			return 1.0
		}
	}
	if _, ok := s.trusted[domain]; ok {
		return 1.0
	}
	return baselineDomainQuality
}
