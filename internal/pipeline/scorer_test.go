package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreFormula(t *testing.T) {
	t.Parallel()
	s := NewScorer(nil)

	// Both terms present, plain .com domain: 0.7*1.0 + 0.3*0.6 = 0.88.
	got := s.Score("solar power", "Solar power growth", "record solar capacity", "https://example.com/a")
	require.Equal(t, 0.88, got)

	// One of two terms, .gov domain: 0.7*0.5 + 0.3*1.0 = 0.65.
	got = s.Score("solar power", "Energy report", "solar only here", "https://energy.gov/report")
	require.Equal(t, 0.65, got)

	// No terms matched, baseline domain: 0.7*0 + 0.3*0.6 = 0.18.
	got = s.Score("quantum entanglement", "Cooking tips", "pasta recipes", "https://food.example.com")
	require.Equal(t, 0.18, got)
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()
	s := NewScorer([]string{"reuters.com"})
	cases := []struct{ query, title, snippet, url string }{
		{"a b c", "a b c", "a b c", "https://www.reuters.com/x"},
		{"", "", "", ""},
		{"xyz", "", "", "https://example.edu"},
	}
	for _, tc := range cases {
		got := s.Score(tc.query, tc.title, tc.snippet, tc.url)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 1.0)
	}
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()
	s := NewScorer([]string{"reuters.com"})
	first := s.Score("rate cuts 2025", "Fed signals rate cuts", "markets rally on 2025 outlook", "https://reuters.com/markets")
	for i := 0; i < 10; i++ {
		require.Equal(t, first, s.Score("rate cuts 2025", "Fed signals rate cuts", "markets rally on 2025 outlook", "https://reuters.com/markets"))
	}
}

func TestScoreTrustedDomainConfigurable(t *testing.T) {
	t.Parallel()
	base := NewScorer(nil)
	trusted := NewScorer([]string{"myoutlet.io"})

	url := "https://www.myoutlet.io/story"
	require.Less(t, base.Score("term", "term", "", url), trusted.Score("term", "term", "", url))
}

func TestScoreDuplicateTermsCountOnce(t *testing.T) {
	t.Parallel()
	s := NewScorer(nil)
	// "go go tooling": distinct terms are {go, tooling}; only "go" matches.
	got := s.Score("go go tooling", "go release", "", "https://example.com")
	require.Equal(t, 0.53, got) // 0.7*0.5 + 0.3*0.6
}
