package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/farshadkazemi/clarity/internal/search"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestAggregator(searcher search.WebSearcher) *Aggregator {
	a := NewAggregator(searcher, NewScorer(nil), 10, false, nil)
	a.now = fixedNow
	return a
}

func TestAggregateDedupesAndSorts(t *testing.T) {
	t.Parallel()
	searcher := &fakeSearcher{results: map[string][]search.Result{
		"sub one": {
			{Title: "weak match", URL: "https://a.example.com", Snippet: "unrelated text"},
			{Title: "solar power surge", URL: "https://b.example.org", Snippet: "solar power news"},
		},
		"sub two": {
			{Title: "duplicate", URL: "https://a.example.com", Snippet: "solar power solar power"},
			{Title: "solar", URL: "https://c.example.com", Snippet: "power"},
		},
	}}
	a := newTestAggregator(searcher)

	got, err := a.Aggregate(context.Background(), "solar power", []string{"sub one", "sub two"}, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)

	urls := map[string]int{}
	for _, r := range got {
		urls[r.URL]++
	}
	for u, n := range urls {
		require.Equal(t, 1, n, "url %s duplicated", u)
	}

	// First occurrence wins: a.example.com keeps the weak-match snippet.
	for _, r := range got {
		if r.URL == "https://a.example.com" {
			require.Equal(t, "unrelated text", r.Snippet)
		}
	}

	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i-1].Relevance, got[i].Relevance, "descending by relevance")
	}
}

func TestAggregatePartialFailure(t *testing.T) {
	t.Parallel()
	searcher := &fakeSearcher{
		results: map[string][]search.Result{
			"good": {{Title: "hit", URL: "https://x.example.com", Snippet: "q"}},
		},
		err: map[string]error{"bad": errors.New("upstream 500")},
	}
	a := newTestAggregator(searcher)

	var progressed []string
	got, err := a.Aggregate(context.Background(), "q", []string{"bad", "good"}, func(i int, sub string, partial []SearchResult) error {
		progressed = append(progressed, sub)
		if sub == "bad" {
			require.Empty(t, partial, "failed sub-query contributes an empty set")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"bad", "good"}, progressed, "checkpoints fire in submission order")
	require.Len(t, got, 1)
}

func TestAggregateProgressOrderUnderConcurrency(t *testing.T) {
	t.Parallel()
	subs := []string{"s0", "s1", "s2", "s3", "s4"}
	results := map[string][]search.Result{}
	for _, s := range subs {
		results[s] = []search.Result{{Title: s, URL: "https://" + s + ".example.com", Snippet: s}}
	}
	a := newTestAggregator(&fakeSearcher{results: results})

	var order []int
	_, err := a.Aggregate(context.Background(), "q", subs, func(i int, sub string, partial []SearchResult) error {
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestAggregateCurrentYearEnrichment(t *testing.T) {
	t.Parallel()
	searcher := &fakeSearcher{results: map[string][]search.Result{}}
	a := NewAggregator(searcher, NewScorer(nil), 10, true, nil)
	a.now = fixedNow

	_, err := a.Aggregate(context.Background(), "q", []string{"chip exports"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"chip exports", "chip exports 2025"}, searcher.calls)
}

func TestAggregateOnProgressErrorAborts(t *testing.T) {
	t.Parallel()
	searcher := &fakeSearcher{results: map[string][]search.Result{}}
	a := newTestAggregator(searcher)

	_, err := a.Aggregate(context.Background(), "q", []string{"a", "b"}, func(i int, sub string, partial []SearchResult) error {
		return errors.New("client gone")
	})
	require.Error(t, err)
}

func TestNormalizePublishedAt(t *testing.T) {
	t.Parallel()
	a := newTestAggregator(&fakeSearcher{})

	cases := []struct {
		name string
		hit  search.Result
		want time.Time
	}{
		{
			name: "provider metadata",
			hit:  search.Result{Date: "Mar 2, 2025"},
			want: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "iso date in snippet",
			hit:  search.Result{Snippet: "Published 2024-11-30 by the desk"},
			want: time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "long date in snippet",
			hit:  search.Result{Snippet: "Updated Jan 7, 2025 with new figures"},
			want: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "no date defaults to fetch time",
			hit:  search.Result{Snippet: "no dates here"},
			want: fixedNow(),
		},
	}
	for _, tc := range cases {
		got := a.publishedAt(tc.hit)
		require.Equal(t, tc.want, got, tc.name)
	}
}

func TestCleanSnippet(t *testing.T) {
	t.Parallel()
	in := "Solar   power!!! grew \n\t by 24%… «fast» [source]"
	got := cleanSnippet(in)
	require.Equal(t, "Solar power grew by 24% fast source", got)
}
