package pipeline

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/farshadkazemi/clarity/internal/helpers"
	"github.com/farshadkazemi/clarity/internal/search"
)

// Aggregator fans sub-queries out to the search capability and merges the
// hits into one deduplicated, score-sorted result list.
type Aggregator struct {
	searcher search.WebSearcher
	scorer   *Scorer
	perCall  int
	yearDup  bool
	now      func() time.Time
	logger   *log.Logger
}

func NewAggregator(searcher search.WebSearcher, scorer *Scorer, perCall int, yearDup bool, logger *log.Logger) *Aggregator {
	if perCall <= 0 || perCall > 10 {
		perCall = 10
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &Aggregator{
		searcher: searcher,
		scorer:   scorer,
		perCall:  perCall,
		yearDup:  yearDup,
		now:      time.Now,
		logger:   logger,
	}
}

// Aggregate runs all sub-query searches concurrently but joins them in
// submission order: partial results for sub-query i are handed to onProgress
// only after i's search completes and all earlier checkpoints have fired.
// A failed sub-query contributes an empty set. onProgress may be nil; when it
// returns an error the run is abandoned.
func (a *Aggregator) Aggregate(ctx context.Context, originalQuery string, subs []string, onProgress func(i int, sub string, partial []SearchResult) error) ([]SearchResult, error) {
	partials := make([][]SearchResult, len(subs))
	done := make([]chan struct{}, len(subs))
	for i := range subs {
		done[i] = make(chan struct{})
	}

	for i, sub := range subs {
		go func(i int, sub string) {
			defer close(done[i])
			partials[i] = a.searchOne(ctx, originalQuery, sub)
		}(i, sub)
	}

	var merged []SearchResult
	for i, sub := range subs {
		select {
		case <-done[i]:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if onProgress != nil {
			if err := onProgress(i, sub, partials[i]); err != nil {
				return nil, err
			}
		}
		merged = append(merged, partials[i]...)
	}

	merged = dedupeByURL(merged)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Relevance > merged[j].Relevance })
	return merged, nil
}

// searchOne issues the plain call and, when enabled, a current-year-enriched
// call for one sub-query. Errors are swallowed into an empty contribution.
func (a *Aggregator) searchOne(ctx context.Context, originalQuery, sub string) []SearchResult {
	queries := []string{sub}
	if a.yearDup {
		queries = append(queries, fmt.Sprintf("%s %d", sub, a.now().Year()))
	}

	var out []SearchResult
	for _, q := range queries {
		hits, err := a.searcher.Search(ctx, q, a.perCall)
		if err != nil {
			a.logger.Printf("sub-query %q failed: %v", q, err)
			continue
		}
		for _, h := range hits {
			out = append(out, a.normalize(originalQuery, h))
		}
	}
	return out
}

func (a *Aggregator) normalize(originalQuery string, hit search.Result) SearchResult {
	snippet := cleanSnippet(hit.Snippet)
	return SearchResult{
		Title:       strings.TrimSpace(hit.Title),
		Snippet:     snippet,
		URL:         hit.URL,
		PublishedAt: a.publishedAt(hit),
		Source:      helpers.Domain(hit.URL),
		Relevance:   a.scorer.Score(originalQuery, hit.Title, snippet, hit.URL),
	}
}

func dedupeByURL(results []SearchResult) []SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := results[:0]
	for _, r := range results {
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
	}
	return out
}

var excessPunct = regexp.MustCompile(`[^\p{L}\p{N}\s.,:%$'’()-]+`)

// cleanSnippet collapses whitespace and strips most punctuation.
func cleanSnippet(s string) string {
	s = excessPunct.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

var (
	isoDatePattern  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	longDatePattern = regexp.MustCompile(`\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.? (\d{1,2}), (\d{4})\b`)
)

var metaDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// publishedAt extracts a publish date from provider metadata or a snippet
// scan, defaulting to fetch time when neither yields one.
func (a *Aggregator) publishedAt(hit search.Result) time.Time {
	if meta := strings.TrimSpace(hit.Date); meta != "" {
		for _, layout := range metaDateLayouts {
			if ts, err := time.Parse(layout, meta); err == nil {
				return ts
			}
		}
	}
	if m := isoDatePattern.FindString(hit.Snippet); m != "" {
		if ts, err := time.Parse("2006-01-02", m); err == nil {
			return ts
		}
	}
	if m := longDatePattern.FindString(hit.Snippet); m != "" {
		for _, layout := range []string{"Jan 2, 2006", "January 2, 2006", "Jan. 2, 2006"} {
			if ts, err := time.Parse(layout, m); err == nil {
				return ts
			}
		}
	}
	return a.now()
}
