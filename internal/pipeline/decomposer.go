package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/farshadkazemi/clarity/internal/helpers"
	"github.com/farshadkazemi/clarity/internal/llm"
)

// Decomposer splits a query into independently-searchable sub-queries.
type Decomposer struct {
	llm    llm.Provider
	model  string
	max    int
	logger *log.Logger
}

func NewDecomposer(provider llm.Provider, model string, maxSubQueries int, logger *log.Logger) *Decomposer {
	if maxSubQueries <= 0 {
		maxSubQueries = 4
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[DECOMPOSE] ", log.LstdFlags)
	}
	return &Decomposer{llm: provider, model: model, max: maxSubQueries, logger: logger}
}

// Decompose returns a non-empty ordered list of sub-queries. Any failure
// (call error, malformed JSON, non-string element) degrades to the original
// query alone; decomposition never aborts the pipeline.
func (d *Decomposer) Decompose(ctx context.Context, query string) []string {
	prompt := d.buildPrompt(query)

	raw, err := d.llm.Generate(ctx, prompt, d.model)
	if err != nil {
		d.logger.Printf("generate failed, using original query: %v", err)
		return []string{query}
	}

	blob, err := helpers.ExtractJSON(raw)
	if err != nil {
		d.logger.Printf("no JSON array in response, using original query: %v", err)
		return []string{query}
	}

	var subs []string
	if err := json.Unmarshal([]byte(blob), &subs); err != nil {
		d.logger.Printf("parse failed, using original query: %v", err)
		return []string{query}
	}

	out := make([]string, 0, len(subs))
	for _, s := range subs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) >= d.max {
			break
		}
	}
	if len(out) == 0 {
		return []string{query}
	}
	return out
}

func (d *Decomposer) buildPrompt(query string) string {
	return fmt.Sprintf(`Break the following question into at most %d focused web search queries.
Each query should target one aspect of the question and work well as a standalone search.

Question: %s

Respond with a JSON array of strings only, for example:
["first search query", "second search query"]`, d.max, query)
}
