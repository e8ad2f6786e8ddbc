package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/farshadkazemi/clarity/internal/helpers"
	"github.com/farshadkazemi/clarity/internal/llm"
)

// defaultMaxContextResults caps how many score-sorted results feed the
// prompt when the config does not say otherwise.
const defaultMaxContextResults = 15

// Synthesis is the synthesizer output. Fallback reports whether the regex
// extractor produced the citations instead of the structured decode.
type Synthesis struct {
	Response             string
	Citations            []Citation
	VisualizationContext string
	Fallback             bool
}

// Synthesizer builds a cited answer from aggregated context.
type Synthesizer struct {
	llm        llm.Provider
	model      string
	maxResults int
	logger     *log.Logger
}

func NewSynthesizer(provider llm.Provider, model string, maxResults int, logger *log.Logger) *Synthesizer {
	if maxResults <= 0 {
		maxResults = defaultMaxContextResults
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	}
	return &Synthesizer{llm: provider, model: model, maxResults: maxResults, logger: logger}
}

// Synthesize produces the answer text, its citations, and a visualization
// context description. The primary path parses the model's strict JSON;
// parse failure falls back to regex citation extraction over the raw text.
// Citations whose number exceeds the considered result count are dropped on
// both paths; an unresolvable [n] marker may survive in the answer text but
// never as a citation.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []SearchResult, conversationContext string, viz *VisualizationResult) (Synthesis, error) {
	top := results
	if len(top) > s.maxResults {
		top = top[:s.maxResults]
	}

	raw, err := s.llm.Generate(ctx, s.buildPrompt(query, top, conversationContext, viz), s.model)
	if err != nil {
		return Synthesis{}, fmt.Errorf("synthesize: %w", err)
	}

	out := s.decode(raw, top)
	out.Citations = filterCitations(out.Citations, len(top))
	return out, nil
}

func (s *Synthesizer) decode(raw string, results []SearchResult) Synthesis {
	if blob, err := helpers.ExtractJSON(raw); err == nil {
		var parsed struct {
			Response  string `json:"response"`
			Citations []struct {
				Number int    `json:"number"`
				Source string `json:"source"`
				URL    string `json:"url"`
			} `json:"citations"`
			VisualizationContext string `json:"visualizationContext"`
		}
		if err := json.Unmarshal([]byte(blob), &parsed); err == nil && parsed.Response != "" {
			out := Synthesis{
				Response:             parsed.Response,
				VisualizationContext: parsed.VisualizationContext,
			}
			for _, c := range parsed.Citations {
				out.Citations = append(out.Citations, Citation{Number: c.Number, Source: c.Source, URL: c.URL})
			}
			return out
		}
	}

	s.logger.Printf("structured decode failed, extracting citations from raw text")
	return Synthesis{
		Response:  strings.TrimSpace(raw),
		Citations: extractCitations(raw, results),
		Fallback:  true,
	}
}

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// extractCitations maps each distinct [n] marker in text to the n-th search
// result (1-based). Markers that resolve to no result are skipped; the
// marker text itself stays in the response untouched.
func extractCitations(text string, results []SearchResult) []Citation {
	seen := make(map[int]struct{})
	var out []Citation
	for _, match := range citationMarker.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}

		if n >= 1 && n <= len(results) {
			r := results[n-1]
			out = append(out, Citation{Number: n, Source: r.Source, URL: r.URL})
		}
	}
	return out
}

// filterCitations drops citations whose number exceeds the result count
// considered for this message. Numbers need not be contiguous.
func filterCitations(citations []Citation, available int) []Citation {
	var out []Citation
	for _, c := range citations {
		if c.Number >= 1 && c.Number <= available {
			out = append(out, c)
		}
	}
	return out
}

func (s *Synthesizer) buildPrompt(query string, results []SearchResult, conversationContext string, viz *VisualizationResult) string {
	var b strings.Builder
	b.WriteString("Answer the question using the numbered sources below. Cite sources in-text with [n] markers.\n\n")
	if conversationContext != "" {
		b.WriteString("Conversation context:\n" + conversationContext + "\n\n")
	}
	fmt.Fprintf(&b, "Question: %s\n\nSources:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s, %s)\n%s\n\n", i+1, r.Title, r.Source, r.PublishedAt.Format("2006-01-02"), r.Snippet)
	}
	if viz != nil && viz.Status == VizStatusSuccess {
		payload, _ := json.Marshal(viz.Payload)
		fmt.Fprintf(&b, "An auxiliary %s dataset will be shown alongside the answer:\n%s\n\n", viz.Type, payload)
	}
	b.WriteString(`Respond with strict JSON only:
{
  "response": "the answer with [n] citation markers",
  "citations": [{"number": 1, "source": "domain", "url": "https://..."}],
  "visualizationContext": "one sentence describing the auxiliary dataset, or empty"
}`)
	return b.String()
}
