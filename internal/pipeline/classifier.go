package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/farshadkazemi/clarity/internal/fetch"
	"github.com/farshadkazemi/clarity/internal/helpers"
	"github.com/farshadkazemi/clarity/internal/llm"
)

// dispatchThreshold gates fetcher dispatch on classifier confidence.
const dispatchThreshold = 0.7

// Classifier infers visualization intent and an enriched search query in a
// single model call, then dispatches the matching data fetcher.
type Classifier struct {
	llm          llm.Provider
	model        string
	geo          *fetch.GeoClient
	financial    *fetch.FinancialClient
	weather      *fetch.WeatherClient
	fetchTimeout time.Duration
	logger       *log.Logger
}

func NewClassifier(provider llm.Provider, model string, geo *fetch.GeoClient, financial *fetch.FinancialClient, weather *fetch.WeatherClient, fetchTimeout time.Duration, logger *log.Logger) *Classifier {
	if fetchTimeout == 0 {
		fetchTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CLASSIFY] ", log.LstdFlags)
	}
	return &Classifier{
		llm:          provider,
		model:        model,
		geo:          geo,
		financial:    financial,
		weather:      weather,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// Classify returns the visualization intent and an enriched query. One prompt
// asks for both to save a round trip. Any parse failure degrades to
// {type:none, confidence:0} with the original query; it never returns an
// error upward.
func (c *Classifier) Classify(ctx context.Context, query, summary string, recent []Turn) (VisualizationIntent, string) {
	none := VisualizationIntent{Type: IntentNone, Confidence: 0}

	raw, err := c.llm.Generate(ctx, c.buildPrompt(query, summary, recent), c.model)
	if err != nil {
		c.logger.Printf("generate failed: %v", err)
		return none, query
	}
	blob, err := helpers.ExtractJSON(raw)
	if err != nil {
		c.logger.Printf("no JSON in response: %v", err)
		return none, query
	}

	var parsed struct {
		EnhancedQuery string `json:"enhancedQuery"`
		Visualization struct {
			Type       string   `json:"type"`
			Entities   []string `json:"entities"`
			Confidence float64  `json:"confidence"`
			Details    struct {
				StockSymbol string `json:"stockSymbol"`
				Location    string `json:"location"`
			} `json:"details"`
		} `json:"visualization"`
	}
	if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
		c.logger.Printf("parse failed: %v", err)
		return none, query
	}

	enriched := strings.TrimSpace(parsed.EnhancedQuery)
	if enriched == "" {
		enriched = query
	}

	intent := VisualizationIntent{
		Type:       intentType(parsed.Visualization.Type),
		Entities:   parsed.Visualization.Entities,
		Confidence: clamp01(parsed.Visualization.Confidence),
		Details: IntentDetails{
			StockSymbol: strings.TrimSpace(parsed.Visualization.Details.StockSymbol),
			Location:    strings.TrimSpace(parsed.Visualization.Details.Location),
		},
	}
	return intent, enriched
}

// Dispatch invokes the fetcher matching the intent under a bounded timeout.
// Returns nil when no visualization applies; fetcher failures yield an error
// envelope rather than aborting.
func (c *Classifier) Dispatch(ctx context.Context, intent VisualizationIntent) *VisualizationResult {
	if intent.Type == IntentNone || intent.Confidence <= dispatchThreshold {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	switch intent.Type {
	case IntentGeographic:
		if len(intent.Entities) == 0 || c.geo == nil {
			return nil
		}
		loc, err := c.geo.Geocode(ctx, intent.Entities[0])
		if err != nil {
			return errEnvelope(IntentGeographic, err)
		}
		return &VisualizationResult{Type: IntentGeographic, Payload: loc, Status: VizStatusSuccess}
	case IntentFinancial:
		if intent.Details.StockSymbol == "" || c.financial == nil {
			return nil
		}
		report, err := c.financial.Quote(ctx, intent.Details.StockSymbol)
		if err != nil {
			return errEnvelope(IntentFinancial, err)
		}
		return &VisualizationResult{Type: IntentFinancial, Payload: report, Status: VizStatusSuccess}
	case IntentWeather:
		if intent.Details.Location == "" || c.weather == nil {
			return nil
		}
		report, err := c.weather.Forecast(ctx, intent.Details.Location)
		if err != nil {
			return errEnvelope(IntentWeather, err)
		}
		return &VisualizationResult{Type: IntentWeather, Payload: report, Status: VizStatusSuccess}
	default:
		return nil
	}
}

func errEnvelope(t IntentType, err error) *VisualizationResult {
	return &VisualizationResult{Type: t, Status: VizStatusError, Error: err.Error()}
}

func intentType(s string) IntentType {
	switch IntentType(strings.ToLower(strings.TrimSpace(s))) {
	case IntentGeographic:
		return IntentGeographic
	case IntentFinancial:
		return IntentFinancial
	case IntentWeather:
		return IntentWeather
	default:
		return IntentNone
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (c *Classifier) buildPrompt(query, summary string, recent []Turn) string {
	var b strings.Builder
	b.WriteString("You improve web search queries and detect whether a query calls for a geographic, financial, or weather visualization.\n\n")
	if summary != "" {
		b.WriteString("Conversation summary:\n" + summary + "\n\n")
	}
	if len(recent) > 0 {
		b.WriteString("Recent turns:\n")
		for _, turn := range recent {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User query: %s\n\n", query)
	b.WriteString(`Respond with strict JSON only:
{
  "enhancedQuery": "reworded query optimized for a search engine",
  "visualization": {
    "type": "none|geographic|financial|weather",
    "entities": ["named entities, most relevant first"],
    "confidence": 0.0,
    "details": {"stockSymbol": "ticker if financial", "location": "place if weather"}
  }
}`)
	return b.String()
}
