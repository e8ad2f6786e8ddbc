package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Sentinel errors surfaced to the HTTP layer as client errors.
var (
	ErrMissingConversation  = errors.New("conversation id is required")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyQuery           = errors.New("query is required")
)

// summaryLimit bounds the rolling conversation summary.
const summaryLimit = 500

// ChatResult is the synchronous continuation response.
type ChatResult struct {
	Answer               string               `json:"answer"`
	Citations            []Citation           `json:"citations"`
	Visualization        *VisualizationResult `json:"visualization,omitempty"`
	VisualizationContext string               `json:"visualizationContext,omitempty"`
	ConversationID       string               `json:"conversationId"`
}

// Pipeline wires the components into the two request flows. All external
// capabilities are injected so the flows can run against fakes.
type Pipeline struct {
	decomposer  *Decomposer
	aggregator  *Aggregator
	classifier  *Classifier
	synthesizer *Synthesizer
	store       Store
	cache       ContextCache // optional
	logger      *log.Logger
	now         func() time.Time
}

func New(decomposer *Decomposer, aggregator *Aggregator, classifier *Classifier, synthesizer *Synthesizer, store Store, cache ContextCache, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &Pipeline{
		decomposer:  decomposer,
		aggregator:  aggregator,
		classifier:  classifier,
		synthesizer: synthesizer,
		store:       store,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes the full search flow for one query, emitting ordered progress
// events. Events already flushed are never retracted; when Run returns an
// error the caller terminates the stream with an error signal.
func (p *Pipeline) Run(ctx context.Context, query string, emit Emitter) error {
	if query == "" {
		return ErrEmptyQuery
	}

	now := p.now()
	conv := Conversation{ID: uuid.NewString(), Query: query, CreatedAt: now, UpdatedAt: now}
	p.tryStore("save conversation", p.store.SaveConversation(ctx, conv))

	if err := emit(Event{Type: EventProcessing, Data: ProcessingData{Step: StepDecomposition}}); err != nil {
		return err
	}
	subs := p.decomposer.Decompose(ctx, query)
	if len(subs) == 1 && subs[0] == query {
		degradedDecompositions.Inc()
	}
	if err := emit(Event{Type: EventDecomposition, Data: DecompositionData{SubQueries: subs}}); err != nil {
		return err
	}

	if err := emit(Event{Type: EventProcessing, Data: ProcessingData{Step: StepSearch}}); err != nil {
		return err
	}
	results, err := p.aggregator.Aggregate(ctx, query, subs, func(i int, sub string, partial []SearchResult) error {
		if partial == nil {
			partial = []SearchResult{}
		}
		return emit(Event{Type: EventSearch, Data: SearchData{
			SubQuery:       sub,
			PartialResults: partial,
			Progress:       Progress{Current: i + 1, Total: len(subs)},
		}})
	})
	if err != nil {
		runsTotal.WithLabelValues("search", "error").Inc()
		return err
	}

	if err := emit(Event{Type: EventProcessing, Data: ProcessingData{Step: StepAnalysis}}); err != nil {
		return err
	}

	intent, _ := p.classifier.Classify(ctx, query, "", nil)
	viz := p.classifier.Dispatch(ctx, intent)

	synthesis, err := p.synthesizer.Synthesize(ctx, query, results, "", viz)
	if err != nil {
		runsTotal.WithLabelValues("search", "error").Inc()
		return fmt.Errorf("synthesis: %w", err)
	}
	if synthesis.Fallback {
		fallbackSyntheses.Inc()
	}

	p.persistExchange(ctx, conv.ID, query, results, synthesis, viz)

	if results == nil {
		results = []SearchResult{}
	}
	if err := emit(Event{Type: EventComplete, Data: CompleteData{
		SearchResults:  results,
		SummaryText:    synthesis.Response,
		OriginalQuery:  query,
		ConversationID: conv.ID,
	}}); err != nil {
		return err
	}
	runsTotal.WithLabelValues("search", "ok").Inc()
	return nil
}

// Continue handles a follow-up message on an existing conversation: classify
// with stored context, search the enriched query, synthesize, persist.
func (p *Pipeline) Continue(ctx context.Context, conversationID, message string) (ChatResult, error) {
	if conversationID == "" {
		return ChatResult{}, ErrMissingConversation
	}
	if message == "" {
		return ChatResult{}, ErrEmptyQuery
	}

	conv, err := p.store.GetConversation(ctx, conversationID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	cc, ok := p.cachedContext(ctx, conversationID)
	if !ok {
		cc.Summary = conv.Summary
		if recent, err := p.store.RecentMessages(ctx, conversationID, RecencyWindow); err != nil {
			p.logger.Printf("recent messages unavailable: %v", err)
		} else {
			cc.Recent = recent
		}
	}

	turns := make([]Turn, 0, len(cc.Recent))
	for _, m := range cc.Recent {
		turns = append(turns, Turn{Role: string(m.Role), Content: m.Content})
	}

	intent, enriched := p.classifier.Classify(ctx, message, cc.Summary, turns)
	viz := p.classifier.Dispatch(ctx, intent)

	results, err := p.aggregator.Aggregate(ctx, message, []string{enriched}, nil)
	if err != nil {
		runsTotal.WithLabelValues("chat", "error").Inc()
		return ChatResult{}, err
	}

	synthesis, err := p.synthesizer.Synthesize(ctx, message, results, cc.Summary, viz)
	if err != nil {
		runsTotal.WithLabelValues("chat", "error").Inc()
		return ChatResult{}, fmt.Errorf("synthesis: %w", err)
	}
	if synthesis.Fallback {
		fallbackSyntheses.Inc()
	}

	assistant := p.persistExchange(ctx, conversationID, message, results, synthesis, viz)
	p.refreshCache(ctx, conversationID, synthesis.Response, cc.Recent, message, assistant)

	runsTotal.WithLabelValues("chat", "ok").Inc()
	return ChatResult{
		Answer:               synthesis.Response,
		Citations:            synthesis.Citations,
		Visualization:        viz,
		VisualizationContext: synthesis.VisualizationContext,
		ConversationID:       conversationID,
	}, nil
}

// persistExchange appends the user and assistant messages, records the
// search results, and rolls the conversation summary forward. Every write is
// independent; failures are logged and skipped.
func (p *Pipeline) persistExchange(ctx context.Context, conversationID, userText string, results []SearchResult, synthesis Synthesis, viz *VisualizationResult) Message {
	now := p.now()
	user := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        userText,
		CreatedAt:      now,
	}
	assistant := Message{
		ID:                   uuid.NewString(),
		ConversationID:       conversationID,
		Role:                 RoleAssistant,
		Content:              synthesis.Response,
		Citations:            synthesis.Citations,
		Visualization:        viz,
		VisualizationContext: synthesis.VisualizationContext,
		CreatedAt:            now.Add(time.Millisecond),
	}

	p.tryStore("append user message", p.store.AppendMessage(ctx, user))
	p.tryStore("append assistant message", p.store.AppendMessage(ctx, assistant))
	p.tryStore("insert search results", p.store.InsertSearchResults(ctx, conversationID, results))
	p.tryStore("update summary", p.store.UpdateConversationSummary(ctx, conversationID, truncate(synthesis.Response, summaryLimit)))
	return assistant
}

func (p *Pipeline) cachedContext(ctx context.Context, conversationID string) (ConversationContext, bool) {
	if p.cache == nil {
		return ConversationContext{}, false
	}
	return p.cache.GetContext(ctx, conversationID)
}

func (p *Pipeline) refreshCache(ctx context.Context, conversationID, summary string, priorRecent []Message, userText string, assistant Message) {
	if p.cache == nil {
		return
	}
	user := Message{ConversationID: conversationID, Role: RoleUser, Content: userText, CreatedAt: assistant.CreatedAt}
	recent := append(append([]Message{}, priorRecent...), user, assistant)
	if len(recent) > RecencyWindow {
		recent = recent[len(recent)-RecencyWindow:]
	}
	p.cache.SetContext(ctx, conversationID, ConversationContext{
		Summary: truncate(summary, summaryLimit),
		Recent:  recent,
	})
}

func (p *Pipeline) tryStore(op string, err error) {
	if err != nil {
		storeFailures.Inc()
		p.logger.Printf("store %s failed: %v", op, err)
	}
}

// truncate cuts s to at most n bytes, backing off to a rune boundary so the
// result stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
