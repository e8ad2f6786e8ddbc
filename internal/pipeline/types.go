// Package pipeline implements the request pipeline: query decomposition,
// parallel search aggregation, relevance scoring, visualization intent
// classification, and cited answer synthesis.
package pipeline

import (
	"context"
	"time"
)

// Conversation is a single top-level search and its follow-ups. Summary is
// set once after the first synthesis completes and rolls forward on
// continuations.
type Conversation struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one append-only conversation turn. Timestamp ordering defines
// history; the last three messages form the recency window fed into prompts.
type Message struct {
	ID                   string               `json:"id"`
	ConversationID       string               `json:"conversationId"`
	Role                 Role                 `json:"role"`
	Content              string               `json:"content"`
	Citations            []Citation           `json:"citations,omitempty"`
	Visualization        *VisualizationResult `json:"visualization,omitempty"`
	VisualizationContext string               `json:"visualizationContext,omitempty"`
	CreatedAt            time.Time            `json:"createdAt"`
}

// RecencyWindow is how many trailing messages feed back into prompts.
const RecencyWindow = 3

// SearchResult is one scored, normalized aggregation output. URL is unique
// within a conversation after dedup.
type SearchResult struct {
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      string    `json:"source"`
	Relevance   float64   `json:"relevance"`
}

// Citation ties an in-text [n] marker to a search result. Numbers are
// 1-based and need not be contiguous.
type Citation struct {
	Number int    `json:"number"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// IntentType enumerates visualization intents.
type IntentType string

const (
	IntentNone       IntentType = "none"
	IntentGeographic IntentType = "geographic"
	IntentFinancial  IntentType = "financial"
	IntentWeather    IntentType = "weather"
)

// IntentDetails carries fetcher-specific identifiers.
type IntentDetails struct {
	StockSymbol string `json:"stockSymbol,omitempty"`
	Location    string `json:"location,omitempty"`
}

// VisualizationIntent is the classifier's transient output. Only its
// resulting VisualizationResult is persisted.
type VisualizationIntent struct {
	Type       IntentType    `json:"type"`
	Entities   []string      `json:"entities,omitempty"`
	Confidence float64       `json:"confidence"`
	Details    IntentDetails `json:"details,omitempty"`
}

// Visualization result statuses.
const (
	VizStatusSuccess = "success"
	VizStatusError   = "error"
)

// VisualizationResult is a fetched auxiliary dataset attached to exactly one
// message. Immutable after creation.
type VisualizationResult struct {
	Type    IntentType  `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
}

// Turn is a role/content pair fed into classification prompts.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationContext is the stored state a continuation re-enters with.
type ConversationContext struct {
	Summary string    `json:"summary"`
	Recent  []Message `json:"recent"`
}

// Store is the persistence boundary. Writes are independent appends; the
// pipeline tolerates any of them failing without aborting the user-facing
// response.
type Store interface {
	SaveConversation(ctx context.Context, c Conversation) error
	GetConversation(ctx context.Context, id string) (Conversation, error)
	UpdateConversationSummary(ctx context.Context, id, summary string) error
	AppendMessage(ctx context.Context, m Message) error
	RecentMessages(ctx context.Context, conversationID string, n int) ([]Message, error)
	InsertSearchResults(ctx context.Context, conversationID string, results []SearchResult) error
	ListSearchResults(ctx context.Context, conversationID string) ([]SearchResult, error)
}

// ContextCache is an optional hot cache for per-conversation context.
type ContextCache interface {
	GetContext(ctx context.Context, conversationID string) (ConversationContext, bool)
	SetContext(ctx context.Context, conversationID string, cc ConversationContext)
}
