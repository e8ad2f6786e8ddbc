package server

import "github.com/farshadkazemi/clarity/internal/pipeline"

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// ChatRequest represents a follow-up message on an existing conversation.
type ChatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// ChatResponse carries the synthesized answer for a chat turn.
type ChatResponse struct {
	Answer               string                        `json:"answer"`
	Citations            []pipeline.Citation           `json:"citations"`
	Visualization        *pipeline.VisualizationResult `json:"visualization,omitempty"`
	VisualizationContext string                        `json:"visualizationContext,omitempty"`
	ConversationID       string                        `json:"conversationId"`
}
