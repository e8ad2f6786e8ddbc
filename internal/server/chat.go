package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/farshadkazemi/clarity/internal/pipeline"
)

var chatTracer = otel.Tracer("clarity/server/chat")

// ChatRunner handles a follow-up message on an existing conversation.
type ChatRunner interface {
	Continue(ctx context.Context, conversationID, message string) (pipeline.ChatResult, error)
}

// ChatHandler serves synchronous conversation turns.
type ChatHandler struct {
	Pipeline ChatRunner
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

func (h *ChatHandler) chat(c echo.Context) error {
	req := c.Request()
	ctx, span := chatTracer.Start(req.Context(), "ChatHandler.chat")
	defer span.End()
	c.SetRequest(req.WithContext(ctx))

	var body ChatRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	span.SetAttributes(attribute.String("conversation_id", body.ConversationID))

	result, err := h.Pipeline.Continue(ctx, body.ConversationID, body.Message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, pipeline.ErrMissingConversation), errors.Is(err, pipeline.ErrEmptyQuery):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, pipeline.ErrConversationNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Answer:               result.Answer,
		Citations:            result.Citations,
		Visualization:        result.Visualization,
		VisualizationContext: result.VisualizationContext,
		ConversationID:       result.ConversationID,
	})
}
