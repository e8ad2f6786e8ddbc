package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/farshadkazemi/clarity/internal/pipeline"
)

var searchTracer = otel.Tracer("clarity/server/search")

// SearchRunner runs one query through the full search flow, emitting ordered
// progress events.
type SearchRunner interface {
	Run(ctx context.Context, query string, emit pipeline.Emitter) error
}

// SearchHandler streams search progress over Server-Sent Events.
type SearchHandler struct {
	Pipeline SearchRunner
	Logger   *log.Logger
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.GET("/search/stream", h.stream)
}

// stream runs the search flow for ?query= and emits one SSE event per
// pipeline stage. Events already flushed are never retracted; a failure
// after the stream opens terminates it with an error event.
func (h *SearchHandler) stream(c echo.Context) error {
	req := c.Request()
	ctx, span := searchTracer.Start(req.Context(), "SearchHandler.stream")
	defer span.End()
	c.SetRequest(req.WithContext(ctx))

	query := strings.TrimSpace(c.QueryParam("query"))
	if query == "" {
		span.SetStatus(codes.Error, "query required")
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}
	span.SetAttributes(attribute.String("query", query))

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "streaming unsupported")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	emit := func(ev pipeline.Event) error {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.Pipeline.Run(ctx, query, emit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger().Printf("search stream failed: %v", err)
		// Stream is already open; the error event is the only channel left.
		_ = emit(pipeline.Event{
			Type: pipeline.EventError,
			Data: pipeline.ErrorData{Message: "search failed"},
		})
	}
	return nil
}

func (h *SearchHandler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}
