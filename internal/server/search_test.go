package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/farshadkazemi/clarity/internal/pipeline"
)

type fakeRunner struct {
	events []pipeline.Event
	err    error
	query  string
}

func (f *fakeRunner) Run(_ context.Context, query string, emit pipeline.Emitter) error {
	f.query = query
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return f.err
}

func TestSearchStreamEmitsEventsInOrder(t *testing.T) {
	e := echo.New()
	runner := &fakeRunner{events: []pipeline.Event{
		{Type: pipeline.EventProcessing, Data: pipeline.ProcessingData{Step: pipeline.StepDecomposition}},
		{Type: pipeline.EventDecomposition, Data: pipeline.DecompositionData{SubQueries: []string{"a", "b"}}},
		{Type: pipeline.EventProcessing, Data: pipeline.ProcessingData{Step: pipeline.StepSearch}},
		{Type: pipeline.EventSearch, Data: pipeline.SearchData{SubQuery: "a", PartialResults: []pipeline.SearchResult{}, Progress: pipeline.Progress{Current: 1, Total: 2}}},
		{Type: pipeline.EventSearch, Data: pipeline.SearchData{SubQuery: "b", PartialResults: []pipeline.SearchResult{}, Progress: pipeline.Progress{Current: 2, Total: 2}}},
		{Type: pipeline.EventProcessing, Data: pipeline.ProcessingData{Step: pipeline.StepAnalysis}},
		{Type: pipeline.EventComplete, Data: pipeline.CompleteData{SummaryText: "done", OriginalQuery: "q", ConversationID: "c1", SearchResults: []pipeline.SearchResult{}}},
	}}
	h := &SearchHandler{Pipeline: runner}

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?query=q", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.stream(ctx); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if runner.query != "q" {
		t.Fatalf("expected query %q got %q", "q", runner.query)
	}

	body := rec.Body.String()
	var kinds []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			kinds = append(kinds, strings.TrimPrefix(line, "event: "))
		}
	}
	want := []string{"processing", "decomposition", "processing", "search", "search", "processing", "complete"}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d events got %d: %v", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: expected %q got %q (all: %v)", i, want[i], kinds[i], kinds)
		}
	}
	if !strings.Contains(body, `data: {"searchResults":[],"summaryText":"done","originalQuery":"q","conversationId":"c1"}`) {
		t.Fatalf("complete payload missing from body:\n%s", body)
	}
}

func TestSearchStreamMissingQuery(t *testing.T) {
	e := echo.New()
	h := &SearchHandler{Pipeline: &fakeRunner{}}

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := h.stream(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", he.Code)
	}
}

func TestSearchStreamMidStreamFailure(t *testing.T) {
	e := echo.New()
	runner := &fakeRunner{
		events: []pipeline.Event{
			{Type: pipeline.EventProcessing, Data: pipeline.ProcessingData{Step: pipeline.StepDecomposition}},
		},
		err: errors.New("provider exploded"),
	}
	h := &SearchHandler{Pipeline: runner}

	req := httptest.NewRequest(http.MethodGet, "/api/search/stream?query=q", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.stream(ctx); err != nil {
		t.Fatalf("stream: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: error\n") {
		t.Fatalf("expected terminating error event, body:\n%s", body)
	}
	// Internal detail stays out of the stream.
	if strings.Contains(body, "provider exploded") {
		t.Fatalf("raw error leaked into stream:\n%s", body)
	}
}
