package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farshadkazemi/clarity/internal/fetch"
	"github.com/stretchr/testify/require"
)

func classifierWith(llmResponse string, llmErr error) *Classifier {
	provider := &fakeLLM{fn: func(prompt, model string) (string, error) {
		return llmResponse, llmErr
	}}
	return NewClassifier(provider, "fast", nil, nil, nil, time.Second, nil)
}

func TestClassify(t *testing.T) {
	t.Parallel()
	c := classifierWith(`{
		"enhancedQuery": "AAPL stock price Vision Pro impact",
		"visualization": {
			"type": "financial",
			"entities": ["Apple"],
			"confidence": 0.9,
			"details": {"stockSymbol": "AAPL"}
		}
	}`, nil)

	intent, enriched := c.Classify(context.Background(), "Apple stock after Vision Pro", "", nil)
	require.Equal(t, IntentFinancial, intent.Type)
	require.Equal(t, 0.9, intent.Confidence)
	require.Equal(t, "AAPL", intent.Details.StockSymbol)
	require.Equal(t, "AAPL stock price Vision Pro impact", enriched)
}

func TestClassifyParseFailure(t *testing.T) {
	t.Parallel()
	for _, response := range []string{"not json at all", `{"visualization": "wrong shape`} {
		c := classifierWith(response, nil)
		intent, enriched := c.Classify(context.Background(), "original", "", nil)
		require.Equal(t, IntentNone, intent.Type)
		require.Equal(t, 0.0, intent.Confidence)
		require.Equal(t, "original", enriched)
	}
}

func TestClassifyServiceFailure(t *testing.T) {
	t.Parallel()
	c := classifierWith("", errors.New("timeout"))
	intent, enriched := c.Classify(context.Background(), "original", "", nil)
	require.Equal(t, IntentNone, intent.Type)
	require.Equal(t, "original", enriched)
}

func TestClassifyUnknownTypeAndClamp(t *testing.T) {
	t.Parallel()
	c := classifierWith(`{"enhancedQuery":"q","visualization":{"type":"astrological","confidence":3.5}}`, nil)
	intent, _ := c.Classify(context.Background(), "q", "", nil)
	require.Equal(t, IntentNone, intent.Type)
	require.Equal(t, 1.0, intent.Confidence)
}

func TestDispatchConfidenceGate(t *testing.T) {
	t.Parallel()
	c := classifierWith("", nil)
	res := c.Dispatch(context.Background(), VisualizationIntent{
		Type: IntentFinancial, Confidence: 0.7,
		Details: IntentDetails{StockSymbol: "AAPL"},
	})
	require.Nil(t, res, "confidence must exceed 0.7 to dispatch")

	res = c.Dispatch(context.Background(), VisualizationIntent{Type: IntentNone, Confidence: 0.99})
	require.Nil(t, res)
}

func TestDispatchFinancial(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("function") {
		case "OVERVIEW":
			_ = json.NewEncoder(w).Encode(map[string]any{"Symbol": "AAPL", "Name": "Apple Inc"})
		case "TIME_SERIES_DAILY":
			_ = json.NewEncoder(w).Encode(map[string]any{"Time Series (Daily)": map[string]any{
				"2025-03-01": map[string]string{"4. close": "230.10", "5. volume": "900"},
			}})
		}
	}))
	defer srv.Close()

	financial := fetch.NewFinancialClient("k", fetch.NewHTTPClient(time.Second))
	financial.Endpoint = srv.URL
	c := NewClassifier(&fakeLLM{}, "fast", nil, financial, nil, time.Second, nil)

	res := c.Dispatch(context.Background(), VisualizationIntent{
		Type: IntentFinancial, Confidence: 0.9,
		Details: IntentDetails{StockSymbol: "AAPL"},
	})
	require.NotNil(t, res)
	require.Equal(t, VizStatusSuccess, res.Status)

	report, ok := res.Payload.(fetch.StockReport)
	require.True(t, ok)
	require.Equal(t, "AAPL", report.Overview.Symbol)
	require.LessOrEqual(t, len(report.StockData), 30)
}

func TestDispatchGeographicError(t *testing.T) {
	t.Parallel()
	geo := fetch.NewGeoClient("k", fetch.NewHTTPClient(200*time.Millisecond))
	geo.Endpoint = "http://127.0.0.1:1"
	c := NewClassifier(&fakeLLM{}, "fast", geo, nil, nil, time.Second, nil)

	res := c.Dispatch(context.Background(), VisualizationIntent{
		Type: IntentGeographic, Confidence: 0.95, Entities: []string{"Tokyo"},
	})
	require.NotNil(t, res)
	require.Equal(t, VizStatusError, res.Status, "fetcher failure becomes an error envelope")
	require.NotEmpty(t, res.Error)
}

func TestDispatchWeatherUnreachableGeocoder(t *testing.T) {
	t.Parallel()
	geo := fetch.NewGeoClient("k", fetch.NewHTTPClient(200*time.Millisecond))
	geo.Endpoint = "http://127.0.0.1:1"
	weather := fetch.NewWeatherClient(geo, fetch.NewHTTPClient(time.Second))
	c := NewClassifier(&fakeLLM{}, "fast", geo, nil, weather, time.Second, nil)

	res := c.Dispatch(context.Background(), VisualizationIntent{
		Type: IntentWeather, Confidence: 0.9,
		Details: IntentDetails{Location: "Tokyo"},
	})
	require.NotNil(t, res)
	require.Equal(t, VizStatusError, res.Status)
}

func TestDispatchMissingTarget(t *testing.T) {
	t.Parallel()
	c := classifierWith("", nil)
	res := c.Dispatch(context.Background(), VisualizationIntent{Type: IntentFinancial, Confidence: 0.9})
	require.Nil(t, res, "no stock symbol, nothing to fetch")
}
