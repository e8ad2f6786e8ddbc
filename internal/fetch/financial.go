package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
)

const financialEndpoint = "https://www.alphavantage.co/query"

// maxSeriesPoints caps the daily series returned to callers.
const maxSeriesPoints = 30

// StockOverview carries company fundamentals. Fields are provider strings;
// missing data stays empty rather than failing the whole quote.
type StockOverview struct {
	Symbol        string `json:"Symbol"`
	Name          string `json:"Name"`
	Description   string `json:"Description"`
	Sector        string `json:"Sector"`
	Industry      string `json:"Industry"`
	MarketCap     string `json:"MarketCapitalization"`
	PERatio       string `json:"PERatio"`
	DividendYield string `json:"DividendYield"`
	High52Week    string `json:"52WeekHigh"`
	Low52Week     string `json:"52WeekLow"`
}

// StockPoint is one daily close.
type StockPoint struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// StockReport bundles overview and the most recent daily series, newest first.
type StockReport struct {
	Overview  StockOverview `json:"overview"`
	StockData []StockPoint  `json:"stockData"`
}

// FinancialClient fetches quotes from Alpha Vantage.
type FinancialClient struct {
	apiKey   string
	Endpoint string
	http     *HTTPClient
}

func NewFinancialClient(apiKey string, httpc *HTTPClient) *FinancialClient {
	return &FinancialClient{apiKey: apiKey, Endpoint: financialEndpoint, http: httpc}
}

// Quote fetches overview and daily series concurrently. A failed sub-fetch
// leaves its part empty; an error is returned only when both legs fail at the
// transport level.
func (f *FinancialClient) Quote(ctx context.Context, symbol string) (StockReport, error) {
	var (
		wg          sync.WaitGroup
		overview    StockOverview
		series      []StockPoint
		overviewErr error
		seriesErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		overview, overviewErr = f.fetchOverview(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		series, seriesErr = f.fetchDailySeries(ctx, symbol)
	}()
	wg.Wait()

	if overviewErr != nil && seriesErr != nil {
		return StockReport{}, fmt.Errorf("quote %s: %w", symbol, overviewErr)
	}
	if overview.Symbol == "" {
		overview.Symbol = symbol
	}
	return StockReport{Overview: overview, StockData: series}, nil
}

func (f *FinancialClient) fetchOverview(ctx context.Context, symbol string) (StockOverview, error) {
	u := fmt.Sprintf("%s?function=OVERVIEW&symbol=%s&apikey=%s", f.Endpoint, url.QueryEscape(symbol), url.QueryEscape(f.apiKey))
	var overview StockOverview
	if err := f.http.DoJSON(ctx, "GET", u, nil, nil, &overview); err != nil {
		return StockOverview{}, err
	}
	return overview, nil
}

func (f *FinancialClient) fetchDailySeries(ctx context.Context, symbol string) ([]StockPoint, error) {
	u := fmt.Sprintf("%s?function=TIME_SERIES_DAILY&symbol=%s&apikey=%s", f.Endpoint, url.QueryEscape(symbol), url.QueryEscape(f.apiKey))

	var raw struct {
		Series map[string]struct {
			Close  string `json:"4. close"`
			Volume string `json:"5. volume"`
		} `json:"Time Series (Daily)"`
	}
	if err := f.http.DoJSON(ctx, "GET", u, nil, nil, &raw); err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(raw.Series))
	for d := range raw.Series {
		dates = append(dates, d)
	}
	// ISO dates sort lexicographically; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var points []StockPoint
	for _, d := range dates {
		if len(points) >= maxSeriesPoints {
			break
		}
		entry := raw.Series[d]
		closePrice, err := strconv.ParseFloat(entry.Close, 64)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(entry.Volume, 10, 64)
		points = append(points, StockPoint{Date: d, Close: closePrice, Volume: volume})
	}
	return points, nil
}
