// Package search wraps the external web-search capability.
package search

import (
	"context"
	"errors"
	"time"
)

// Result is one raw hit from the search capability. Date carries whatever
// publish metadata the provider exposes; it may be empty or free-form.
type Result struct {
	Title   string
	URL     string
	Snippet string
	Date    string
}

// WebSearcher issues one bounded search call. Implementations must honor ctx
// cancellation and never return more than k results.
type WebSearcher interface {
	Search(ctx context.Context, query string, k int) ([]Result, error)
}

// Provider selects a search backend.
type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

// ErrUnsupportedProvider is returned for unknown backends.
var ErrUnsupportedProvider = errors.New("unsupported search provider")

// NewWebSearcher builds the configured backend with a bounded HTTP timeout.
func NewWebSearcher(provider Provider, apiKey string, timeout time.Duration) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return NewSerper(apiKey, timeout), nil
	case BraveProvider:
		return NewBrave(apiKey, timeout), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
