// Package llm wraps the external text-generation capability behind a small
// provider interface so the pipeline can be exercised with fakes.
package llm

import (
	"context"
	"fmt"

	"github.com/farshadkazemi/clarity/config"
)

// Provider is the interface all text-generation implementations satisfy.
// Generate returns raw model text; callers own parsing and must treat the
// output as untrusted input.
type Provider interface {
	Generate(ctx context.Context, prompt string, model string) (string, error)
}

// NewProvider creates a provider from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Provider)
	}
}
