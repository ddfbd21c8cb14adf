// Package llm wraps the external text-generation service behind a one-method
// interface so pipeline stages can be tested against a stub.
package llm

import (
	"context"
)

// Options carries per-request generation parameters.
type Options struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Client sends a prompt to a language model and returns the reply text.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}
