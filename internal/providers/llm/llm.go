package llm

import "context"

// Provider generates text from a prompt.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}
