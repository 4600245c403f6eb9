package services

import (
	"context"
	"time"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider and model in logs, e.g. "gemini/gemini-2.5-flash".
	Name() string
}

type timeoutGenerator struct {
	Generator
	timeout time.Duration
}

// GeneratorWithTimeout bounds every Generate call by timeout. A non-positive
// timeout returns gen unchanged.
func GeneratorWithTimeout(gen Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		return gen
	}
	return &timeoutGenerator{Generator: gen, timeout: timeout}
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Generator.Generate(ctx, prompt)
}

type timeoutEmbedder struct {
	Embedder
	timeout time.Duration
}

// EmbedderWithTimeout bounds every Embed call by timeout.
func EmbedderWithTimeout(emb Embedder, timeout time.Duration) Embedder {
	if timeout <= 0 {
		return emb
	}
	return &timeoutEmbedder{Embedder: emb, timeout: timeout}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Embedder.Embed(ctx, text)
}
