package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode"

	"github.com/itish2003/rag-eval/models"
)

// letterEmbedder embeds text as its a-z letter histogram plus one bias
// dimension, so similar words land close together.
type letterEmbedder struct {
	calls  atomic.Int64
	failOn string
}

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding backend down")
	}
	vec := make([]float32, 27)
	vec[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (g *fakeGenerator) Name() string { return "fake/test" }

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.respond == nil {
		return "generated answer", nil
	}
	return g.respond(prompt)
}

func (g *fakeGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type scorerFunc func(ctx context.Context, in EvaluationInput) (models.SubsystemMetrics, error)

func (f scorerFunc) Score(ctx context.Context, in EvaluationInput) (models.SubsystemMetrics, error) {
	return f(ctx, in)
}

func constantScorer(name string, value float64) Scorer {
	return scorerFunc(func(context.Context, EvaluationInput) (models.SubsystemMetrics, error) {
		return models.SubsystemMetrics{name: {Value: value, Reason: "ok", Pass: true}}, nil
	})
}

// fixedChunker returns the same chunks for every document.
type fixedChunker []string

func (c fixedChunker) Split(string) ([]string, error) { return []string(c), nil }

func newTestStore(t testing.TB, emb Embedder) *DocumentStore {
	t.Helper()
	chunker, err := NewWindowChunker(DefaultChunkSize, DefaultChunkOverlap)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	return NewDocumentStore(chunker, emb, nil)
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
