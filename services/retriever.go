package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/itish2003/rag-eval/models"
)

const (
	DefaultTopK = 3

	excerptSentences = 2
	sentenceBoundary = ". "
	ellipsis         = "..."
)

// Retrieval is the outcome of one nearest-neighbour lookup for a question.
type Retrieval struct {
	// Chunks are the retrieved chunks, nearest first.
	Chunks []models.Chunk
	// DisplayContext holds one bounded "[source] excerpt" line per source.
	DisplayContext []string
	// FullContext is every retrieved chunk text joined by a space. It is fed
	// to generation only and never shown to callers.
	FullContext string
	Relevant    bool
}

// Retriever looks up the chunks closest to a question.
type Retriever struct {
	store    *DocumentStore
	embedder Embedder
}

func NewRetriever(store *DocumentStore, embedder Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve embeds question and returns its k nearest chunks. An empty store
// short-circuits before the question is embedded.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) (Retrieval, error) {
	if r.store.Len() == 0 {
		log.Printf("RETRIEVER: Store is empty, nothing to retrieve for %q", question)
		return Retrieval{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryVec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return Retrieval{}, fmt.Errorf("embed question: %w", providerError(err))
	}
	hits, err := r.store.Search(ctx, queryVec, k)
	if err != nil {
		return Retrieval{}, fmt.Errorf("search index: %w", err)
	}

	relevant := false
	for _, h := range hits {
		if strings.TrimSpace(h.Chunk.Text) != "" {
			relevant = true
			break
		}
	}
	if !relevant {
		log.Printf("RETRIEVER: No relevant chunks for %q (%d hits)", question, len(hits))
		return Retrieval{}, nil
	}

	chunks := make([]models.Chunk, len(hits))
	texts := make([]string, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
		texts[i] = h.Chunk.Text
	}
	log.Printf("RETRIEVER: Retrieved %d chunks for %q", len(chunks), question)
	return Retrieval{
		Chunks:         chunks,
		DisplayContext: DisplayContext(chunks),
		FullContext:    strings.Join(texts, " "),
		Relevant:       true,
	}, nil
}

// DisplayContext keeps the first chunk of each source, in order, and renders
// it as "[source] excerpt".
func DisplayContext(chunks []models.Chunk) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range chunks {
		if seen[c.SourceID] {
			continue
		}
		seen[c.SourceID] = true
		out = append(out, fmt.Sprintf("[%s] %s", c.SourceID, Excerpt(c.Text, excerptSentences)))
	}
	return out
}

// Excerpt returns the first n ". "-separated sentences of text, followed by
// "..." when anything was cut.
func Excerpt(text string, n int) string {
	sentences := strings.Split(text, sentenceBoundary)
	if len(sentences) <= n {
		return text
	}
	return strings.Join(sentences[:n], sentenceBoundary) + ellipsis
}
