package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/itish2003/rag-eval/models"
)

// Document is a raw source text waiting to be chunked and indexed.
type Document struct {
	SourceID string
	Text     string
}

// Hit is a chunk returned by a nearest-neighbour search.
type Hit struct {
	Chunk    models.Chunk
	Distance float64
}

type storedChunk struct {
	chunk  models.Chunk
	vector []float32
}

// DocumentStore owns the ordered chunk list and the vector index built over
// it. The chunk at position i always corresponds to index position i. Every
// chunk keeps its vector so removals rebuild the index without re-embedding.
type DocumentStore struct {
	chunker  Chunker
	embedder Embedder
	newIndex IndexFactory

	mu        sync.RWMutex
	chunks    []storedChunk
	index     VectorIndex // nil while the store is empty
	dimension int
}

func NewDocumentStore(chunker Chunker, embedder Embedder, newIndex IndexFactory) *DocumentStore {
	if newIndex == nil {
		newIndex = FlatIndexFactory
	}
	return &DocumentStore{
		chunker:  chunker,
		embedder: embedder,
		newIndex: newIndex,
	}
}

// Add chunks and embeds every document, then appends the chunks and their
// vectors in one step. If any chunk cannot be embedded or the index rejects
// the batch, the store is left exactly as it was. Returns the number of
// chunks added.
func (s *DocumentStore) Add(ctx context.Context, docs []Document) (int, error) {
	var pending []storedChunk
	for _, doc := range docs {
		texts, err := s.chunker.Split(doc.Text)
		if err != nil {
			return 0, fmt.Errorf("chunk %s: %w", doc.SourceID, err)
		}
		for i, text := range texts {
			vec, err := s.embedder.Embed(ctx, text)
			if err != nil {
				return 0, fmt.Errorf("%w: embed chunk %d of %s: %w", ErrIndexUnavailable, i, doc.SourceID, providerError(err))
			}
			pending = append(pending, storedChunk{
				chunk:  models.Chunk{SourceID: doc.SourceID, Text: text},
				vector: vec,
			})
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, len(pending))
	for i, c := range pending {
		vectors[i] = c.vector
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		idx, err := s.newIndex(ctx, len(vectors[0]))
		if err != nil {
			return 0, fmt.Errorf("%w: create index: %v", ErrIndexUnavailable, err)
		}
		if err := idx.Add(ctx, vectors); err != nil {
			dropIndex(ctx, idx)
			return 0, err
		}
		s.index = idx
		s.dimension = len(vectors[0])
	} else if err := s.index.Add(ctx, vectors); err != nil {
		return 0, err
	}
	s.chunks = append(s.chunks, pending...)
	return len(pending), nil
}

// Remove deletes every chunk whose source is in sourceIDs and rebuilds the
// index over the survivors from their cached vectors. It returns the sources
// that lost at least one chunk. The new index is swapped in only once it is
// fully built, so a failed rebuild leaves the store unchanged.
func (s *DocumentStore) Remove(ctx context.Context, sourceIDs []string) ([]string, error) {
	drop := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]bool)
	survivors := make([]storedChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if drop[c.chunk.SourceID] {
			removed[c.chunk.SourceID] = true
			continue
		}
		survivors = append(survivors, c)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	var rebuilt VectorIndex
	if len(survivors) > 0 {
		idx, err := s.newIndex(ctx, s.dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: rebuild index: %v", ErrIndexUnavailable, err)
		}
		vectors := make([][]float32, len(survivors))
		for i, c := range survivors {
			vectors[i] = c.vector
		}
		if err := idx.Add(ctx, vectors); err != nil {
			dropIndex(ctx, idx)
			return nil, err
		}
		rebuilt = idx
	}

	old := s.index
	s.chunks = survivors
	s.index = rebuilt
	if old != nil {
		dropIndex(ctx, old)
	}

	names := make([]string, 0, len(removed))
	for name := range removed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Search returns up to k chunks nearest to vector by ascending distance.
func (s *DocumentStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index == nil || k <= 0 {
		return nil, nil
	}
	neighbors, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(s.chunks) {
			continue
		}
		hits = append(hits, Hit{Chunk: s.chunks[n.Position].chunk, Distance: n.Distance})
	}
	return hits, nil
}

// Len returns the number of stored chunks.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// IndexLen returns the number of vectors in the index, zero when absent.
func (s *DocumentStore) IndexLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return 0
	}
	return s.index.Len()
}

// Sources lists every source with its chunk count, ordered by name.
func (s *DocumentStore) Sources() []models.DocumentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range s.chunks {
		counts[c.chunk.SourceID]++
	}
	out := make([]models.DocumentSummary, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.DocumentSummary{Source: name, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Chunks returns a copy of the stored chunks in index order.
func (s *DocumentStore) Chunks() []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chunk, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = c.chunk
	}
	return out
}

type droppable interface {
	Drop(ctx context.Context) error
}

func dropIndex(ctx context.Context, idx VectorIndex) {
	d, ok := idx.(droppable)
	if !ok {
		return
	}
	if err := d.Drop(ctx); err != nil {
		log.Printf("INDEX WARN: failed to drop superseded index: %v", err)
	}
}

func providerError(err error) error {
	if err == nil || errors.Is(err, ErrProviderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
