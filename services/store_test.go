package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itish2003/rag-eval/models"
)

func TestFlatIndexSearch(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(2)
	require.NoError(t, idx.Add(ctx, [][]float32{{0, 0}, {3, 4}, {1, 0}}))

	hits, err := idx.Search(ctx, []float32{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []Neighbor{{Position: 0, Distance: 0}, {Position: 2, Distance: 1}}, hits)

	hits, err = idx.Search(ctx, []float32{0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 1, hits[2].Position)
	assert.InDelta(t, 5.0, hits[2].Distance, 1e-9)
}

func TestFlatIndexRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(2)
	err := idx.Add(ctx, [][]float32{{1, 1}, {1, 2, 3}})
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Equal(t, 0, idx.Len(), "a rejected batch must not be partially applied")

	_, err = idx.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	_, err = FlatIndexFactory(ctx, 0)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestDocumentStoreAddRemoveKeepsIndexAligned(t *testing.T) {
	ctx := context.Background()
	emb := &letterEmbedder{}
	store := newTestStore(t, emb)

	n, err := store.Add(ctx, []Document{
		{SourceID: "a.txt", Text: "The sky is blue."},
		{SourceID: "b.txt", Text: "Grass is green."},
		{SourceID: "c.txt", Text: "Snow is white."},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, store.Len(), store.IndexLen())

	embedCalls := emb.calls.Load()
	removed, err := store.Remove(ctx, []string{"b.txt", "missing.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, removed)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, store.Len(), store.IndexLen())
	assert.Equal(t, embedCalls, emb.calls.Load(), "removal must reuse cached vectors")

	for _, c := range store.Chunks() {
		assert.NotEqual(t, "b.txt", c.SourceID)
	}

	vec, _ := emb.Embed(ctx, "Snow is white.")
	hits, err := store.Search(ctx, vec, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, models.Chunk{SourceID: "c.txt", Text: "Snow is white."}, hits[0].Chunk)
}

func TestDocumentStoreRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, &letterEmbedder{})
	_, err := store.Add(ctx, []Document{{SourceID: "a.txt", Text: "alpha"}, {SourceID: "b.txt", Text: "beta"}})
	require.NoError(t, err)

	removed, err := store.Remove(ctx, []string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, removed)
	before := store.Chunks()

	removed, err = store.Remove(ctx, []string{"a.txt"})
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, before, store.Chunks())
}

func TestDocumentStoreRemoveAllDropsIndex(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, &letterEmbedder{})
	_, err := store.Add(ctx, []Document{{SourceID: "a.txt", Text: "alpha"}})
	require.NoError(t, err)

	_, err = store.Remove(ctx, []string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.IndexLen())

	hits, err := store.Search(ctx, make([]float32, 27), 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// A fresh add after emptying recreates the index.
	_, err = store.Add(ctx, []Document{{SourceID: "b.txt", Text: "beta"}})
	require.NoError(t, err)
	assert.Equal(t, 1, store.IndexLen())
}

func TestDocumentStoreAddIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	emb := &letterEmbedder{failOn: "poison"}
	store := newTestStore(t, emb)
	_, err := store.Add(ctx, []Document{{SourceID: "a.txt", Text: "alpha"}})
	require.NoError(t, err)

	_, err = store.Add(ctx, []Document{
		{SourceID: "b.txt", Text: "beta"},
		{SourceID: "c.txt", Text: "poison pill"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, []models.Chunk{{SourceID: "a.txt", Text: "alpha"}}, store.Chunks())
	assert.Equal(t, 1, store.IndexLen())
}

func TestDocumentStoreSources(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(fixedChunker{"one", "two"}, &letterEmbedder{}, FlatIndexFactory)
	_, err := store.Add(ctx, []Document{{SourceID: "z.md", Text: "x"}, {SourceID: "a.md", Text: "y"}})
	require.NoError(t, err)

	assert.Equal(t, []models.DocumentSummary{{Source: "a.md", Chunks: 2}, {Source: "z.md", Chunks: 2}}, store.Sources())
}
