package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
)

const (
	chromaScopeKey    = "index_scope"
	chromaPositionKey = "position"
)

// ChromaIndex stores vectors in a shared Chroma collection. Each index
// instance owns a scope attribute so a rebuilt index can be filled while the
// previous one still serves reads; the old scope is dropped after the swap.
type ChromaIndex struct {
	collection chromago.Collection
	scope      string
	dimension  int
	count      int
}

// NewChromaIndexFactory returns an IndexFactory that creates a fresh scope in
// collection for every index it builds.
func NewChromaIndexFactory(collection chromago.Collection) IndexFactory {
	return func(_ context.Context, dimension int) (VectorIndex, error) {
		if dimension <= 0 {
			return nil, fmt.Errorf("%w: invalid dimension %d", ErrIndexUnavailable, dimension)
		}
		return &ChromaIndex{
			collection: collection,
			scope:      uuid.New().String(),
			dimension:  dimension,
		}, nil
	}
}

func (c *ChromaIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, len(vectors))
	embs := make([]embeddings.Embedding, len(vectors))
	metas := make([]chromago.DocumentMetadata, len(vectors))
	for i, v := range vectors {
		if len(v) != c.dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d", ErrIndexUnavailable, i, len(v), c.dimension)
		}
		pos := c.count + i
		ids[i] = chromago.DocumentID(fmt.Sprintf("%s-%d", c.scope, pos))
		embs[i] = embeddings.NewEmbeddingFromFloat32(v)
		metas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(chromaScopeKey, c.scope),
			chromago.NewIntAttribute(chromaPositionKey, int64(pos)),
		)
	}
	// Upsert so records left behind by a failed batch are overwritten by the
	// next one; until then Search ignores positions at or past count.
	err := c.collection.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("%w: chroma upsert: %v", ErrIndexUnavailable, err)
	}
	c.count += len(vectors)
	return nil
}

func (c *ChromaIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if k <= 0 || c.count == 0 {
		return nil, nil
	}
	if k > c.count {
		k = c.count
	}
	results, err := c.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chromago.WithNResults(k),
		chromago.WithWhereQuery(chromago.EqString(chromaScopeKey, c.scope)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: chroma query: %v", ErrIndexUnavailable, err)
	}

	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(metadataGroups) == 0 {
		return nil, nil
	}
	hits := make([]Neighbor, 0, len(metadataGroups[0]))
	for i, meta := range metadataGroups[0] {
		pos, ok := chromaPosition(meta)
		if !ok || pos >= c.count {
			log.Printf("INDEX WARN: chroma record without a usable position in scope %s", c.scope)
			continue
		}
		hit := Neighbor{Position: pos}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			// Chroma's l2 space reports squared distances.
			hit.Distance = math.Sqrt(float64(distanceGroups[0][i]))
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (c *ChromaIndex) Len() int { return c.count }

// Drop deletes every record of this index's scope.
func (c *ChromaIndex) Drop(ctx context.Context) error {
	where := chromago.EqString(chromaScopeKey, c.scope)
	if err := c.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("chroma drop scope %s: %w", c.scope, err)
	}
	c.count = 0
	return nil
}

// chromaPosition reads the position attribute. DocumentMetadata has no generic
// accessor, so it is round-tripped through JSON.
func chromaPosition(meta chromago.DocumentMetadata) (int, bool) {
	if meta == nil {
		return 0, false
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		return 0, false
	}
	var metaMap map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &metaMap); err != nil {
		return 0, false
	}
	pos, ok := metaMap[chromaPositionKey].(float64)
	if !ok {
		return 0, false
	}
	return int(pos), true
}

// OpenChromaCollection gets or creates the collection backing ChromaIndex.
func OpenChromaCollection(ctx context.Context, client chromago.Client, name string) (chromago.Collection, error) {
	log.Printf("INDEX: Getting or creating chroma collection '%s'...", name)
	collection, err := client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "RAG evaluation chunk vectors"),
				chromago.NewStringAttribute("created_by", "rag_eval"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	if err := purgeStaleScopes(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

type chromaDeleter interface {
	Delete(ctx context.Context, opts ...chromago.CollectionDeleteOption) error
}

// purgeStaleScopes deletes index records left by earlier runs. The document
// store starts empty on every start, so a collection is owned by one process
// and no scope outlives it. Records without a scope attribute are kept.
func purgeStaleScopes(ctx context.Context, collection chromaDeleter) error {
	where := chromago.NotEqString(chromaScopeKey, "")
	if err := collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("%w: purge stale chroma scopes: %v", ErrIndexUnavailable, err)
	}
	log.Println("INDEX: Dropped index records left by earlier runs.")
	return nil
}
