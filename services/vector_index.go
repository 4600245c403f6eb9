package services

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Neighbor is one search hit: the position of the vector in insertion order
// and its Euclidean distance to the query.
type Neighbor struct {
	Position int
	Distance float64
}

// VectorIndex is a nearest-neighbour structure over fixed-dimension vectors.
// Positions are assigned in insertion order starting at zero. There is no
// delete: callers rebuild a fresh index over the surviving vectors.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Len() int
}

// IndexFactory builds an empty index for vectors of the given dimension.
type IndexFactory func(ctx context.Context, dimension int) (VectorIndex, error)

// FlatIndex is an exact L2 index that scans every vector on search.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{dimension: dimension}
}

// FlatIndexFactory is the IndexFactory for FlatIndex.
func FlatIndexFactory(_ context.Context, dimension int) (VectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrIndexUnavailable, dimension)
	}
	return NewFlatIndex(dimension), nil
}

// Add appends all vectors or none of them.
func (f *FlatIndex) Add(_ context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d", ErrIndexUnavailable, i, len(v), f.dimension)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d", ErrIndexUnavailable, len(query), f.dimension)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	hits := make([]Neighbor, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Neighbor{Position: i, Distance: euclidean(v, query)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (f *FlatIndex) Len() int { return len(f.vectors) }

func euclidean(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
