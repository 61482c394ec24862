package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is matched by DimensionError.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// DimensionError reports a vector size that does not match the collection.
type DimensionError struct {
	Collection string
	Expected   int
	Actual     int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("collection %s: vector size mismatch: expected %d, got %d", e.Collection, e.Expected, e.Actual)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// Collection is a handle on one named collection with a fixed vector size.
// It is what ingestion and retrieval are given instead of a store and a name.
type Collection struct {
	store VectorStore
	name  string
	dim   int
}

// NewCollection returns a handle without touching the store.
func NewCollection(store VectorStore, name string, dim int) *Collection {
	return &Collection{store: store, name: name, dim: dim}
}

// Open ensures the collection exists with vector size dim. An existing
// collection of another size is an error.
func Open(ctx context.Context, store VectorStore, name string, dim int) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector size must be greater than 0")
	}
	c := NewCollection(store, name, dim)
	if err := c.Ensure(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Dimension() int { return c.dim }

// Ensure creates the collection if it is missing.
func (c *Collection) Ensure(ctx context.Context) error {
	if err := c.store.EnsureCollection(ctx, c.name, c.dim); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", c.name, err)
	}
	return nil
}

// Upsert rejects points whose vectors do not have the collection's size.
func (c *Collection) Upsert(ctx context.Context, points []Point) error {
	for _, p := range points {
		if len(p.Vec) != c.dim {
			return &DimensionError{Collection: c.name, Expected: c.dim, Actual: len(p.Vec)}
		}
	}
	return c.store.Upsert(ctx, c.name, points)
}

func (c *Collection) Search(ctx context.Context, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if len(query) != c.dim {
		return nil, &DimensionError{Collection: c.name, Expected: c.dim, Actual: len(query)}
	}
	return c.store.Search(ctx, c.name, query, k, filters)
}

func (c *Collection) Delete(ctx context.Context, ids []string) error {
	return c.store.Delete(ctx, c.name, ids)
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx, c.name)
}

// Exists reports whether the collection is present in the store.
func (c *Collection) Exists(ctx context.Context) (bool, error) {
	return c.store.CollectionExists(ctx, c.name)
}

// Recreate drops the collection and creates it empty.
func (c *Collection) Recreate(ctx context.Context) error {
	exists, err := c.store.CollectionExists(ctx, c.name)
	if err != nil {
		return err
	}
	if exists {
		if err := c.store.DropCollection(ctx, c.name); err != nil {
			return err
		}
	}
	return c.Ensure(ctx)
}
