package vectorstore

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using cosine distance. Points keep
// their first insertion order, which is also the order of equal-distance
// search results.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	size   int
	order  []string
	points map[string]Point
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) collection(name string) (*memoryCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}
	return c, nil
}

// Upsert inserts or replaces points.
func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vec) != c.size {
			return fmt.Errorf("point %s has %d dimensions, collection expects %d", p.ID, len(p.Vec), c.size)
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = Point{
			ID:   p.ID,
			Vec:  append([]float32(nil), p.Vec...),
			Meta: copyMeta(p.Meta),
		}
	}
	return nil
}

// Search scans every point.
func (s *MemoryStore) Search(_ context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(query) != c.size {
		return nil, fmt.Errorf("query has %d dimensions, collection expects %d", len(query), c.size)
	}

	results := make([]SearchResult, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		if !matches(p.Meta, filters) {
			continue
		}
		results = append(results, SearchResult{
			PointID:  id,
			Distance: CosineDistance(query, p.Vec),
			Meta:     copyMeta(p.Meta),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete removes points. Unknown IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.points[id]; ok {
			remove[id] = true
			delete(c.points, id)
		}
	}
	if len(remove) == 0 {
		return nil
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	c.order = kept
	return nil
}

func (s *MemoryStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be greater than 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		if c.size != vectorSize {
			return &DimensionError{Collection: collection, Expected: vectorSize, Actual: c.size}
		}
		return nil
	}
	s.collections[collection] = &memoryCollection{size: vectorSize, points: make(map[string]Point)}
	return nil
}

func (s *MemoryStore) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return len(c.points), nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from
// everything.
func CosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

func matches(meta, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := meta[k]
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

// equalValue compares payload values, treating all integer types alike.
func equalValue(a, b any) bool {
	if ai, ok := asInt(a); ok {
		bi, ok := asInt(b)
		return ok && ai == bi
	}
	return reflect.DeepEqual(a, b)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
