package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T, dim int) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureCollection(context.Background(), "docs", dim))
	return s
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2}, []float32{2, 4}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineDistance(tt.a, tt.b), 1e-6)
		})
	}
}

func TestMemoryStore_SearchOrdering(t *testing.T) {
	s := newMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "docs", []Point{
		{ID: "far", Vec: []float32{0, 1}},
		{ID: "tie-a", Vec: []float32{1, 1}},
		{ID: "near", Vec: []float32{1, 0}},
		{ID: "tie-b", Vec: []float32{2, 2}},
	}))

	results, err := s.Search(ctx, "docs", []float32{1, 0}, 10, nil)
	require.NoError(t, err)

	var ids []string
	for i, r := range results {
		ids = append(ids, r.PointID)
		if i > 0 {
			assert.GreaterOrEqual(t, r.Distance, results[i-1].Distance)
		}
	}
	assert.Equal(t, []string{"near", "tie-a", "tie-b", "far"}, ids, "ties keep insertion order")

	top, err := s.Search(ctx, "docs", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	s := newMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "docs", []Point{
		{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{FieldText: "old"}},
		{ID: "b", Vec: []float32{0, 1}},
	}))
	require.NoError(t, s.Upsert(ctx, "docs", []Point{
		{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{FieldText: "new"}},
	}))

	n, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := s.Search(ctx, "docs", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Meta[FieldText])
}

func TestMemoryStore_Filters(t *testing.T) {
	s := newMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "docs", []Point{
		{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{FieldSource: "a.pdf", FieldPosition: 0}},
		{ID: "b", Vec: []float32{1, 0}, Meta: map[string]any{FieldSource: "b.pdf", FieldPosition: 0}},
		{ID: "c", Vec: []float32{1, 0}, Meta: map[string]any{FieldSource: "b.pdf", FieldPosition: 1}},
	}))

	results, err := s.Search(ctx, "docs", []float32{1, 0}, 10, map[string]any{FieldSource: "b.pdf"})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Search(ctx, "docs", []float32{1, 0}, 10, map[string]any{FieldSource: "b.pdf", FieldPosition: int64(1)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].PointID)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := newMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "docs", []Point{
		{ID: "a", Vec: []float32{1, 0}},
		{ID: "b", Vec: []float32{1, 0}},
		{ID: "c", Vec: []float32{1, 0}},
	}))
	require.NoError(t, s.Delete(ctx, "docs", []string{"b", "missing"}))

	results, err := s.Search(ctx, "docs", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].PointID)
	assert.Equal(t, "c", results[1].PointID)
}

func TestMemoryStore_Collections(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	exists, err := s.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Search(ctx, "docs", []float32{1}, 1, nil)
	assert.Error(t, err)

	require.NoError(t, s.EnsureCollection(ctx, "docs", 3))
	require.NoError(t, s.EnsureCollection(ctx, "docs", 3))

	err = s.EnsureCollection(ctx, "docs", 4)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	err = s.Upsert(ctx, "docs", []Point{{ID: "x", Vec: []float32{1, 2}}})
	assert.Error(t, err)

	require.NoError(t, s.DropCollection(ctx, "docs"))
	exists, err = s.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStore_ConcurrentUpserts(t *testing.T) {
	s := newMemory(t, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				angle := float64(w*25 + i)
				p := Point{
					ID:  fmt.Sprintf("p-%d-%d", w, i),
					Vec: []float32{float32(math.Cos(angle)), float32(math.Sin(angle))},
				}
				assert.NoError(t, s.Upsert(ctx, "docs", []Point{p}))
			}
		}(w)
	}
	wg.Wait()

	n, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 200, n)
}
