package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"go.etcd.io/bbolt"

	"regdocs-rag/internal/contextutil"
)

var bucketVectors = []byte("vectors")

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache is a persistent embedding cache in front of an Embedder. Entries are
// keyed by model and text, so vectors of unchanged chunks are reused when a
// document is ingested again.
type Cache struct {
	db    *bbolt.DB
	next  Embedder
	model string
	dim   int
}

// Open opens (or creates) the cache file at path.
func Open(path string, next Embedder, model string, dim int) (*Cache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketVectors, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Cache{db: db, next: next, model: model, dim: dim}, nil
}

// Close closes the cache file.
func (c *Cache) Close() error {
	return c.db.Close()
}

// EmbedTexts returns cached vectors and forwards the misses to the wrapped
// embedder in a single call.
func (c *Cache) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	keys := make([][]byte, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, k := range keys {
			if v := b.Get(k); v != nil {
				result[i] = decode(v, c.dim)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding cache: %w", err)
	}

	// Identical texts are embedded once
	var missTexts []string
	missIndex := make(map[string]int)
	for i, text := range texts {
		if result[i] != nil {
			continue
		}
		if _, ok := missIndex[text]; !ok {
			missIndex[text] = len(missTexts)
			missTexts = append(missTexts, text)
		}
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "embedding cache lookup",
		"texts", len(texts), "misses", len(missTexts))

	if len(missTexts) == 0 {
		return result, nil
	}

	vecs, err := c.next.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(vecs))
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, text := range missTexts {
			if err := b.Put(c.key(text), encode(vecs[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write embedding cache: %w", err)
	}

	for i, text := range texts {
		if result[i] == nil {
			result[i] = vecs[missIndex[text]]
		}
	}
	return result, nil
}

// Len returns the number of cached vectors.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketVectors).Stats().KeyN
		return nil
	})
	return n, err
}

func (c *Cache) key(text string) []byte {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum(nil)
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decode returns nil for entries of the wrong size, which then count as misses.
func decode(data []byte, dim int) []float32 {
	if len(data) != 4*dim {
		return nil
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec
}
