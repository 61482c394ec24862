package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks regdocs-rag/internal/vectorstore VectorStore

import "context"

// Payload keys stored with every point.
const (
	FieldChunkID     = "chunk_id"
	FieldDocumentID  = "document_id"
	FieldTitle       = "title"
	FieldSource      = "source"
	FieldSectionPath = "section_path"
	FieldPosition    = "position"
	FieldText        = "text"
)

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
// Distance is a cosine distance: lower is closer.
type SearchResult struct {
	PointID  string
	Distance float32
	Meta     map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection. Re-upserting an ID
	// replaces the prior point.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k nearest points in ascending distance order.
	// Filters match payload fields exactly.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	CollectionExists(ctx context.Context, collection string) (bool, error)

	// EnsureCollection creates the collection if missing and fails when an
	// existing collection has a different vector size.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	DropCollection(ctx context.Context, collection string) error

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)
}
