package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks regdocs-rag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ChunkStore defines the interface for chunk read operations.
// Chunks are written together with their document through DocumentStore.Save.
type ChunkStore interface {
	// ListIDsByDocument returns all chunk IDs for a document, ordered by position.
	ListIDsByDocument(ctx context.Context, documentID string) ([]string, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// TokenEstimates returns the token estimate of every stored chunk.
	TokenEstimates(ctx context.Context) ([]int, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ListIDsByDocument returns all chunk IDs for a document, ordered by position.
// Returns an empty slice if no chunks exist (not an error).
// Used to find vector points left over from a previous, longer version.
func (r *ChunkRepo) ListIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE document_id = ? ORDER BY position",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	var path string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, document_id, position, section_path, text, token_estimate FROM chunks WHERE id = ?",
		id,
	).Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &path, &chunk.Text, &chunk.TokenEstimate)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	if err := json.Unmarshal([]byte(path), &chunk.SectionPath); err != nil {
		return nil, fmt.Errorf("failed to decode section path: %w", err)
	}

	return &chunk, nil
}

// TokenEstimates returns the token estimate of every stored chunk.
func (r *ChunkRepo) TokenEstimates(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT token_estimate FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var counts []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan token estimate: %w", err)
		}
		counts = append(counts, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}
