package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks regdocs-rag/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// DocumentStore defines the interface for document catalog operations.
type DocumentStore interface {
	// GetBySource gets a document by its corpus-relative path.
	// Returns nil and ErrNotFound if not found.
	GetBySource(ctx context.Context, sourcePath string) (*DocumentRecord, error)
	// Save upserts the document and replaces its chunks in one transaction.
	Save(ctx context.Context, doc *DocumentRecord, chunks []*ChunkRecord) error
	// List returns all documents ordered by source path.
	List(ctx context.Context) ([]*DocumentRecord, error)
	// Count returns the number of documents and how many of them have no chunks.
	Count(ctx context.Context) (total, withoutChunks int, err error)
	// DeleteAll removes every document and chunk.
	DeleteAll(ctx context.Context) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// GetBySource gets a document by its corpus-relative path.
// Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) GetBySource(ctx context.Context, sourcePath string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, title, source_path, hash, chunk_count, updated_at FROM documents WHERE source_path = ?",
		sourcePath,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

// Save upserts the document and replaces its chunks in one transaction, so
// the stored hash never describes chunks that were not written.
func (r *DocumentRepo) Save(ctx context.Context, doc *DocumentRecord, chunks []*ChunkRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	doc.ChunkCount = len(chunks)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, source_path, hash, chunk_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET
		 title = excluded.title, source_path = excluded.source_path, hash = excluded.hash,
		 chunk_count = excluded.chunk_count, updated_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.Title, doc.SourcePath, doc.Hash, doc.ChunkCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (id, document_id, position, section_path, text, token_estimate) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, chunk := range chunks {
		path, err := json.Marshal(chunk.SectionPath)
		if err != nil {
			return fmt.Errorf("failed to encode section path: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, doc.ID, chunk.Position, string(path), chunk.Text, chunk.TokenEstimate); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// List returns all documents ordered by source path.
func (r *DocumentRepo) List(ctx context.Context) ([]*DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, source_path, hash, chunk_count, updated_at FROM documents ORDER BY source_path")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []*DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// Count returns the number of documents and how many of them have no chunks.
func (r *DocumentRepo) Count(ctx context.Context) (total, withoutChunks int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE id NOT IN (SELECT DISTINCT document_id FROM chunks))
		 FROM documents`).Scan(&total, &withoutChunks)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return total, withoutChunks, nil
}

// DeleteAll removes every document; chunks go with them.
func (r *DocumentRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*DocumentRecord, error) {
	var doc DocumentRecord
	var updatedAtStr string

	if err := row.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &doc.Hash, &doc.ChunkCount, &updatedAtStr); err != nil {
		return nil, err
	}

	// Parse updated_at DATETIME string
	var err error
	doc.UpdatedAt, err = time.Parse("2006-01-02 15:04:05", updatedAtStr)
	if err != nil {
		// Try alternative format (SQLite might use different format)
		doc.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
		}
	}

	return &doc, nil
}
