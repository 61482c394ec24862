package storage

import "time"

// DocumentRecord is an ingested source document in the catalog.
type DocumentRecord struct {
	ID         string // UUID derived from the source path
	Title      string
	SourcePath string // Relative path from corpus root
	Hash       string // SHA256 hex string of file content
	ChunkCount int
	UpdatedAt  time.Time
}

// ChunkRecord is a chunk of a document, stored under the same ID as its vector point.
type ChunkRecord struct {
	ID            string
	DocumentID    string
	Position      int      // Index within document (starts at 0)
	SectionPath   []string // Heading texts, outermost first
	Text          string
	TokenEstimate int
}
