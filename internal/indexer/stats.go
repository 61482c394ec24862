package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// ChunkerVersion is the version identifier for the chunker implementation.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "v2.0"

// IndexingCoverageStats contains statistics about the indexed corpus.
type IndexingCoverageStats struct {
	// DocsProcessed is the number of documents in the catalog.
	DocsProcessed int `json:"docs_processed"`
	// DocsWith0Chunks is the number of documents that produced 0 chunks.
	DocsWith0Chunks int `json:"docs_with_0_chunks"`
	// ChunksEmbedded is the number of chunks recorded in the catalog.
	ChunksEmbedded int `json:"chunks_embedded"`
	// VectorsStored is the number of points in the collection.
	VectorsStored int `json:"vectors_stored"`
	// ChunksOversized counts chunks above the target size (whole tables or sentences).
	ChunksOversized int `json:"chunks_oversized"`
	// ChunkTokenStats contains statistics about token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// GetIndexingCoverageStats computes coverage statistics from the catalog
// and the collection.
func (p *Pipeline) GetIndexingCoverageStats(ctx context.Context) (*IndexingCoverageStats, error) {
	total, without, err := p.docRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	tokenCounts, err := p.chunkRepo.TokenEstimates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk token estimates: %w", err)
	}

	vectors, err := p.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}

	stats := &IndexingCoverageStats{
		DocsProcessed:   total,
		DocsWith0Chunks: without,
		ChunksEmbedded:  len(tokenCounts),
		VectorsStored:   vectors,
		ChunkTokenStats: computeTokenStats(tokenCounts),
		ChunkerVersion:  ChunkerVersion,
		IndexVersion:    IndexVersion(p.model, ChunkerConfig{TargetTokens: p.chunker.target, OverlapChars: p.chunker.overlap}),
	}
	for _, n := range tokenCounts {
		if n > p.chunker.target {
			stats.ChunksOversized++
		}
	}
	return stats, nil
}

// IndexVersion identifies an index build by chunker version, embedding model
// and chunk sizes. A change means the collection should be rebuilt.
func IndexVersion(embeddingModel string, cfg ChunkerConfig) string {
	input := fmt.Sprintf("%s|%s|targetTokens=%d|overlapChars=%d",
		ChunkerVersion, embeddingModel, cfg.TargetTokens, cfg.OverlapChars)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
