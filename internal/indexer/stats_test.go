package indexer

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	storage_mocks "regdocs-rag/internal/storage/mocks"
)

func TestGetIndexingCoverageStats(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"iso/14971.md": riskDoc,
		"labels.md":    labelDoc,
	}, WithEmbeddingModel("test-embedding-model"))
	ctx := context.Background()

	// Empty catalog
	stats, err := env.pipeline.GetIndexingCoverageStats(ctx)
	if err != nil {
		t.Fatalf("GetIndexingCoverageStats() error = %v", err)
	}
	if stats.DocsProcessed != 0 || stats.ChunksEmbedded != 0 || stats.VectorsStored != 0 {
		t.Errorf("stats on empty index = %+v", stats)
	}
	if stats.ChunkerVersion != ChunkerVersion {
		t.Errorf("ChunkerVersion = %s, want %s", stats.ChunkerVersion, ChunkerVersion)
	}
	if stats.IndexVersion != IndexVersion("test-embedding-model", DefaultChunkerConfig()) {
		t.Errorf("IndexVersion = %s does not match the pipeline settings", stats.IndexVersion)
	}

	report, err := env.pipeline.IngestAll(ctx, false)
	if err != nil {
		t.Fatalf("IngestAll() error = %v", err)
	}

	stats, err = env.pipeline.GetIndexingCoverageStats(ctx)
	if err != nil {
		t.Fatalf("GetIndexingCoverageStats() error = %v", err)
	}
	if stats.DocsProcessed != 2 {
		t.Errorf("DocsProcessed = %d, want 2", stats.DocsProcessed)
	}
	if stats.DocsWith0Chunks != 0 {
		t.Errorf("DocsWith0Chunks = %d, want 0", stats.DocsWith0Chunks)
	}
	if stats.ChunksEmbedded != report.Chunks {
		t.Errorf("ChunksEmbedded = %d, want %d", stats.ChunksEmbedded, report.Chunks)
	}
	if stats.VectorsStored != stats.ChunksEmbedded {
		t.Errorf("VectorsStored = %d, ChunksEmbedded = %d", stats.VectorsStored, stats.ChunksEmbedded)
	}
	if stats.ChunksOversized != 0 {
		t.Errorf("ChunksOversized = %d, want 0", stats.ChunksOversized)
	}
	ts := stats.ChunkTokenStats
	if ts.Min < 1 || ts.Max < ts.Min || ts.P95 < ts.Min || ts.P95 > ts.Max {
		t.Errorf("ChunkTokenStats = %+v", ts)
	}
}

func TestGetIndexingCoverageStats_ErrorHandling(t *testing.T) {
	ctrl := gomock.NewController(t)
	docRepo := storage_mocks.NewMockDocumentStore(ctrl)
	chunkRepo := storage_mocks.NewMockChunkStore(ctrl)

	docRepo.EXPECT().Count(gomock.Any()).Return(0, 0, errors.New("database is locked"))

	p := NewPipeline(nil, nil, nil, nil, docRepo, chunkRepo)
	if _, err := p.GetIndexingCoverageStats(context.Background()); err == nil {
		t.Error("GetIndexingCoverageStats() should return error when the catalog fails")
	}
}

func TestIndexVersion(t *testing.T) {
	base := IndexVersion("model-a", ChunkerConfig{TargetTokens: 350, OverlapChars: 120})

	if len(base) != 16 {
		t.Errorf("IndexVersion length = %d, want 16", len(base))
	}
	if again := IndexVersion("model-a", ChunkerConfig{TargetTokens: 350, OverlapChars: 120}); again != base {
		t.Error("IndexVersion is not deterministic")
	}

	changed := []struct {
		name  string
		model string
		cfg   ChunkerConfig
	}{
		{"model", "model-b", ChunkerConfig{TargetTokens: 350, OverlapChars: 120}},
		{"target", "model-a", ChunkerConfig{TargetTokens: 300, OverlapChars: 120}},
		{"overlap", "model-a", ChunkerConfig{TargetTokens: 350, OverlapChars: 0}},
	}
	for _, tt := range changed {
		t.Run(tt.name, func(t *testing.T) {
			if IndexVersion(tt.model, tt.cfg) == base {
				t.Errorf("changing %s did not change IndexVersion", tt.name)
			}
		})
	}
}

func TestComputeTokenStats(t *testing.T) {
	tests := []struct {
		name        string
		tokenCounts []int
		want        ChunkTokenStats
	}{
		{
			name:        "empty",
			tokenCounts: []int{},
			want:        ChunkTokenStats{},
		},
		{
			name:        "single value",
			tokenCounts: []int{10},
			want:        ChunkTokenStats{Min: 10, Max: 10, Mean: 10.0, P95: 10},
		},
		{
			name:        "unsorted values",
			tokenCounts: []int{30, 5, 20, 10, 15},
			want:        ChunkTokenStats{Min: 5, Max: 30, Mean: 16.0, P95: 30},
		},
		{
			name:        "mean is rounded",
			tokenCounts: []int{1, 1, 2},
			want:        ChunkTokenStats{Min: 1, Max: 2, Mean: 1.33, P95: 2},
		},
		{
			name:        "many values for p95",
			tokenCounts: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			want:        ChunkTokenStats{Min: 1, Max: 20, Mean: 10.5, P95: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeTokenStats(tt.tokenCounts); got != tt.want {
				t.Errorf("computeTokenStats(%v) = %+v, want %+v", tt.tokenCounts, got, tt.want)
			}
		})
	}
}
