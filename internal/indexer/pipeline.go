package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/convert"
	"regdocs-rag/internal/corpus"
	"regdocs-rag/internal/document"
	"regdocs-rag/internal/storage"
	"regdocs-rag/internal/vectorstore"
)

const defaultConcurrency = 2

// Embedder embeds chunk texts, one vector per text, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the writable side of a collection handle.
type Index interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Recreate(ctx context.Context) error
}

// Pipeline ingests corpus files: read, convert to markdown, segment, chunk,
// embed, and write vectors plus catalog rows.
type Pipeline struct {
	scanner     *corpus.Scanner
	converter   convert.Converter
	segmenter   *document.Segmenter
	chunker     *Chunker
	chunkCfg    ChunkerConfig
	embedder    Embedder
	index       Index
	docRepo     storage.DocumentStore
	chunkRepo   storage.ChunkStore
	concurrency int
	model       string
	progress    func(FileResult)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChunkerConfig sets chunk sizes.
func WithChunkerConfig(cfg ChunkerConfig) Option {
	return func(p *Pipeline) {
		p.chunkCfg = cfg
	}
}

// WithConcurrency sets how many documents are ingested at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithEmbeddingModel records the embedding model name in coverage stats.
func WithEmbeddingModel(name string) Option {
	return func(p *Pipeline) {
		p.model = name
	}
}

// WithProgress registers a callback invoked after each file. It may be
// called from several goroutines at once.
func WithProgress(fn func(FileResult)) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	scanner *corpus.Scanner,
	converter convert.Converter,
	embedder Embedder,
	index Index,
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		scanner:     scanner,
		converter:   converter,
		segmenter:   document.NewSegmenter(),
		chunkCfg:    DefaultChunkerConfig(),
		embedder:    embedder,
		index:       index,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.chunker = NewChunker(p.chunkCfg)
	return p
}

// IngestAll scans the corpus and ingests every matching file. A failing
// file is recorded in the report and does not stop the others. The
// returned error is only set when the corpus cannot be scanned or ctx ends.
func (p *Pipeline) IngestAll(ctx context.Context, force bool) (*Report, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := p.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}

	logger.InfoContext(ctx, "starting ingestion", "total_files", len(files), "force", force, "concurrency", p.concurrency)

	report := &Report{Files: len(files)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := p.IngestFile(ctx, file, force)
			mu.Lock()
			report.Add(res, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	report.sortErrors()

	logger.InfoContext(ctx, "ingestion completed",
		"total_files", report.Files,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"chunks", report.Chunks,
		"errors", len(report.Errors),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Files lists the corpus files an IngestAll run would process.
func (p *Pipeline) Files(ctx context.Context) ([]corpus.File, error) {
	return p.scanner.Scan(ctx)
}

// IngestPath ingests a single file inside the corpus.
func (p *Pipeline) IngestPath(ctx context.Context, path string, force bool) (FileResult, error) {
	file, err := p.scanner.FileAt(path)
	if err != nil {
		return FileResult{Source: path}, &IngestionError{Source: path, Stage: StageRead, Err: err}
	}
	return p.IngestFile(ctx, file, force)
}

// Rebuild drops and recreates the collection, clears the catalog and
// ingests the whole corpus again.
func (p *Pipeline) Rebuild(ctx context.Context) (*Report, error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "rebuilding index")

	if err := p.index.Recreate(ctx); err != nil {
		return nil, fmt.Errorf("failed to recreate collection: %w", err)
	}
	if err := p.docRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear catalog: %w", err)
	}
	return p.IngestAll(ctx, true)
}

// IngestFile ingests one file. Unchanged files (same content hash as the
// catalog) are skipped unless force is set. Any failure is returned as an
// *IngestionError naming the stage.
func (p *Pipeline) IngestFile(ctx context.Context, file corpus.File, force bool) (res FileResult, err error) {
	res = FileResult{Source: file.RelPath}
	defer func() {
		res.Err = err
		if p.progress != nil {
			p.progress(res)
		}
	}()

	fail := func(stage string, err error) error {
		return &IngestionError{Source: file.RelPath, Stage: stage, Err: err}
	}

	logger := contextutil.LoggerFromContext(ctx).With("source", file.RelPath)

	raw, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return res, fail(StageRead, err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(raw))

	existing, err := p.docRepo.GetBySource(ctx, file.RelPath)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return res, fail(StageRead, fmt.Errorf("failed to check existing document: %w", err))
	}
	if !force && existing != nil && existing.Hash == hash {
		logger.DebugContext(ctx, "skipping unchanged document", "hash", hash)
		res.Skipped = true
		res.Chunks = existing.ChunkCount
		return res, nil
	}

	markdown, err := p.converter.Convert(ctx, file.AbsPath)
	if err != nil {
		return res, fail(StageConvert, err)
	}

	doc, err := p.segmenter.Segment(file.RelPath, file.Title, []byte(markdown))
	if err != nil {
		return res, fail(StageSegment, err)
	}

	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return res, fail(StageChunk, fmt.Errorf("document produced no chunks"))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return res, fail(StageEmbed, err)
	}
	if len(vectors) != len(chunks) {
		return res, fail(StageEmbed, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors)))
	}

	points := make([]vectorstore.Point, len(chunks))
	records := make([]*storage.ChunkRecord, len(chunks))
	newIDs := make(map[string]bool, len(chunks))
	oversized := 0
	for i, c := range chunks {
		newIDs[c.ID] = true
		if c.Oversized {
			oversized++
		}
		points[i] = vectorstore.Point{
			ID:  c.ID,
			Vec: vectors[i],
			Meta: map[string]any{
				vectorstore.FieldChunkID:     c.ID,
				vectorstore.FieldDocumentID:  doc.ID,
				vectorstore.FieldTitle:       doc.Title,
				vectorstore.FieldSource:      doc.Source,
				vectorstore.FieldSectionPath: c.SectionPath,
				vectorstore.FieldPosition:    c.Position,
				vectorstore.FieldText:        strings.TrimSpace(c.Text),
			},
		}
		records[i] = &storage.ChunkRecord{
			ID:            c.ID,
			DocumentID:    doc.ID,
			Position:      c.Position,
			SectionPath:   c.SectionPath,
			Text:          c.Text,
			TokenEstimate: document.EstimateTokens(c.Text),
		}
	}

	if err := p.index.Upsert(ctx, points); err != nil {
		return res, fail(StageIndex, err)
	}

	// Positions past the new end belong to an earlier, longer version
	oldIDs, err := p.chunkRepo.ListIDsByDocument(ctx, doc.ID)
	if err != nil {
		return res, fail(StageIndex, err)
	}
	var stale []string
	for _, id := range oldIDs {
		if !newIDs[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := p.index.Delete(ctx, stale); err != nil {
			return res, fail(StageIndex, fmt.Errorf("failed to delete stale chunks: %w", err))
		}
	}

	record := &storage.DocumentRecord{
		ID:         doc.ID,
		Title:      doc.Title,
		SourcePath: doc.Source,
		Hash:       hash,
	}
	if err := p.docRepo.Save(ctx, record, records); err != nil {
		return res, fail(StageIndex, err)
	}

	res.Indexed = true
	res.Chunks = len(chunks)
	logger.InfoContext(ctx, "indexed document",
		"title", doc.Title,
		"chunks", len(chunks),
		"oversized", oversized,
		"stale_removed", len(stale),
	)
	return res, nil
}
