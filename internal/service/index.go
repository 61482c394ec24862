package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index_service.go -package=mocks regdocs-rag/internal/service IndexService,Indexer

import (
	"context"
	"sync"
	"time"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/indexer"
)

// Indexer is the ingestion pipeline as seen by the service layer.
type Indexer interface {
	IngestAll(ctx context.Context, force bool) (*indexer.Report, error)
	Rebuild(ctx context.Context) (*indexer.Report, error)
	GetIndexingCoverageStats(ctx context.Context) (*indexer.IndexingCoverageStats, error)
}

// IndexStatus describes the current or most recent indexing run.
type IndexStatus struct {
	Running    bool
	Rebuild    bool
	StartedAt  time.Time
	FinishedAt time.Time
	// Report is nil until a run has finished.
	Report *indexer.Report
	// Err is the error that aborted the last run, if any. Per-document
	// failures are in Report.Errors instead.
	Err error
}

// IndexService runs ingestion in the background, one run at a time.
type IndexService interface {
	// Start begins an ingestion run and returns immediately. A rebuild
	// drops the collection and re-ingests everything. It returns
	// ErrIndexRunning when a run is already in progress.
	Start(rebuild bool) error
	// Status returns the state of the current or last run.
	Status() IndexStatus
	// Wait blocks until no run is in progress.
	Wait()
	// Stats returns coverage statistics for the index.
	Stats(ctx context.Context) (*indexer.IndexingCoverageStats, error)
}

// indexService implements IndexService.
type indexService struct {
	indexer Indexer
	baseCtx context.Context

	mu     sync.Mutex
	status IndexStatus
	wg     sync.WaitGroup
}

// NewIndexService creates a new IndexService. Background runs use baseCtx,
// so cancelling it stops a run in progress.
func NewIndexService(baseCtx context.Context, ix Indexer) IndexService {
	return &indexService{
		indexer: ix,
		baseCtx: baseCtx,
	}
}

func (s *indexService) Start(rebuild bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		return ErrIndexRunning
	}
	s.status = IndexStatus{Running: true, Rebuild: rebuild, StartedAt: time.Now().UTC()}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(rebuild)
	}()
	return nil
}

func (s *indexService) run(rebuild bool) {
	ctx := s.baseCtx
	logger := contextutil.LoggerFromContext(ctx)

	var (
		report *indexer.Report
		err    error
	)
	if rebuild {
		report, err = s.indexer.Rebuild(ctx)
	} else {
		report, err = s.indexer.IngestAll(ctx, false)
	}

	switch {
	case err != nil:
		logger.ErrorContext(ctx, "indexing run failed", "rebuild", rebuild, "error", err)
	case report.Failed() > 0:
		logger.WarnContext(ctx, "indexing completed with errors", "indexed", report.Indexed, "failed", report.Failed())
	default:
		logger.InfoContext(ctx, "indexing completed successfully", "indexed", report.Indexed, "skipped", report.Skipped)
	}

	s.mu.Lock()
	s.status.Running = false
	s.status.FinishedAt = time.Now().UTC()
	s.status.Report = report
	s.status.Err = err
	s.mu.Unlock()
}

func (s *indexService) Status() IndexStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *indexService) Wait() {
	s.wg.Wait()
}

func (s *indexService) Stats(ctx context.Context) (*indexer.IndexingCoverageStats, error) {
	stats, err := s.indexer.GetIndexingCoverageStats(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to get coverage stats")
	}
	return stats, nil
}
