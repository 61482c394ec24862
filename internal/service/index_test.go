package service_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"regdocs-rag/internal/indexer"
	"regdocs-rag/internal/service"
	"regdocs-rag/internal/service/mocks"
)

func TestIndexService_Start(t *testing.T) {
	tests := []struct {
		name      string
		rebuild   bool
		mockSetup func(ix *mocks.MockIndexer)
		wantErr   bool
		want      *indexer.Report
	}{
		{
			name: "incremental run",
			mockSetup: func(ix *mocks.MockIndexer) {
				ix.EXPECT().IngestAll(gomock.Any(), false).Return(&indexer.Report{Files: 2, Indexed: 1, Skipped: 1}, nil)
			},
			want: &indexer.Report{Files: 2, Indexed: 1, Skipped: 1},
		},
		{
			name:    "rebuild",
			rebuild: true,
			mockSetup: func(ix *mocks.MockIndexer) {
				ix.EXPECT().Rebuild(gomock.Any()).Return(&indexer.Report{Files: 2, Indexed: 2}, nil)
			},
			want: &indexer.Report{Files: 2, Indexed: 2},
		},
		{
			name: "scan failure",
			mockSetup: func(ix *mocks.MockIndexer) {
				ix.EXPECT().IngestAll(gomock.Any(), false).Return(nil, errors.New("corpus dir missing"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ix := mocks.NewMockIndexer(ctrl)
			tt.mockSetup(ix)

			svc := service.NewIndexService(context.Background(), ix)
			if err := svc.Start(tt.rebuild); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			svc.Wait()

			status := svc.Status()
			if status.Running {
				t.Error("status still running after Wait()")
			}
			if status.Rebuild != tt.rebuild {
				t.Errorf("Rebuild = %v, want %v", status.Rebuild, tt.rebuild)
			}
			if status.StartedAt.IsZero() || status.FinishedAt.Before(status.StartedAt) {
				t.Errorf("bad timestamps: %+v", status)
			}
			if (status.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", status.Err, tt.wantErr)
			}
			if tt.want != nil && (status.Report == nil || status.Report.Files != tt.want.Files ||
				status.Report.Indexed != tt.want.Indexed || status.Report.Skipped != tt.want.Skipped) {
				t.Errorf("Report = %+v, want %+v", status.Report, tt.want)
			}
		})
	}
}

func TestIndexService_StartWhileRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	ix := mocks.NewMockIndexer(ctrl)

	release := make(chan struct{})
	ix.EXPECT().IngestAll(gomock.Any(), false).DoAndReturn(func(context.Context, bool) (*indexer.Report, error) {
		<-release
		return &indexer.Report{}, nil
	})

	svc := service.NewIndexService(context.Background(), ix)
	if err := svc.Start(false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !svc.Status().Running {
		t.Error("status should be running")
	}
	if err := svc.Start(true); !errors.Is(err, service.ErrIndexRunning) {
		t.Errorf("second Start() error = %v, want ErrIndexRunning", err)
	}

	close(release)
	svc.Wait()
	if svc.Status().Running {
		t.Error("status still running after Wait()")
	}
}

func TestIndexService_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	ix := mocks.NewMockIndexer(ctrl)
	svc := service.NewIndexService(context.Background(), ix)

	ix.EXPECT().GetIndexingCoverageStats(gomock.Any()).Return(&indexer.IndexingCoverageStats{DocsProcessed: 3}, nil)
	stats, err := svc.Stats(context.Background())
	if err != nil || stats.DocsProcessed != 3 {
		t.Errorf("Stats() = %+v, %v", stats, err)
	}

	ix.EXPECT().GetIndexingCoverageStats(gomock.Any()).Return(nil, errors.New("database is locked"))
	if _, err := svc.Stats(context.Background()); err == nil {
		t.Error("Stats() should return error")
	}
}
