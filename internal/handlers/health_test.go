package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"regdocs-rag/internal/vectorstore"
	vs_mocks "regdocs-rag/internal/vectorstore/mocks"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		mockSetup  func(store *vs_mocks.MockVectorStore)
		wantStatus int
		wantState  string
		wantPoints int
	}{
		{
			name: "healthy",
			mockSetup: func(store *vs_mocks.MockVectorStore) {
				store.EXPECT().CollectionExists(gomock.Any(), "docs").Return(true, nil)
				store.EXPECT().Count(gomock.Any(), "docs").Return(42, nil)
			},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
			wantPoints: 42,
		},
		{
			name: "empty collection is degraded",
			mockSetup: func(store *vs_mocks.MockVectorStore) {
				store.EXPECT().CollectionExists(gomock.Any(), "docs").Return(true, nil)
				store.EXPECT().Count(gomock.Any(), "docs").Return(0, nil)
			},
			wantStatus: http.StatusOK,
			wantState:  "degraded",
		},
		{
			name: "missing collection",
			mockSetup: func(store *vs_mocks.MockVectorStore) {
				store.EXPECT().CollectionExists(gomock.Any(), "docs").Return(false, nil)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
		},
		{
			name: "vector store down",
			mockSetup: func(store *vs_mocks.MockVectorStore) {
				store.EXPECT().CollectionExists(gomock.Any(), "docs").Return(false, errors.New("connection refused"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := vs_mocks.NewMockVectorStore(ctrl)
			tt.mockSetup(store)

			handler := NewHealthHandler(vectorstore.NewCollection(store, "docs", 4))
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantState)
			}
			if tt.wantPoints > 0 && (resp.Points == nil || *resp.Points != tt.wantPoints) {
				t.Errorf("Points = %v, want %d", resp.Points, tt.wantPoints)
			}
		})
	}
}

func TestInfoHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewInfoHandler("1.2.3", "iso_documents").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var info ServiceInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if info.Version != "1.2.3" || info.Collection != "iso_documents" || info.Endpoints["ask"] == "" {
		t.Errorf("info = %+v", info)
	}
}
