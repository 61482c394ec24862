package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewEmbeddingsClient(t *testing.T) {
	client := NewEmbeddingsClient("http://localhost:8080", "test-key", "test-model", 768)
	if client == nil {
		t.Fatal("NewEmbeddingsClient() returned nil")
	}
	if client.BaseURL != "http://localhost:8080" {
		t.Errorf("NewEmbeddingsClient() BaseURL = %v, want http://localhost:8080", client.BaseURL)
	}
	if client.ExpectedSize != 768 {
		t.Errorf("NewEmbeddingsClient() ExpectedSize = %v, want 768", client.ExpectedSize)
	}
}

func TestEmbeddingsClient_EmbedTexts(t *testing.T) {
	tests := []struct {
		name         string
		texts        []string
		expectedSize int
		serverResp   func(w http.ResponseWriter, r *http.Request)
		wantErr      bool
		wantCount    int
	}{
		{
			name:         "successful embedding",
			texts:        []string{"Hello", "World"},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/embeddings" {
					t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
				}

				resp := EmbeddingsResponse{
					Data: []EmbeddingData{
						{Embedding: make([]float64, 768)},
						{Embedding: make([]float64, 768)},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr:   false,
			wantCount: 2,
		},
		{
			name:         "empty input",
			texts:        []string{},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				// Should not be called
			},
			wantErr: true,
		},
		{
			name:         "wrong embedding count",
			texts:        []string{"Hello", "World"},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				resp := EmbeddingsResponse{
					Data: []EmbeddingData{
						{Embedding: make([]float64, 768)},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr: true,
		},
		{
			name:         "wrong vector size",
			texts:        []string{"Hello"},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				resp := EmbeddingsResponse{
					Data: []EmbeddingData{
						{Embedding: make([]float64, 512)}, // Wrong size
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr: true,
		},
		{
			name:         "server error",
			texts:        []string{"Hello"},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewEmbeddingsClient(server.URL, "test-key", "test-model", tt.expectedSize, WithBackoff(time.Millisecond, time.Millisecond))
			embeddings, err := client.EmbedTexts(context.Background(), tt.texts)

			if tt.wantErr {
				if err == nil {
					t.Errorf("EmbedTexts() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("EmbedTexts() unexpected error: %v", err)
				return
			}

			if len(embeddings) != tt.wantCount {
				t.Errorf("EmbedTexts() returned %d embeddings, want %d", len(embeddings), tt.wantCount)
			}

			for i, emb := range embeddings {
				if len(emb) != tt.expectedSize {
					t.Errorf("EmbedTexts() embedding[%d] size = %d, want %d", i, len(emb), tt.expectedSize)
				}
			}
		})
	}
}

func TestEmbeddingsClient_EmbedTexts_ConvertsFloat64ToFloat32(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Return embeddings with float64 values
		resp := EmbeddingsResponse{
			Data: []EmbeddingData{
				{Embedding: []float64{1.5, 2.5, 3.5}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewEmbeddingsClient(server.URL, "test-key", "test-model", 3)
	embeddings, err := client.EmbedTexts(context.Background(), []string{"test"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}

	if len(embeddings) != 1 {
		t.Fatalf("EmbedTexts() returned %d embeddings, want 1", len(embeddings))
	}

	// Check that values are float32
	emb := embeddings[0]
	if len(emb) != 3 {
		t.Fatalf("EmbedTexts() embedding size = %d, want 3", len(emb))
	}

	// Verify conversion (with some tolerance for float precision)
	if emb[0] != float32(1.5) {
		t.Errorf("EmbedTexts() embedding[0] = %v, want 1.5", emb[0])
	}
	if emb[1] != float32(2.5) {
		t.Errorf("EmbedTexts() embedding[1] = %v, want 2.5", emb[1])
	}
	if emb[2] != float32(3.5) {
		t.Errorf("EmbedTexts() embedding[2] = %v, want 3.5", emb[2])
	}
}

// indexedServer answers every input "t<n>" with a vector whose first
// component is n.
func indexedServer(t *testing.T, dim int, calls *atomic.Int32, batches *[]int, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req EmbeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		mu.Lock()
		*batches = append(*batches, len(req.Input))
		mu.Unlock()

		resp := EmbeddingsResponse{}
		for i, in := range req.Input {
			n, _ := strconv.Atoi(strings.TrimPrefix(in, "t"))
			vec := make([]float64, dim)
			vec[0] = float64(n)
			resp.Data = append(resp.Data, EmbeddingData{Index: i, Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbeddingsClient_EmbedTexts_BatchesPreserveOrder(t *testing.T) {
	var calls atomic.Int32
	var batches []int
	var mu sync.Mutex
	server := indexedServer(t, 4, &calls, &batches, &mu)
	defer server.Close()

	texts := make([]string, 23)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}

	client := NewEmbeddingsClient(server.URL, "k", "m", 4, WithBatchSize(5), WithConcurrency(3))
	vecs, err := client.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}

	if calls.Load() != 5 {
		t.Errorf("server called %d times, want 5", calls.Load())
	}
	for _, n := range batches {
		if n > 5 {
			t.Errorf("batch of %d exceeds batch size 5", n)
		}
	}
	for i, v := range vecs {
		if int(v[0]) != i {
			t.Errorf("vector %d belongs to input %d", i, int(v[0]))
		}
	}
}

func TestEmbeddingsClient_EmbedTexts_OutOfOrderResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[2,0]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	vecs, err := NewEmbeddingsClient(server.URL, "k", "m", 2).EmbedTexts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("EmbedTexts() = %v, want index order", vecs)
	}
}

func TestEmbeddingsClient_Retry(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		status       int
		maxAttempts  int
		wantErr      bool
		wantAttempts int32
	}{
		{name: "recovers after transient failures", failures: 2, status: http.StatusServiceUnavailable, maxAttempts: 5, wantAttempts: 3},
		{name: "rate limited then ok", failures: 1, status: http.StatusTooManyRequests, maxAttempts: 5, wantAttempts: 2},
		{name: "request timeout is transient", failures: 1, status: http.StatusRequestTimeout, maxAttempts: 2, wantAttempts: 2},
		{name: "gives up after max attempts", failures: 10, status: http.StatusBadGateway, maxAttempts: 3, wantErr: true, wantAttempts: 3},
		{name: "client error is not retried", failures: 10, status: http.StatusBadRequest, maxAttempts: 5, wantErr: true, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if int(calls.Add(1)) <= tt.failures {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte("nope"))
					return
				}
				_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
			}))
			defer server.Close()

			client := NewEmbeddingsClient(server.URL, "k", "m", 2,
				WithMaxAttempts(tt.maxAttempts),
				WithBackoff(time.Millisecond, 2*time.Millisecond),
			)
			_, err := client.EmbedTexts(context.Background(), []string{"x"})

			if calls.Load() != tt.wantAttempts {
				t.Errorf("server called %d times, want %d", calls.Load(), tt.wantAttempts)
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("EmbedTexts() unexpected error: %v", err)
				}
				return
			}

			var embErr *EmbeddingError
			if !errors.As(err, &embErr) {
				t.Fatalf("EmbedTexts() error = %v, want *EmbeddingError", err)
			}
			if embErr.Attempts != int(tt.wantAttempts) {
				t.Errorf("EmbeddingError.Attempts = %d, want %d", embErr.Attempts, tt.wantAttempts)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Errorf("EmbedTexts() error should wrap status %d: %v", tt.status, err)
			}
		})
	}
}

func TestEmbeddingsClient_NetworkErrorIsRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewEmbeddingsClient(url, "k", "m", 2,
		WithMaxAttempts(2),
		WithBackoff(time.Millisecond, time.Millisecond),
	)
	_, err := client.EmbedTexts(context.Background(), []string{"x"})

	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("EmbedTexts() error = %v, want *EmbeddingError", err)
	}
	if embErr.Attempts != 2 {
		t.Errorf("EmbeddingError.Attempts = %d, want 2", embErr.Attempts)
	}
}

func TestEmbeddingsClient_HungAttemptIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Hang until the client gives up on this attempt
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer server.Close()

	client := NewEmbeddingsClient(server.URL, "k", "m", 2,
		WithAttemptTimeout(100*time.Millisecond),
		WithBackoff(time.Millisecond, time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	vecs, err := client.EmbedTexts(ctx, []string{"x"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 2 {
		t.Errorf("EmbedTexts() = %v", vecs)
	}
	if calls.Load() != 2 {
		t.Errorf("server called %d times, want 2", calls.Load())
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("EmbedTexts() took %v, the hung attempt was not cut short", elapsed)
	}
}

func TestEmbeddingsClient_AttemptTimeoutExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := NewEmbeddingsClient(server.URL, "k", "m", 2,
		WithAttemptTimeout(50*time.Millisecond),
		WithMaxAttempts(2),
		WithBackoff(time.Millisecond, time.Millisecond),
	)
	_, err := client.EmbedTexts(context.Background(), []string{"x"})

	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("EmbedTexts() error = %v, want *EmbeddingError", err)
	}
	if embErr.Attempts != 2 || calls.Load() != 2 {
		t.Errorf("attempts = %d, server calls = %d, want 2 and 2", embErr.Attempts, calls.Load())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("EmbedTexts() error = %v, want a deadline error", err)
	}
}

func TestEmbeddingsClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewEmbeddingsClient(server.URL, "k", "m", 2, WithBackoff(time.Hour, time.Hour))
	_, err := client.EmbedTexts(ctx, []string{"x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("EmbedTexts() error = %v, want context.Canceled", err)
	}
}

func TestEmbeddingsClient_RateLimit(t *testing.T) {
	var calls atomic.Int32
	var batches []int
	var mu sync.Mutex
	server := indexedServer(t, 2, &calls, &batches, &mu)
	defer server.Close()

	client := NewEmbeddingsClient(server.URL, "k", "m", 2, WithBatchSize(1), WithRateLimit(1000))
	if client.limiter == nil {
		t.Fatal("WithRateLimit() did not install a limiter")
	}
	if _, err := client.EmbedTexts(context.Background(), []string{"t0", "t1", "t2"}); err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}

	if NewEmbeddingsClient(server.URL, "k", "m", 2, WithRateLimit(0)).limiter != nil {
		t.Error("WithRateLimit(0) should disable the limiter")
	}
}
