package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"regdocs-rag/internal/contextutil"
)

const (
	defaultBatchSize      = 64
	defaultConcurrency    = 4
	defaultMaxAttempts    = 5
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 10 * time.Second
	defaultAttemptTimeout = 60 * time.Second
)

// EmbeddingError is returned when a batch could not be embedded, either
// because retries were exhausted or because the failure was not transient.
type EmbeddingError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// StatusError is a non-200 response from a model provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the request may succeed when repeated.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// EmbeddingsClient is a client for an OpenAI-compatible embeddings API.
// Inputs are sent in batches, several batches at a time, and transient
// failures are retried with exponential backoff.
type EmbeddingsClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	ExpectedSize int // Expected vector size for validation
	client       *http.Client

	batchSize      int
	concurrency    int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	attemptTimeout time.Duration
	limiter        *rate.Limiter
}

// EmbeddingsOption configures an EmbeddingsClient.
type EmbeddingsOption func(*EmbeddingsClient)

// WithBatchSize sets how many texts are sent per request.
func WithBatchSize(n int) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithConcurrency sets how many batches are in flight at once.
func WithConcurrency(n int) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxAttempts bounds the number of tries per batch.
func WithMaxAttempts(n int) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the first and the largest wait between retries.
func WithBackoff(initial, maxWait time.Duration) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		c.initialBackoff = initial
		c.maxBackoff = maxWait
	}
}

// WithAttemptTimeout bounds a single request. An attempt that runs out of
// time is retried like any other transient failure. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		if d >= 0 {
			c.attemptTimeout = d
		}
	}
}

// WithRateLimit caps requests per second. Zero disables the limit.
func WithRateLimit(rps float64) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		c.client = hc
	}
}

// NewEmbeddingsClient creates a new embeddings client.
// expectedSize is the expected vector size (from QDRANT_VECTOR_SIZE config).
// All embeddings returned by EmbedTexts will be validated against this size.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int, opts ...EmbeddingsOption) *EmbeddingsClient {
	c := &EmbeddingsClient{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		Model:          model,
		ExpectedSize:   expectedSize,
		client:         http.DefaultClient,
		batchSize:      defaultBatchSize,
		concurrency:    defaultConcurrency,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EmbeddingsRequest represents the request payload for embeddings API.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// Dimension returns the vector size every embedding is checked against.
func (c *EmbeddingsClient) Dimension() int {
	return c.ExpectedSize
}

// ModelName returns the embedding model identifier.
func (c *EmbeddingsClient) ModelName() string {
	return c.Model
}

// EmbedTexts generates embeddings for the given texts.
// Returns a slice of float32 vectors, one per input text, in input order.
// Any batch that fails after retries fails the whole call.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	result := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.embedWithRetry(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(result[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// embedWithRetry sends one batch, retrying transient failures up to
// maxAttempts times.
func (c *EmbeddingsClient) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := 0
	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &EmbeddingError{Attempts: attempts, Err: err}
			}
		}

		attempts++
		vecs, err := c.attempt(ctx, texts)
		if err == nil {
			return vecs, nil
		}

		if ctx.Err() != nil {
			return nil, &EmbeddingError{Attempts: attempts, Err: ctx.Err()}
		}
		// The parent is alive, so a deadline here is the attempt's own
		timedOut := errors.Is(err, context.DeadlineExceeded)
		if (!timedOut && !isTransient(err)) || attempts >= c.maxAttempts {
			return nil, &EmbeddingError{Attempts: attempts, Err: err}
		}

		wait := b.NextBackOff()
		logger.WarnContext(ctx, "embedding request failed, retrying",
			"attempt", attempts,
			"max_attempts", c.maxAttempts,
			"batch_size", len(texts),
			"wait", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &EmbeddingError{Attempts: attempts, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// attempt runs one request under the per-attempt timeout.
func (c *EmbeddingsClient) attempt(ctx context.Context, texts []string) ([][]float32, error) {
	if c.attemptTimeout <= 0 {
		return c.embedBatch(ctx, texts)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()
	return c.embedBatch(attemptCtx, texts)
}

// embedBatch performs a single embeddings request.
func (c *EmbeddingsClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)

	payload := EmbeddingsRequest{
		Model: c.Model,
		Input: texts,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var embeddingsResp EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddingsResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddingsResp.Data))
	}

	// Providers may return data out of order; place by index when the
	// indices form a permutation of the input
	useIndex := true
	seen := make([]bool, len(texts))
	for _, data := range embeddingsResp.Data {
		if data.Index < 0 || data.Index >= len(texts) || seen[data.Index] {
			useIndex = false
			break
		}
		seen[data.Index] = true
	}

	result := make([][]float32, len(texts))
	for i, data := range embeddingsResp.Data {
		if len(data.Embedding) != c.ExpectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), c.ExpectedSize)
		}

		pos := i
		if useIndex {
			pos = data.Index
		}

		// Convert []float64 to []float32
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[pos] = vec
	}

	return result, nil
}

// isTransient classifies errors worth retrying: network failures and
// 408, 429 and 5xx responses.
func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
