package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DoclingClient converts documents with a docling-serve compatible service.
type DoclingClient struct {
	BaseURL string
	client  *http.Client
}

// NewDoclingClient creates a conversion client. PDF conversion of long
// standards is slow, so the HTTP timeout is generous.
func NewDoclingClient(baseURL string) *DoclingClient {
	return &DoclingClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

// convertResponse is the subset of the docling-serve response that is used.
type convertResponse struct {
	Document struct {
		Filename  string `json:"filename"`
		MDContent string `json:"md_content"`
	} `json:"document"`
	Status string   `json:"status"`
	Errors []string `json:"errors"`
}

// Convert uploads the file and returns the markdown rendition.
func (c *DoclingClient) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := w.WriteField("to_formats", "md"); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish form: %w", err)
	}

	url := fmt.Sprintf("%s/v1/convert/file", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var out convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if out.Status == "failure" {
		return "", fmt.Errorf("conversion failed: %s", strings.Join(out.Errors, "; "))
	}
	if strings.TrimSpace(out.Document.MDContent) == "" {
		return "", fmt.Errorf("conversion returned no content for %s", filepath.Base(path))
	}

	return out.Document.MDContent, nil
}
