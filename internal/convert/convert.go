package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when no converter handles a file extension.
var ErrUnsupported = errors.New("unsupported file type")

// Converter turns a source file into markdown text.
type Converter interface {
	// Convert reads the file at path and returns its content as markdown.
	Convert(ctx context.Context, path string) (string, error)
}

// Passthrough returns markdown and plain-text files as they are.
type Passthrough struct{}

// Convert reads the file from disk.
func (Passthrough) Convert(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// ByExtension dispatches to a converter chosen by the file extension.
type ByExtension struct {
	converters map[string]Converter
}

// NewByExtension builds a dispatcher. Text formats are passed through and
// everything in remote (e.g. ".pdf", ".docx") goes to the given converter.
// remote may be nil when no conversion service is configured.
func NewByExtension(remote Converter, remoteExts ...string) *ByExtension {
	b := &ByExtension{converters: map[string]Converter{
		".md":       Passthrough{},
		".markdown": Passthrough{},
		".txt":      Passthrough{},
	}}
	if remote != nil {
		for _, ext := range remoteExts {
			b.converters[strings.ToLower(ext)] = remote
		}
	}
	return b
}

// Convert selects a converter for path and runs it.
func (b *ByExtension) Convert(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	c, ok := b.converters[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return c.Convert(ctx, path)
}
