package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// File is a source document found during a corpus scan.
type File struct {
	RelPath string // Relative path from corpus root, forward slashes (e.g., "iso/14971-2019.pdf")
	AbsPath string // Absolute file path
	Title   string // File name without extension (e.g., "14971-2019")
	Size    int64
}

// Scanner walks a corpus directory and selects files by glob.
type Scanner struct {
	root    string
	include []string
	exclude []string
}

// NewScanner creates a scanner rooted at dir. Patterns use doublestar syntax
// and are matched against the slash-separated path relative to the root.
func NewScanner(dir string, include, exclude []string) (*Scanner, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus dir %s: %w", dir, err)
	}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return &Scanner{root: abs, include: include, exclude: exclude}, nil
}

// Root returns the absolute corpus directory.
func (s *Scanner) Root() string {
	return s.root
}

// Scan returns all matching files sorted by relative path.
func (s *Scanner) Scan(ctx context.Context) ([]File, error) {
	var files []File

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		// Check for context cancellation
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (.git, .cache, ...)
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		if !s.Match(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		files = append(files, File{
			RelPath: relPath,
			AbsPath: path,
			Title:   strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus %s: %w", s.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Match reports whether relPath is selected by the include patterns and not
// rejected by an exclude pattern. An empty include list selects everything.
func (s *Scanner) Match(relPath string) bool {
	for _, p := range s.exclude {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, p := range s.include {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
	}
	return false
}

// FileAt builds a File for a single path inside the corpus.
func (s *Scanner) FileAt(path string) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return File{}, fmt.Errorf("%s is outside corpus %s", path, s.root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(abs)
	return File{
		RelPath: filepath.ToSlash(rel),
		AbsPath: abs,
		Title:   strings.TrimSuffix(name, filepath.Ext(name)),
		Size:    info.Size(),
	}, nil
}
