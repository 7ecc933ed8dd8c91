// Package local implements the on-disk PDF store.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultChunkSize = 8192

// ErrCreateDir marks failures to create a destination directory. Retrying
// the same write will not fix them.
var ErrCreateDir = errors.New("create destination directory")

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the output root every relative path is resolved against.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes PDFs below a base directory.
type BlobStore struct {
	baseDir string
}

// New creates a new local filesystem-backed blob store, creating BaseDir if needed.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	return &BlobStore{baseDir: abs}, nil
}

// BaseDir returns the absolute output root.
func (s *BlobStore) BaseDir() string {
	return s.baseDir
}

// Resolve maps rel onto an absolute path inside the base directory.
func (s *BlobStore) Resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("path is required")
	}
	fullPath := filepath.Clean(filepath.Join(s.baseDir, rel))
	if !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}

// Exists reports whether a regular file is already stored at rel.
func (s *BlobStore) Exists(rel string) bool {
	fullPath, err := s.Resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// PutObject streams data to rel in chunkSize pieces and returns the number of
// bytes written. The content lands in a temporary sibling first and is renamed
// into place only once fully written, so rel never holds a partial file.
func (s *BlobStore) PutObject(ctx context.Context, rel string, data io.Reader, chunkSize int) (int64, error) {
	fullPath, err := s.Resolve(rel)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("write %s: %w", rel, err)
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("%w %s: %w", ErrCreateDir, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fullPath)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	// Hide ReadFrom so the copy reads in chunkSize pieces.
	n, err := io.CopyBuffer(struct{ io.Writer }{tmp}, data, make([]byte, chunkSize))
	if err != nil {
		return n, fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return n, fmt.Errorf("move into place: %w", err)
	}
	committed = true
	return n, nil
}
