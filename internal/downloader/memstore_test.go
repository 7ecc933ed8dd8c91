package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// memStore keeps PDFs in memory keyed by relative path.
type memStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Exists(rel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[rel]
	return ok
}

func (s *memStore) Resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("path is required")
	}
	return "memory://" + rel, nil
}

// PutObject stores data under rel only once the whole body has been read.
func (s *memStore) PutObject(ctx context.Context, rel string, data io.Reader, chunkSize int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	var buf bytes.Buffer
	n, err := io.CopyBuffer(struct{ io.Writer }{&buf}, data, make([]byte, chunkSize))
	if err != nil {
		return n, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rel] = buf.Bytes()
	return n, nil
}

func (s *memStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
