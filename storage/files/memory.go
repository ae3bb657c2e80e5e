package filestore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

// MemStore keeps files in memory. Used by tests and the in-memory dev setup.
type MemStore struct {
	baseURL string

	mu    sync.RWMutex
	files map[string][]byte
}

var _ core.FileStore = (*MemStore)(nil) // interface compliance check

func NewMemStore(baseURL string) *MemStore {
	return &MemStore{baseURL: baseURL, files: make(map[string][]byte)}
}

func (s *MemStore) Save(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "reading file")
	}

	s.mu.Lock()
	s.files[key] = b
	s.mu.Unlock()
	return urlFor(s.baseURL, key), nil
}

func (s *MemStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.files[key]
	if !ok {
		return nil, core.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *MemStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		return core.ErrFileNotFound
	}
	delete(s.files, key)
	return nil
}

func (s *MemStore) KeyFromURL(url string) (string, bool) {
	return keyFor(s.baseURL, url)
}

// Keys lists the stored keys.
func (s *MemStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	return keys
}
