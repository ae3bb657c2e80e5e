package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

type diskStore struct {
	dir     string
	baseURL string
}

var _ core.FileStore = (*diskStore)(nil) // interface compliance check

// NewDiskStore keeps files under dir, one sub directory per kind.
func NewDiskStore(dir, baseURL string) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &diskStore{dir: dir, baseURL: baseURL}, nil
}

func (s *diskStore) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

// Save writes to a temp file first so readers never see a partial upload.
func (s *diskStore) Save(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	dst, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating file dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "writing file")
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing file")
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.Wrap(err, "moving file")
	}
	return urlFor(s.baseURL, key), nil
}

func (s *diskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	src, err := s.path(key)
	if err != nil {
		return nil, core.ErrFileNotFound
	}
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (s *diskStore) Delete(_ context.Context, key string) error {
	src, err := s.path(key)
	if err != nil {
		return core.ErrFileNotFound
	}
	if err = os.Remove(src); err != nil {
		if os.IsNotExist(err) {
			return core.ErrFileNotFound
		}
		return errors.Wrap(err, "deleting file")
	}
	return nil
}

func (s *diskStore) KeyFromURL(url string) (string, bool) {
	return keyFor(s.baseURL, url)
}
