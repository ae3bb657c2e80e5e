package filestore

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

// b2Store keeps files in a (private) Backblaze bucket; they are streamed back through the API so
// public URLs stay the same whatever the backend.
type b2Store struct {
	bucket  *b2.Bucket
	baseURL string
}

var _ core.FileStore = (*b2Store)(nil) // interface compliance check

func NewB2Store(ctx context.Context, accountID, appKey, bucketName, baseURL string) (*b2Store, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Store{bucket: bucket, baseURL: baseURL}, nil
}

func (s *b2Store) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	w := s.bucket.Object(key).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: contentType})
	if _, err = io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing object")
	}
	if err = w.Close(); err != nil {
		return "", errors.Wrap(err, "closing object writer")
	}
	return urlFor(s.baseURL, key), nil
}

func (s *b2Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, core.ErrFileNotFound
	}
	obj := s.bucket.Object(key)
	// the reader is lazy: check existence up front so missing files map to a 404
	if _, err = obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "reading object attrs")
	}
	return obj.NewReader(ctx), nil
}

func (s *b2Store) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return core.ErrFileNotFound
	}
	if err = s.bucket.Object(key).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return core.ErrFileNotFound
		}
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

func (s *b2Store) KeyFromURL(url string) (string, bool) {
	return keyFor(s.baseURL, url)
}
