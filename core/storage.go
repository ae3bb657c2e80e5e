package core

import (
	"context"
	"io"
)

var ErrFileNotFound = NewNotFoundError("file")

type (
	// FileStore persists uploaded files under slash-separated keys such as "pdf/notes_1f2e.pdf".
	FileStore interface {
		// Save writes r under key and returns the public URL of the stored file.
		Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
		Open(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
		// KeyFromURL maps a URL returned by Save back to its key.
		KeyFromURL(url string) (string, bool)
	}

	// VisitCounter records site visits for the analytics dashboard.
	VisitCounter interface {
		Record(ctx context.Context, visitorID string) error
		Stats(ctx context.Context) (VisitStats, error)
	}

	VisitStats struct {
		PageViews      int64 `json:"page_views"`
		UniqueVisitors int64 `json:"unique_visitors"`
	}
)
