package visitsvc

import (
	"context"
	"sync"

	"github.com/ibca/academic/core"
)

// memCounter is used when no redis address is configured; counts reset on restart.
type memCounter struct {
	mu       sync.Mutex
	views    int64
	visitors map[string]struct{}
}

var _ core.VisitCounter = (*memCounter)(nil) // interface compliance check

func NewMemCounter() *memCounter {
	return &memCounter{visitors: make(map[string]struct{})}
}

func (c *memCounter) Record(_ context.Context, visitorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.views++
	if visitorID != "" {
		c.visitors[visitorID] = struct{}{}
	}
	return nil
}

func (c *memCounter) Stats(_ context.Context) (core.VisitStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return core.VisitStats{PageViews: c.views, UniqueVisitors: int64(len(c.visitors))}, nil
}
