package scanner

import (
	"context"
	"sync"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

// MemoryCache holds scan reports for the lifetime of the process. Keys
// carry the scanner version, so stale entries from an older rule set
// are never returned, only orphaned.
type MemoryCache struct {
	mu      sync.RWMutex
	reports map[string]compat.Report
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{reports: make(map[string]compat.Report)}
}

// Get returns the cached report for the key, if any.
func (c *MemoryCache) Get(_ context.Context, key string) (compat.Report, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	report, ok := c.reports[key]
	return report, ok, nil
}

// Put stores a report under the key.
func (c *MemoryCache) Put(_ context.Context, key string, report compat.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[key] = report
	return nil
}

// Len reports how many entries the cache holds.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.reports)
}
