package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryCatalog keeps dataset metadata in process memory. It is the
// default backend for single-node deployments and tests.
type MemoryCatalog struct {
	mu       sync.RWMutex
	datasets map[string]*DatasetMeta
}

// NewMemoryCatalog creates an empty in-memory catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		datasets: make(map[string]*DatasetMeta),
	}
}

// Create registers a new dataset entry
func (c *MemoryCatalog) Create(ctx context.Context, meta *DatasetMeta) error {
	if meta.Name == "" {
		return fmt.Errorf("dataset name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.datasets[meta.Name]; exists {
		return fmt.Errorf("dataset %s: %w", meta.Name, ErrAlreadyExists)
	}

	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	c.datasets[meta.Name] = cloneMeta(meta)

	return nil
}

// Get retrieves dataset metadata by name
func (c *MemoryCatalog) Get(ctx context.Context, name string) (*DatasetMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, exists := c.datasets[name]
	if !exists {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}

	return cloneMeta(meta), nil
}

// List returns all registered datasets in name order
func (c *MemoryCatalog) List(ctx context.Context) ([]*DatasetMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metas := make([]*DatasetMeta, 0, len(c.datasets))
	for _, meta := range c.datasets {
		metas = append(metas, cloneMeta(meta))
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Name < metas[j].Name
	})

	return metas, nil
}

// Update overwrites an existing entry and bumps UpdatedAt. A zero
// CreatedAt is backfilled from the stored entry.
func (c *MemoryCatalog) Update(ctx context.Context, meta *DatasetMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.datasets[meta.Name]
	if !exists {
		return fmt.Errorf("dataset %s: %w", meta.Name, ErrNotFound)
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = existing.CreatedAt
	}
	meta.UpdatedAt = time.Now().UTC()

	c.datasets[meta.Name] = cloneMeta(meta)

	return nil
}

// Delete removes a dataset entry
func (c *MemoryCatalog) Delete(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.datasets[name]; !exists {
		return fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}

	delete(c.datasets, name)

	return nil
}

// Exists reports whether a dataset entry is present
func (c *MemoryCatalog) Exists(ctx context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.datasets[name]
	return exists, nil
}

// Close is a no-op for the in-memory backend
func (c *MemoryCatalog) Close() error {
	return nil
}

// cloneMeta copies an entry so callers cannot mutate stored state
func cloneMeta(meta *DatasetMeta) *DatasetMeta {
	clone := *meta
	clone.Segments = append([]string(nil), meta.Segments...)
	clone.Columns = append([]string(nil), meta.Columns...)
	return &clone
}
