package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/driftwatch/driftwatch/internal/config"
)

const (
	defaultNamespace   = "/driftwatch"
	defaultDialTimeout = 5 * time.Second
	metaCacheTTL       = 30 * time.Second
)

// EtcdCatalog stores dataset metadata in etcd. Reads go through a
// TTL cache; mutations write through and invalidate it.
type EtcdCatalog struct {
	client    *clientv3.Client
	cache     *metaCache
	namespace string
}

// NewEtcdCatalog connects to etcd and returns a catalog rooted at
// cfg.Namespace
func NewEtcdCatalog(cfg config.CatalogConfig) (*EtcdCatalog, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	return &EtcdCatalog{
		client:    client,
		cache:     newMetaCache(metaCacheTTL),
		namespace: namespace,
	}, nil
}

// datasetKey builds the etcd key for a dataset entry
func (c *EtcdCatalog) datasetKey(name string) string {
	return path.Join(c.namespace, "datasets", name)
}

// datasetPrefix builds the etcd key prefix covering all entries
func (c *EtcdCatalog) datasetPrefix() string {
	return path.Join(c.namespace, "datasets") + "/"
}

// Create registers a new dataset entry
func (c *EtcdCatalog) Create(ctx context.Context, meta *DatasetMeta) error {
	if meta.Name == "" {
		return fmt.Errorf("dataset name is required")
	}

	key := c.datasetKey(meta.Name)

	// Check if dataset already exists
	resp, err := c.client.Get(ctx, key, clientv3.WithCountOnly())
	if err != nil {
		return fmt.Errorf("failed to check dataset existence: %w", err)
	}
	if resp.Count > 0 {
		return fmt.Errorf("dataset %s: %w", meta.Name, ErrAlreadyExists)
	}

	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset metadata: %w", err)
	}

	if _, err := c.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to store dataset metadata: %w", err)
	}

	c.cache.Set(key, data)

	return nil
}

// Get retrieves dataset metadata by name
func (c *EtcdCatalog) Get(ctx context.Context, name string) (*DatasetMeta, error) {
	key := c.datasetKey(name)

	// Check cache first
	if cached, ok := c.cache.Get(key); ok {
		var meta DatasetMeta
		if err := json.Unmarshal(cached, &meta); err == nil {
			return &meta, nil
		}
	}

	resp, err := c.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset metadata: %w", err)
	}
	if resp.Count == 0 {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}

	var meta DatasetMeta
	if err := json.Unmarshal(resp.Kvs[0].Value, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset metadata: %w", err)
	}

	c.cache.Set(key, resp.Kvs[0].Value)

	return &meta, nil
}

// List returns all registered datasets in name order
func (c *EtcdCatalog) List(ctx context.Context) ([]*DatasetMeta, error) {
	resp, err := c.client.Get(ctx, c.datasetPrefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	metas := make([]*DatasetMeta, 0, resp.Count)
	for _, kv := range resp.Kvs {
		var meta DatasetMeta
		if err := json.Unmarshal(kv.Value, &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dataset metadata for %s: %w", kv.Key, err)
		}
		metas = append(metas, &meta)
	}

	return metas, nil
}

// Update overwrites an existing entry and bumps UpdatedAt. A zero
// CreatedAt is backfilled from the stored entry.
func (c *EtcdCatalog) Update(ctx context.Context, meta *DatasetMeta) error {
	key := c.datasetKey(meta.Name)

	resp, err := c.client.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check dataset existence: %w", err)
	}
	if resp.Count == 0 {
		return fmt.Errorf("dataset %s: %w", meta.Name, ErrNotFound)
	}

	if meta.CreatedAt.IsZero() {
		var existing DatasetMeta
		if err := json.Unmarshal(resp.Kvs[0].Value, &existing); err == nil {
			meta.CreatedAt = existing.CreatedAt
		}
	}
	meta.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset metadata: %w", err)
	}

	if _, err := c.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to store dataset metadata: %w", err)
	}

	c.cache.Set(key, data)

	return nil
}

// Delete removes a dataset entry
func (c *EtcdCatalog) Delete(ctx context.Context, name string) error {
	key := c.datasetKey(name)

	resp, err := c.client.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to delete dataset metadata: %w", err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}

	c.cache.Delete(key)

	return nil
}

// Exists reports whether a dataset entry is present
func (c *EtcdCatalog) Exists(ctx context.Context, name string) (bool, error) {
	key := c.datasetKey(name)

	if _, ok := c.cache.Get(key); ok {
		return true, nil
	}

	resp, err := c.client.Get(ctx, key, clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("failed to check dataset existence: %w", err)
	}

	return resp.Count > 0, nil
}

// Close stops the cache and closes the etcd client
func (c *EtcdCatalog) Close() error {
	c.cache.Stop()
	return c.client.Close()
}
