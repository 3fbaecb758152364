// Package catalog tracks registered datasets. Entries are small
// metadata records; snapshot bodies live in the store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/dataset"
)

// Sentinel errors returned by catalog lookups.
var (
	ErrNotFound      = errors.New("dataset not found")
	ErrAlreadyExists = errors.New("dataset already exists")
)

// Catalog manages dataset metadata
type Catalog interface {
	// Dataset operations
	Create(ctx context.Context, meta *DatasetMeta) error
	Get(ctx context.Context, name string) (*DatasetMeta, error)
	List(ctx context.Context) ([]*DatasetMeta, error)
	Update(ctx context.Context, meta *DatasetMeta) error
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)

	// Lifecycle
	Close() error
}

// DatasetMeta represents dataset metadata
type DatasetMeta struct {
	Name      string    `json:"name"`
	Segments  []string  `json:"segments,omitempty"`
	Columns   []string  `json:"columns,omitempty"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a catalog for the configured backend
func New(cfg config.CatalogConfig) (Catalog, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCatalog(), nil
	case "etcd":
		return NewEtcdCatalog(cfg)
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}

// MetaFromDataset builds a metadata entry from dataset contents
func MetaFromDataset(ds *dataset.Dataset) *DatasetMeta {
	return &DatasetMeta{
		Name:     ds.Name(),
		Segments: ds.Segments(),
		Columns:  ds.Columns(),
		Points:   ds.NumPoints(),
	}
}
