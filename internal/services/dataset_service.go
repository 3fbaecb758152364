package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/catalog"
	"github.com/driftwatch/driftwatch/internal/dataset"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
	"github.com/driftwatch/driftwatch/internal/utils"
)

// DatasetService handles the dataset lifecycle: upload, metadata lookup,
// listing, and deletion. Snapshots hold the point data, the catalog holds
// the metadata; on upload the snapshot is written first so a catalog entry
// never points at missing data.
type DatasetService struct {
	logger  *logging.Logger
	catalog catalog.Catalog
	store   *store.Store
}

// NewDatasetService creates a new dataset service
func NewDatasetService(logger *logging.Logger, cat catalog.Catalog, st *store.Store) *DatasetService {
	return &DatasetService{
		logger:  logger,
		catalog: cat,
		store:   st,
	}
}

// Create validates an upload, persists the snapshot, and registers the
// dataset in the catalog.
func (s *DatasetService) Create(ctx context.Context, req *models.CreateDatasetRequest) (*models.DatasetResponse, error) {
	startExec := time.Now()

	if err := validateDatasetName(req.Name); err != nil {
		return nil, err
	}
	if len(req.Points) == 0 {
		return nil, NewServiceError("INVALID_REQUEST", "at least one point is required")
	}
	if len(req.Points) > utils.MaxUploadPoints {
		return nil, NewServiceErrorWithDetails("TOO_MANY_POINTS",
			fmt.Sprintf("upload exceeds %d points", utils.MaxUploadPoints),
			map[string]interface{}{
				"points":     len(req.Points),
				"max_points": utils.MaxUploadPoints,
			})
	}

	exists, err := s.catalog.Exists(ctx, req.Name)
	if err != nil {
		return nil, &ServiceError{Code: "CATALOG_FAILED", Message: err.Error()}
	}
	if exists {
		return nil, NewServiceError("DATASET_EXISTS", fmt.Sprintf("dataset %s already exists", req.Name))
	}

	ds, err := buildDataset(req)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ds); err != nil {
		return nil, &ServiceError{Code: "STORE_FAILED", Message: err.Error()}
	}

	meta := catalog.MetaFromDataset(ds)
	if err := s.catalog.Create(ctx, meta); err != nil {
		// Remove the snapshot so a failed registration leaves no orphan.
		if delErr := s.store.Delete(ds.Name()); delErr != nil {
			s.logger.Error("Failed to remove orphaned snapshot", "dataset", ds.Name(), "error", delErr)
		}
		if errors.Is(err, catalog.ErrAlreadyExists) {
			return nil, NewServiceError("DATASET_EXISTS", fmt.Sprintf("dataset %s already exists", req.Name))
		}
		return nil, &ServiceError{Code: "CATALOG_FAILED", Message: err.Error()}
	}

	latency := time.Since(startExec)
	s.logger.Info("Dataset created",
		"dataset", ds.Name(),
		"segments", len(ds.Segments()),
		"points", ds.NumPoints(),
		"latency_ms", latency.Milliseconds())

	return datasetResponse(meta), nil
}

// Get returns the catalog metadata for a dataset
func (s *DatasetService) Get(ctx context.Context, name string) (*models.DatasetResponse, error) {
	meta, err := s.catalog.Get(ctx, name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, NewServiceError("DATASET_NOT_FOUND", fmt.Sprintf("dataset %s not found", name))
		}
		return nil, &ServiceError{Code: "CATALOG_FAILED", Message: err.Error()}
	}
	return datasetResponse(meta), nil
}

// List returns metadata for all registered datasets
func (s *DatasetService) List(ctx context.Context) (*models.DatasetListResponse, error) {
	metas, err := s.catalog.List(ctx)
	if err != nil {
		return nil, &ServiceError{Code: "CATALOG_FAILED", Message: err.Error()}
	}

	resp := &models.DatasetListResponse{
		Datasets: make([]models.DatasetResponse, 0, len(metas)),
		Count:    len(metas),
	}
	for _, meta := range metas {
		resp.Datasets = append(resp.Datasets, *datasetResponse(meta))
	}
	return resp, nil
}

// Delete removes a dataset's snapshot and catalog entry. The snapshot
// goes first; if only the catalog delete fails the entry still points
// at nothing and the operation can be retried.
func (s *DatasetService) Delete(ctx context.Context, name string) error {
	if _, err := s.catalog.Get(ctx, name); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return NewServiceError("DATASET_NOT_FOUND", fmt.Sprintf("dataset %s not found", name))
		}
		return &ServiceError{Code: "CATALOG_FAILED", Message: err.Error()}
	}

	if err := s.store.Delete(name); err != nil && !errors.Is(err, store.ErrSnapshotNotFound) {
		return &ServiceError{Code: "STORE_FAILED", Message: err.Error()}
	}

	if err := s.catalog.Delete(ctx, name); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return &ServiceError{Code: "CATALOG_FAILED", Message: err.Error()}
	}

	s.logger.Info("Dataset deleted", "dataset", name)
	return nil
}

func validateDatasetName(name string) error {
	if name == "" {
		return NewServiceError("INVALID_NAME", "dataset name is required")
	}
	if len(name) > utils.MaxNameLength {
		return NewServiceError("INVALID_NAME",
			fmt.Sprintf("dataset name exceeds %d characters", utils.MaxNameLength))
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return NewServiceError("INVALID_NAME", "dataset name must not contain path separators")
	}
	return nil
}

func buildDataset(req *models.CreateDatasetRequest) (*dataset.Dataset, error) {
	b := dataset.NewBuilder(req.Name)
	for i, p := range req.Points {
		ts, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return nil, NewServiceErrorWithDetails("INVALID_POINT",
				fmt.Sprintf("point %d: invalid timestamp %q, expected RFC3339", i, p.Timestamp),
				map[string]interface{}{"index": i})
		}

		values := make(map[string]float64, len(p.Values))
		for column, raw := range p.Values {
			v, ok := utils.ToFloat64(raw)
			if !ok {
				return nil, NewServiceErrorWithDetails("INVALID_POINT",
					fmt.Sprintf("point %d: column %s has a non-numeric value", i, column),
					map[string]interface{}{"index": i, "column": column})
			}
			values[column] = v
		}

		if err := b.Add(p.Segment, ts, values); err != nil {
			return nil, NewServiceErrorWithDetails("INVALID_POINT",
				fmt.Sprintf("point %d: %v", i, err),
				map[string]interface{}{"index": i})
		}
	}

	ds, err := b.Build()
	if err != nil {
		return nil, NewServiceError("INVALID_REQUEST", err.Error())
	}
	return ds, nil
}

func datasetResponse(meta *catalog.DatasetMeta) *models.DatasetResponse {
	return &models.DatasetResponse{
		Name:      meta.Name,
		Segments:  meta.Segments,
		Columns:   meta.Columns,
		Points:    meta.Points,
		CreatedAt: meta.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: meta.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
