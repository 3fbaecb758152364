package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/analytics/transforms"
	"github.com/driftwatch/driftwatch/internal/catalog"
	"github.com/driftwatch/driftwatch/internal/dataset"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
)

// TransformService applies feature transforms to stored datasets. A
// transform adds one derived column to every segment; the enriched
// snapshot replaces the stored one and the catalog entry is updated.
type TransformService struct {
	logger  *logging.Logger
	catalog catalog.Catalog
	store   *store.Store
}

// NewTransformService creates a new transform service
func NewTransformService(logger *logging.Logger, cat catalog.Catalog, st *store.Store) *TransformService {
	return &TransformService{
		logger:  logger,
		catalog: cat,
		store:   st,
	}
}

// Execute applies the requested transform to a dataset and persists the result
func (s *TransformService) Execute(ctx context.Context, name string, req *models.TransformRequest) (*models.TransformResponse, error) {
	startExec := time.Now()

	transform, err := buildTransform(req)
	if err != nil {
		return nil, err
	}

	ds, err := s.store.Load(name)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return nil, NewServiceError("DATASET_NOT_FOUND", fmt.Sprintf("dataset %s not found", name))
		}
		return nil, &ServiceError{Code: "STORE_FAILED", Message: err.Error()}
	}

	if err := transform.Apply(ds); err != nil {
		switch {
		case errors.Is(err, dataset.ErrColumnNotFound):
			return nil, &ServiceError{Code: "COLUMN_NOT_FOUND", Message: err.Error()}
		case errors.Is(err, dataset.ErrColumnExists):
			return nil, &ServiceError{Code: "COLUMN_EXISTS", Message: err.Error()}
		default:
			return nil, &ServiceError{Code: "TRANSFORM_FAILED", Message: err.Error()}
		}
	}

	if err := s.store.Save(ds); err != nil {
		return nil, &ServiceError{Code: "STORE_FAILED", Message: err.Error()}
	}
	if err := s.catalog.Update(ctx, catalog.MetaFromDataset(ds)); err != nil {
		return nil, &ServiceError{Code: "CATALOG_FAILED", Message: err.Error()}
	}

	latency := time.Since(startExec)
	s.logger.Info("Transform applied",
		"dataset", name,
		"transform", transform.Name(),
		"out_column", transform.OutColumn(),
		"latency_ms", latency.Milliseconds())

	return &models.TransformResponse{
		Dataset:   name,
		Transform: transform.Name(),
		OutColumn: transform.OutColumn(),
		Columns:   ds.Columns(),
		LatencyMS: latency.Milliseconds(),
	}, nil
}

// buildTransform maps a request to a transform, validating the fields
// the transform would only reject mid-apply.
func buildTransform(req *models.TransformRequest) (transforms.Transform, error) {
	switch req.Transform {
	case "holiday":
		if err := validateCountry(req.Country); err != nil {
			return nil, err
		}
		if req.Mode != "" && req.Mode != string(transforms.HolidayBinary) && req.Mode != string(transforms.HolidayDaysCount) {
			return nil, NewServiceErrorWithDetails("INVALID_PARAMETER",
				fmt.Sprintf("unknown holiday mode: %s", req.Mode),
				map[string]interface{}{
					"available_modes": []string{string(transforms.HolidayBinary), string(transforms.HolidayDaysCount)},
				})
		}
		return &transforms.Holiday{Options: transforms.HolidayOptions{
			Country: req.Country,
			Mode:    transforms.HolidayMode(req.Mode),
			Column:  req.OutColumn,
		}}, nil

	case "expanding_mean":
		return &transforms.ExpandingMean{Options: transforms.MeanEncoderOptions{
			InColumn:  req.Column,
			OutColumn: req.OutColumn,
		}}, nil

	default:
		return nil, NewServiceErrorWithDetails("INVALID_TRANSFORM",
			fmt.Sprintf("unknown transform: %s", req.Transform),
			map[string]interface{}{"available_transforms": transforms.Names()})
	}
}

func validateCountry(country string) error {
	if country == "" {
		return NewServiceErrorWithDetails("INVALID_PARAMETER",
			"country is required for the holiday transform",
			map[string]interface{}{"supported_countries": transforms.SupportedCountries()})
	}
	for _, c := range transforms.SupportedCountries() {
		if strings.EqualFold(country, c) {
			return nil
		}
	}
	return NewServiceErrorWithDetails("INVALID_PARAMETER",
		fmt.Sprintf("unsupported holiday country: %s", country),
		map[string]interface{}{"supported_countries": transforms.SupportedCountries()})
}
