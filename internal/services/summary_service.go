package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/analytics"
	"github.com/driftwatch/driftwatch/internal/dataset"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
)

// SummaryService computes per-segment descriptive statistics for a
// stored dataset's column.
type SummaryService struct {
	logger *logging.Logger
	store  *store.Store
}

// NewSummaryService creates a new summary service
func NewSummaryService(logger *logging.Logger, st *store.Store) *SummaryService {
	return &SummaryService{
		logger: logger,
		store:  st,
	}
}

// Execute loads a dataset snapshot and summarizes the named column
func (s *SummaryService) Execute(ctx context.Context, name, column string) (*models.SummaryResponse, error) {
	ds, err := s.store.Load(name)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return nil, NewServiceError("DATASET_NOT_FOUND", fmt.Sprintf("dataset %s not found", name))
		}
		return nil, &ServiceError{Code: "STORE_FAILED", Message: err.Error()}
	}

	summaries, err := analytics.Summarize(ds, column)
	if err != nil {
		if errors.Is(err, dataset.ErrColumnNotFound) {
			return nil, NewServiceErrorWithDetails("COLUMN_NOT_FOUND",
				fmt.Sprintf("dataset %s has no column %s", name, column),
				map[string]interface{}{"columns": ds.Columns()})
		}
		return nil, &ServiceError{Code: "SUMMARY_FAILED", Message: err.Error()}
	}

	return &models.SummaryResponse{
		Dataset:  name,
		Column:   column,
		Segments: summaries,
	}, nil
}
