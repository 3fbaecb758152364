package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/analytics/outliers"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/events"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
	"github.com/driftwatch/driftwatch/internal/utils"
)

// DetectionService runs outlier detection over stored datasets. Request
// parameters override the configured defaults field by field; a run gets
// a fresh UUID and, when a publisher is attached, one outlier event per
// flagged segment.
type DetectionService struct {
	logger    *logging.Logger
	store     *store.Store
	publisher events.Publisher
	subject   string
	defaults  config.DetectionConfig
}

// NewDetectionService creates a new detection service. publisher may be
// nil, which disables event publishing.
func NewDetectionService(logger *logging.Logger, st *store.Store, publisher events.Publisher, subject string, defaults config.DetectionConfig) *DetectionService {
	if subject == "" {
		subject = events.DefaultSubject
	}
	return &DetectionService{
		logger:    logger,
		store:     st,
		publisher: publisher,
		subject:   subject,
		defaults:  defaults,
	}
}

// Execute loads a dataset snapshot and runs outlier detection on it
func (s *DetectionService) Execute(ctx context.Context, name string, req *models.DetectRequest) (*models.DetectResponse, error) {
	startExec := time.Now()

	ds, err := s.store.Load(name)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return nil, NewServiceError("DATASET_NOT_FOUND", fmt.Sprintf("dataset %s not found", name))
		}
		return nil, &ServiceError{Code: "STORE_FAILED", Message: err.Error()}
	}

	opts := s.buildOptions(req)

	if _, err := outliers.Get(opts.Method); err != nil {
		return nil, NewServiceErrorWithDetails("INVALID_METHOD",
			fmt.Sprintf("unknown detection method: %s", opts.Method),
			map[string]interface{}{"available_methods": outliers.List()})
	}
	if !ds.HasColumn(opts.Column) {
		return nil, NewServiceErrorWithDetails("COLUMN_NOT_FOUND",
			fmt.Sprintf("dataset %s has no column %s", name, opts.Column),
			map[string]interface{}{"columns": ds.Columns()})
	}
	if err := opts.Validate(); err != nil {
		return nil, NewServiceError("INVALID_PARAMETER", err.Error())
	}

	runID := uuid.New().String()

	result, err := outliers.Detect(ds, opts)
	if err != nil {
		return nil, &ServiceError{Code: "DETECTION_FAILED", Message: err.Error()}
	}

	skipped, err := outliers.SkippedSegments(ds, opts.Column)
	if err != nil {
		return nil, &ServiceError{Code: "DETECTION_FAILED", Message: err.Error()}
	}

	published := s.publishEvents(ctx, runID, name, opts, result)

	latency := time.Since(startExec)
	s.logger.Info("Detection completed",
		"run_id", runID,
		"dataset", name,
		"method", opts.Method,
		"column", opts.Column,
		"segments_flagged", len(result),
		"segments_skipped", skipped,
		"events_published", published,
		"latency_ms", latency.Milliseconds())

	outlierTimes := make(map[string][]string, len(result))
	for segment, stamps := range result {
		formatted := make([]string, len(stamps))
		for i, ts := range stamps {
			formatted[i] = ts.UTC().Format(time.RFC3339)
		}
		outlierTimes[segment] = formatted
	}

	return &models.DetectResponse{
		RunID:           runID,
		Dataset:         name,
		Column:          opts.Column,
		Method:          opts.Method,
		Outliers:        outlierTimes,
		SegmentsFlagged: len(result),
		SegmentsSkipped: skipped,
		EventsPublished: published,
		LatencyMS:       latency.Milliseconds(),
	}, nil
}

// buildOptions layers the configured defaults over the library defaults,
// then the request's non-zero fields over both.
func (s *DetectionService) buildOptions(req *models.DetectRequest) outliers.Options {
	opts := outliers.DefaultOptions()

	if s.defaults.Column != "" {
		opts.Column = s.defaults.Column
	}
	if s.defaults.Method != "" {
		opts.Method = s.defaults.Method
	}
	if s.defaults.WindowSize > 0 {
		opts.WindowSize = s.defaults.WindowSize
	}
	if s.defaults.DistanceCoef > 0 {
		opts.DistanceCoef = s.defaults.DistanceCoef
	}
	if s.defaults.NNeighbors > 0 {
		opts.NNeighbors = s.defaults.NNeighbors
	}
	if s.defaults.GapPolicy != "" {
		opts.GapPolicy = outliers.GapPolicy(s.defaults.GapPolicy)
	}
	if s.defaults.Workers > 0 {
		opts.Workers = s.defaults.Workers
	}

	if req == nil {
		return opts
	}
	if req.Column != "" {
		opts.Column = req.Column
	}
	if req.Method != "" {
		opts.Method = req.Method
	}
	if req.WindowSize > 0 {
		opts.WindowSize = req.WindowSize
	}
	if req.DistanceCoef > 0 {
		opts.DistanceCoef = req.DistanceCoef
	}
	if req.NNeighbors > 0 {
		opts.NNeighbors = req.NNeighbors
	}
	if req.GapPolicy != "" {
		opts.GapPolicy = outliers.GapPolicy(req.GapPolicy)
	}
	if req.Workers > 0 {
		opts.Workers = req.Workers
	}
	return opts
}

// publishEvents emits one outlier event per flagged segment, in segment
// order. Publishing is best effort: failures are logged and do not fail
// the detection run.
func (s *DetectionService) publishEvents(ctx context.Context, runID, dataset string, opts outliers.Options, result map[string][]time.Time) int {
	if s.publisher == nil || len(result) == 0 {
		return 0
	}

	segments := make([]string, 0, len(result))
	for segment := range result {
		segments = append(segments, segment)
	}
	sort.Strings(segments)

	detectedAt := time.Now().UTC()
	msgs := make([]events.BatchMessage, 0, len(segments))
	for _, segment := range segments {
		event := &events.OutlierEvent{
			RunID:      runID,
			Dataset:    dataset,
			Segment:    segment,
			Column:     opts.Column,
			Method:     opts.Method,
			Timestamps: result[segment],
			DetectedAt: detectedAt,
		}
		data, err := event.Marshal()
		if err != nil {
			s.logger.Warn("Failed to marshal outlier event",
				"run_id", runID, "dataset", dataset, "segment", segment, "error", err)
			continue
		}
		msgs = append(msgs, events.BatchMessage{Subject: s.subject, Data: data})
	}
	if len(msgs) == 0 {
		return 0
	}

	pubCtx, cancel := context.WithTimeout(ctx, utils.EventPublishTimeout)
	defer cancel()

	published, err := s.publisher.PublishBatch(pubCtx, msgs)
	if err != nil {
		s.logger.Warn("Failed to publish outlier events",
			"run_id", runID, "dataset", dataset, "published", published, "error", err)
	}
	return published
}
