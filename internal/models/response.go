package models

import "github.com/driftwatch/driftwatch/internal/analytics"

// HealthResponse represents health check response. Methods lists the
// detection methods registered in this build.
type HealthResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Version   string   `json:"version"`
	Uptime    string   `json:"uptime"`
	Methods   []string `json:"methods"`
}

// DatasetResponse represents dataset metadata response
type DatasetResponse struct {
	Name      string   `json:"name"`
	Segments  []string `json:"segments"`
	Columns   []string `json:"columns"`
	Points    int      `json:"points"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// DatasetListResponse represents list datasets response
type DatasetListResponse struct {
	Datasets []DatasetResponse `json:"datasets"`
	Count    int               `json:"count"`
}

// DetectResponse represents an outlier detection run's result. Outliers
// maps each flagged segment to its outlier timestamps in RFC3339;
// segments with no outliers are omitted.
type DetectResponse struct {
	RunID           string              `json:"run_id"`
	Dataset         string              `json:"dataset"`
	Column          string              `json:"column"`
	Method          string              `json:"method"`
	Outliers        map[string][]string `json:"outliers"`
	SegmentsFlagged int                 `json:"segments_flagged"`
	SegmentsSkipped int                 `json:"segments_skipped"`
	EventsPublished int                 `json:"events_published,omitempty"`
	LatencyMS       int64               `json:"latency_ms"`
}

// TransformResponse represents a feature transform result
type TransformResponse struct {
	Dataset   string   `json:"dataset"`
	Transform string   `json:"transform"`
	OutColumn string   `json:"out_column"`
	Columns   []string `json:"columns"`
	LatencyMS int64    `json:"latency_ms"`
}

// SummaryResponse represents per-segment descriptive statistics
type SummaryResponse struct {
	Dataset  string                     `json:"dataset"`
	Column   string                     `json:"column"`
	Segments []analytics.SegmentSummary `json:"segments"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewErrorResponse builds the envelope every error reply uses. Callers
// needing the optional details map set it on the returned value.
func NewErrorResponse(code, message, path string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Path: path}}
}
