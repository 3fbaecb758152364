package models

// UploadPoint represents a single observation in an upload request
type UploadPoint struct {
	Segment   string                 `json:"segment" validate:"required"`
	Timestamp string                 `json:"timestamp" validate:"required"` // RFC3339
	Values    map[string]interface{} `json:"values" validate:"required,min=1"`
}

// CreateDatasetRequest represents create dataset request
type CreateDatasetRequest struct {
	Name   string        `json:"name" validate:"required,min=1,max=128"`
	Points []UploadPoint `json:"points" validate:"required,min=1"`
}

// DetectRequest represents an outlier detection request. Zero-valued
// fields fall back to the server's configured detection defaults.
type DetectRequest struct {
	Column       string  `json:"column,omitempty"`
	Method       string  `json:"method,omitempty"`
	WindowSize   int     `json:"window_size,omitempty" validate:"omitempty,min=1"`
	DistanceCoef float64 `json:"distance_coef,omitempty" validate:"omitempty,gt=0"`
	NNeighbors   int     `json:"n_neighbors,omitempty" validate:"omitempty,min=1"`
	GapPolicy    string  `json:"gap_policy,omitempty" validate:"omitempty,oneof=compact fail"`
	Workers      int     `json:"workers,omitempty" validate:"omitempty,min=1"`
}

// TransformRequest represents a feature transform request. Column is
// the input column where the transform reads one (expanding_mean);
// OutColumn overrides the transform's default output column name.
type TransformRequest struct {
	Transform string `json:"transform" validate:"required"`
	Country   string `json:"country,omitempty"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=binary days_count"`
	Column    string `json:"column,omitempty"`
	OutColumn string `json:"out_column,omitempty"`
}
