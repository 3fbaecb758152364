package transforms

import "github.com/driftwatch/driftwatch/internal/dataset"

// Transform adds a derived feature column to every segment of a dataset
type Transform interface {
	// Name returns the transform name used for lookup
	Name() string

	// OutColumn returns the name of the column Apply adds
	OutColumn() string

	// Apply adds the transform's output column in place
	Apply(ds *dataset.Dataset) error
}

// Names lists the available transform names
func Names() []string {
	return []string{"holiday", "expanding_mean"}
}

// Holiday flags timestamps against a national holiday calendar
type Holiday struct {
	Options HolidayOptions
}

func (h *Holiday) Name() string { return "holiday" }

func (h *Holiday) OutColumn() string {
	opts := h.Options
	opts.setDefaults()
	return opts.Column
}

func (h *Holiday) Apply(ds *dataset.Dataset) error {
	return AddHolidayColumn(ds, h.Options)
}

// ExpandingMean appends the per-segment expanding mean of a column
type ExpandingMean struct {
	Options MeanEncoderOptions
}

func (m *ExpandingMean) Name() string { return "expanding_mean" }

func (m *ExpandingMean) OutColumn() string {
	opts := m.Options
	opts.setDefaults()
	return opts.OutColumn
}

func (m *ExpandingMean) Apply(ds *dataset.Dataset) error {
	return AddExpandingMean(ds, m.Options)
}
