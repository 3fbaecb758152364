package transforms

import (
	"math"

	"github.com/driftwatch/driftwatch/internal/dataset"
)

// DefaultMeanSuffix is appended to the input column name when no output
// column is given.
const DefaultMeanSuffix = "_mean"

// MeanEncoderOptions configures the expanding mean transform.
type MeanEncoderOptions struct {
	// InColumn is the column the running mean is computed over.
	InColumn string

	// OutColumn is the output column name.
	OutColumn string
}

func (o *MeanEncoderOptions) setDefaults() {
	if o.InColumn == "" {
		o.InColumn = "target"
	}
	if o.OutColumn == "" {
		o.OutColumn = o.InColumn + DefaultMeanSuffix
	}
}

// AddExpandingMean appends a column holding, for every row, the mean of
// all earlier non-missing observations of InColumn in the same segment.
// The first row of each segment has no history and stays missing;
// missing observations inherit the running mean without updating it.
// The encoded value never includes the row's own observation.
func AddExpandingMean(ds *dataset.Dataset, opts MeanEncoderOptions) error {
	opts.setDefaults()

	columns := make(map[string][]float64)
	for _, segment := range ds.Segments() {
		f, err := ds.Frame(segment)
		if err != nil {
			return err
		}
		raw, err := f.Column(opts.InColumn)
		if err != nil {
			return err
		}

		out := make([]float64, len(raw))
		sum := 0.0
		count := 0
		for i, v := range raw {
			if count == 0 {
				out[i] = math.NaN()
			} else {
				out[i] = sum / float64(count)
			}
			if !math.IsNaN(v) {
				sum += v
				count++
			}
		}
		columns[segment] = out
	}

	for segment, values := range columns {
		if err := ds.AddColumn(segment, opts.OutColumn, values); err != nil {
			return err
		}
	}
	return nil
}
