// Package analytics provides descriptive statistics over multi-segment
// time-series datasets. Outlier detection and feature transforms live
// in the outliers and transforms subpackages.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/driftwatch/driftwatch/internal/dataset"
)

// SegmentSummary describes one segment's values for a single column.
// Statistics cover the non-missing observations only; Missing counts the
// rows the column had no value for. Std is the sample deviation and
// stays zero below two observations.
type SegmentSummary struct {
	Segment string    `json:"segment"`
	Count   int       `json:"count"`
	Missing int       `json:"missing"`
	Mean    float64   `json:"mean"`
	Std     float64   `json:"std"`
	Min     float64   `json:"min"`
	Q1      float64   `json:"q1"`
	Median  float64   `json:"median"`
	Q3      float64   `json:"q3"`
	Max     float64   `json:"max"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Summarize computes per-segment statistics for the named column,
// ordered by segment name.
func Summarize(ds *dataset.Dataset, column string) ([]SegmentSummary, error) {
	segments := ds.Segments()
	summaries := make([]SegmentSummary, 0, len(segments))

	for _, segment := range segments {
		f, err := ds.Frame(segment)
		if err != nil {
			return nil, err
		}
		times, values, err := ds.ColumnSeries(segment, column)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", segment, err)
		}

		s := SegmentSummary{
			Segment: segment,
			Count:   len(values),
			Missing: f.Len() - len(values),
		}
		if len(values) > 0 {
			sorted := make([]float64, len(values))
			copy(sorted, values)
			sort.Float64s(sorted)

			s.Mean = stat.Mean(values, nil)
			if len(values) > 1 {
				s.Std = stat.StdDev(values, nil)
			}
			s.Min = floats.Min(values)
			s.Max = floats.Max(values)
			s.Q1 = percentile(sorted, 25)
			s.Median = percentile(sorted, 50)
			s.Q3 = percentile(sorted, 75)
			s.Start = times[0]
			s.End = times[len(times)-1]
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// percentile calculates the p-th percentile of sorted data with linear
// interpolation between the closest ranks. p is between 0 and 100.
func percentile(sortedData []float64, p float64) float64 {
	if len(sortedData) == 0 {
		return 0
	}
	if len(sortedData) == 1 {
		return sortedData[0]
	}

	index := (p / 100) * float64(len(sortedData)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sortedData) {
		return sortedData[len(sortedData)-1]
	}

	weight := index - float64(lower)
	return sortedData[lower]*(1-weight) + sortedData[upper]*weight
}
