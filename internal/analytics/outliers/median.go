package outliers

import (
	"sort"
)

// MedianDetector splits a series into consecutive windows of WindowSize
// and flags values at least DistanceThreshold away from their window's
// median. Cheaper than density detection and robust against single
// spikes, but blind to placement overlap: NNeighbors and Distance are
// ignored.
type MedianDetector struct{}

func init() {
	Register("median", &MedianDetector{})
}

// Name returns the algorithm name
func (md *MedianDetector) Name() string {
	return "median"
}

// Detect finds outlier positions using the window-median method
func (md *MedianDetector) Detect(series []float64, opts SeriesOptions) ([]int, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	n := len(series)
	if n == 0 {
		return nil, nil
	}

	w := opts.WindowSize
	scratch := make([]float64, 0, w)

	var outliers []int
	for start := 0; start < n; start += w {
		stop := start + w
		if stop > n {
			stop = n
		}

		scratch = append(scratch[:0], series[start:stop]...)
		m := median(scratch)

		for idx := start; idx < stop; idx++ {
			diff := series[idx] - m
			if diff < 0 {
				diff = -diff
			}
			if diff >= opts.DistanceThreshold {
				outliers = append(outliers, idx)
			}
		}
	}
	return outliers, nil
}

// median sorts values in place and returns their middle value, averaging
// the two central elements for even lengths.
func median(values []float64) float64 {
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
