package outliers

// DensityDetector flags points whose neighborhood is sparse: a point is
// an outlier when no window placement containing it holds at least
// NNeighbors other values within DistanceThreshold of it.
type DensityDetector struct{}

func init() {
	Register("density", &DensityDetector{})
}

// Name returns the algorithm name
func (dd *DensityDetector) Name() string {
	return "density"
}

// Detect finds outlier positions using the density method
func (dd *DensityDetector) Detect(series []float64, opts SeriesOptions) ([]int, error) {
	return OutlierPositions(series, opts)
}

// OutlierPositions classifies every position of series with the sliding
// window neighbor-count rule and returns the outlier positions in
// ascending order.
//
// For position idx the window placements containing it start at
// max(0, idx-w) .. max(0, min(idx, n-w)), each w wide. Closeness flags
// over the union of those placements are computed once and shared
// between placements through a running sum, so the whole pass costs
// O(n*w) distance evaluations instead of O(n*w^2). A position is kept
// as soon as one placement holds NNeighbors close values; counting is
// exact for every placement that contains the point itself.
func OutlierPositions(series []float64, opts SeriesOptions) ([]int, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	n := len(series)
	if n == 0 {
		return nil, nil
	}

	distance := opts.Distance
	if distance == nil {
		distance = AbsoluteDifference
	}
	w := opts.WindowSize

	// Placement count per position is at most w+1, so the union of all
	// placements spans at most 2w values (never more than the series).
	maxSpan := 2 * w
	if maxSpan > n {
		maxSpan = n
	}
	closeness := make([]int, maxSpan)
	numClose := make([]int, maxSpan)

	var outliers []int
	for idx := 0; idx < n; idx++ {
		item := series[idx]

		start := idx - w
		if start < 0 {
			start = 0
		}
		end := idx
		if end > n-w {
			end = n - w
		}
		if end < 0 {
			end = 0
		}
		end++

		// Placements start at start..end-1; their union is the slice
		// [start, start+w+delta-1), clamped when w exceeds the series.
		delta := end - start
		stop := start + w + delta - 1
		if stop > n {
			stop = n
		}
		span := stop - start

		for k := 0; k < span; k++ {
			if distance(series[start+k], item) < opts.DistanceThreshold {
				closeness[k] = 1
			} else {
				closeness[k] = 0
			}
		}
		numClose[0] = closeness[0]
		for k := 1; k < span; k++ {
			numClose[k] = numClose[k-1] + closeness[k]
		}

		outlier := true
		for d := 0; d < delta; d++ {
			hi := w + d - 1
			if hi > span-1 {
				hi = span - 1
			}
			count := numClose[hi] - numClose[d]
			if start+d != idx {
				// Add the placement's left edge back in and drop the
				// self match in one step.
				count += closeness[d] - 1
			}
			if count >= opts.NNeighbors {
				outlier = false
				break
			}
		}
		if outlier {
			outliers = append(outliers, idx)
		}
	}
	return outliers, nil
}
