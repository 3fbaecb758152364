// Package outliers implements windowed outlier detection over numeric
// series: a density detector that counts close neighbors across every
// window placement containing a point, and a median detector that
// compares points against their window median. Detection over whole
// datasets derives per-segment thresholds from the segment's own spread.
package outliers

import (
	"fmt"
	"math"
	"sort"
)

// DistanceFunc measures how far apart two observations are. It must
// return a non-negative value; it does not have to be symmetric.
type DistanceFunc func(a, b float64) float64

// AbsoluteDifference is the default distance: |a - b|.
func AbsoluteDifference(a, b float64) float64 {
	return math.Abs(a - b)
}

// Default detection parameters for a single series.
const (
	DefaultWindowSize        = 7
	DefaultDistanceThreshold = 10.0
	DefaultNNeighbors        = 3
)

// SeriesOptions holds per-series detection parameters.
type SeriesOptions struct {
	// WindowSize is the width of the sliding neighbor window.
	WindowSize int

	// DistanceThreshold is the strict upper bound below which two
	// values count as close.
	DistanceThreshold float64

	// NNeighbors is how many close values (excluding the point itself)
	// a point needs inside some window placement to be normal.
	NNeighbors int

	// Distance is the pairwise distance; nil means AbsoluteDifference.
	Distance DistanceFunc
}

// DefaultSeriesOptions returns the standard parameters.
func DefaultSeriesOptions() SeriesOptions {
	return SeriesOptions{
		WindowSize:        DefaultWindowSize,
		DistanceThreshold: DefaultDistanceThreshold,
		NNeighbors:        DefaultNNeighbors,
		Distance:          AbsoluteDifference,
	}
}

// Validate checks the parameters for a single detection run.
func (o SeriesOptions) Validate() error {
	if o.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", o.WindowSize)
	}
	if o.DistanceThreshold < 0 || math.IsNaN(o.DistanceThreshold) {
		return fmt.Errorf("distance threshold must be non-negative, got %v", o.DistanceThreshold)
	}
	if o.NNeighbors <= 0 {
		return fmt.Errorf("n_neighbors must be positive, got %d", o.NNeighbors)
	}
	return nil
}

// Detector is a per-series outlier detection algorithm. Detect returns
// the outlier positions of series in ascending order.
type Detector interface {
	// Name returns the algorithm name used for registry lookup.
	Name() string

	// Detect finds outlier positions in the given series.
	Detect(series []float64, opts SeriesOptions) ([]int, error)
}

// Registry holds available detectors by name.
var detectorRegistry = make(map[string]Detector)

// Register adds a detector to the registry.
func Register(name string, detector Detector) {
	detectorRegistry[name] = detector
}

// Get returns a detector by name.
func Get(name string) (Detector, error) {
	if detector, ok := detectorRegistry[name]; ok {
		return detector, nil
	}
	return nil, fmt.Errorf("unknown outlier detector: %s", name)
}

// List returns the sorted names of all registered detectors.
func List() []string {
	names := make([]string, 0, len(detectorRegistry))
	for name := range detectorRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
