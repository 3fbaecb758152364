package outliers

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/driftwatch/driftwatch/internal/dataset"
)

// GapPolicy controls how detection treats internal gaps, missing values
// strictly between a column's first and last observations. Dropping them
// silently splices the neighbors together, which distorts windows that
// straddle the gap.
type GapPolicy string

const (
	// GapCompact drops missing values and closes the gap silently.
	GapCompact GapPolicy = "compact"

	// GapFail rejects segments whose column has internal gaps.
	GapFail GapPolicy = "fail"
)

// Default detection parameters for a whole dataset.
const (
	DefaultColumn            = "target"
	DefaultMethod            = "density"
	DefaultDatasetWindowSize = 15
	DefaultDistanceCoef      = 3.0
)

// Options holds dataset-level detection parameters. The distance
// threshold is not set directly: each segment gets DistanceCoef times
// its own population standard deviation.
type Options struct {
	// Column is the value column to analyze.
	Column string

	// Method names the registered detector to run.
	Method string

	// WindowSize is the width of the sliding neighbor window.
	WindowSize int

	// DistanceCoef scales the per-segment standard deviation into the
	// closeness threshold.
	DistanceCoef float64

	// NNeighbors is the close-value count a point needs to be normal.
	NNeighbors int

	// Distance is the pairwise distance; nil means AbsoluteDifference.
	Distance DistanceFunc

	// GapPolicy decides whether internal gaps are compacted or fatal.
	GapPolicy GapPolicy

	// Workers is the number of segments detected concurrently.
	Workers int
}

// DefaultOptions returns the standard dataset-level parameters.
func DefaultOptions() Options {
	return Options{
		Column:       DefaultColumn,
		Method:       DefaultMethod,
		WindowSize:   DefaultDatasetWindowSize,
		DistanceCoef: DefaultDistanceCoef,
		NNeighbors:   DefaultNNeighbors,
		Distance:     AbsoluteDifference,
		GapPolicy:    GapCompact,
		Workers:      1,
	}
}

func (o *Options) setDefaults() {
	if o.Column == "" {
		o.Column = DefaultColumn
	}
	if o.Method == "" {
		o.Method = DefaultMethod
	}
	if o.WindowSize == 0 {
		o.WindowSize = DefaultDatasetWindowSize
	}
	if o.DistanceCoef == 0 {
		o.DistanceCoef = DefaultDistanceCoef
	}
	if o.NNeighbors == 0 {
		o.NNeighbors = DefaultNNeighbors
	}
	if o.GapPolicy == "" {
		o.GapPolicy = GapCompact
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
}

// Validate checks the parameters for a dataset-level detection run.
func (o Options) Validate() error {
	if o.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", o.WindowSize)
	}
	if o.DistanceCoef <= 0 {
		return fmt.Errorf("distance coef must be positive, got %v", o.DistanceCoef)
	}
	if o.NNeighbors <= 0 {
		return fmt.Errorf("n_neighbors must be positive, got %d", o.NNeighbors)
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	switch o.GapPolicy {
	case GapCompact, GapFail:
	default:
		return fmt.Errorf("unknown gap policy: %s", o.GapPolicy)
	}
	return nil
}

// Detect runs outlier detection over every segment of the dataset and
// maps flagged positions back to their timestamps. Missing values are
// dropped before detection with timestamps filtered in lockstep, so
// returned timestamps follow the post-drop alignment. Segments with a
// zero standard deviation are skipped; that is the only silent skip,
// any other failure aborts the whole run. Segments without outliers do
// not appear in the result.
func Detect(ds *dataset.Dataset, opts Options) (map[string][]time.Time, error) {
	opts.setDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	detector, err := Get(opts.Method)
	if err != nil {
		return nil, err
	}

	segments := ds.Segments()
	result := make(map[string][]time.Time)

	if opts.Workers == 1 {
		for _, segment := range segments {
			stamps, err := detectSegment(ds, segment, detector, opts)
			if err != nil {
				return nil, err
			}
			if len(stamps) > 0 {
				result[segment] = stamps
			}
		}
		return result, nil
	}

	// Segments are independent, so detection fans out over a bounded
	// worker set; the result map is the only shared state.
	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for segment := range jobs {
				stamps, err := detectSegment(ds, segment, detector, opts)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
				} else if len(stamps) > 0 {
					result[segment] = stamps
				}
				mu.Unlock()
			}
		}()
	}
	for _, segment := range segments {
		jobs <- segment
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// detectSegment runs one segment through the detector and returns the
// timestamps of flagged positions.
func detectSegment(ds *dataset.Dataset, segment string, detector Detector, opts Options) ([]time.Time, error) {
	if opts.GapPolicy == GapFail {
		gaps, err := ds.InternalGaps(segment, opts.Column)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", segment, err)
		}
		if gaps > 0 {
			return nil, fmt.Errorf("segment %s: column %s has %d internal gaps", segment, opts.Column, gaps)
		}
	}

	times, values, err := ds.ColumnSeries(segment, opts.Column)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", segment, err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	// A constant segment cannot be judged against a multiplicative
	// threshold.
	std := stat.PopStdDev(values, nil)
	if std == 0 {
		return nil, nil
	}

	positions, err := detector.Detect(values, SeriesOptions{
		WindowSize:        opts.WindowSize,
		DistanceThreshold: opts.DistanceCoef * std,
		NNeighbors:        opts.NNeighbors,
		Distance:          opts.Distance,
	})
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", segment, err)
	}
	if len(positions) == 0 {
		return nil, nil
	}

	stamps := make([]time.Time, len(positions))
	for i, pos := range positions {
		stamps[i] = times[pos]
	}
	return stamps, nil
}

// SkippedSegments counts the segments Detect skips for a column: those
// whose post-drop series is empty or has zero population standard
// deviation.
func SkippedSegments(ds *dataset.Dataset, column string) (int, error) {
	skipped := 0
	for _, segment := range ds.Segments() {
		_, values, err := ds.ColumnSeries(segment, column)
		if err != nil {
			return 0, fmt.Errorf("segment %s: %w", segment, err)
		}
		if len(values) == 0 || stat.PopStdDev(values, nil) == 0 {
			skipped++
		}
	}
	return skipped, nil
}
