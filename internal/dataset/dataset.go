package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrSegmentNotFound is returned when a segment name is unknown
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrColumnNotFound is returned when a column name is unknown
	ErrColumnNotFound = errors.New("column not found")

	// ErrColumnExists is returned when adding a column that is already present
	ErrColumnExists = errors.New("column already exists")
)

// Dataset is an immutable-by-convention multi-segment time series frame.
// Every segment carries the same column set; missing observations are NaN.
type Dataset struct {
	name   string
	frames map[string]*Frame
}

// Frame holds one segment's observations: sorted unique timestamps plus
// one float64 slice per column, all of equal length.
type Frame struct {
	times   []time.Time
	columns map[string][]float64
}

// Name returns the dataset name
func (d *Dataset) Name() string {
	return d.name
}

// Segments returns the segment names in sorted order
func (d *Dataset) Segments() []string {
	names := make([]string, 0, len(d.frames))
	for name := range d.frames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Columns returns the column names in sorted order.
// All segments share the same column set.
func (d *Dataset) Columns() []string {
	for _, f := range d.frames {
		names := make([]string, 0, len(f.columns))
		for name := range f.columns {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}
	return nil
}

// HasColumn reports whether the dataset carries the named column
func (d *Dataset) HasColumn(column string) bool {
	for _, f := range d.frames {
		_, ok := f.columns[column]
		return ok
	}
	return false
}

// Frame returns the frame for a segment
func (d *Dataset) Frame(segment string) (*Frame, error) {
	f, ok := d.frames[segment]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, segment)
	}
	return f, nil
}

// NumPoints returns the total number of rows across all segments
func (d *Dataset) NumPoints() int {
	total := 0
	for _, f := range d.frames {
		total += len(f.times)
	}
	return total
}

// ColumnSeries returns the aligned (timestamps, values) pair for one
// segment column with missing entries removed. Dropping is positional:
// a NaN anywhere in the sequence removes that row from both slices, so
// the result is always gap-free and index-aligned. The returned slices
// are fresh copies.
func (d *Dataset) ColumnSeries(segment, column string) ([]time.Time, []float64, error) {
	f, err := d.Frame(segment)
	if err != nil {
		return nil, nil, err
	}

	col, ok := f.columns[column]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	times := make([]time.Time, 0, len(col))
	values := make([]float64, 0, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		times = append(times, f.times[i])
		values = append(values, v)
	}

	return times, values, nil
}

// InternalGaps counts missing entries strictly inside the observed range
// of a segment column, i.e. NaNs that have a non-missing value both
// somewhere before and somewhere after them. Leading and trailing
// missing runs do not count.
func (d *Dataset) InternalGaps(segment, column string) (int, error) {
	f, err := d.Frame(segment)
	if err != nil {
		return 0, err
	}

	col, ok := f.columns[column]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	first, last := -1, -1
	for i, v := range col {
		if !math.IsNaN(v) {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 {
		return 0, nil
	}

	gaps := 0
	for i := first + 1; i < last; i++ {
		if math.IsNaN(col[i]) {
			gaps++
		}
	}
	return gaps, nil
}

// AddColumn attaches a new column to a segment. The values slice must
// match the segment's row count; the column must not already exist in
// any segment (column sets stay uniform across segments, so callers add
// the column to every segment).
func (d *Dataset) AddColumn(segment, column string, values []float64) error {
	if column == "" {
		return fmt.Errorf("column name is required")
	}

	f, err := d.Frame(segment)
	if err != nil {
		return err
	}

	if _, ok := f.columns[column]; ok {
		return fmt.Errorf("%w: %s", ErrColumnExists, column)
	}

	if len(values) != len(f.times) {
		return fmt.Errorf("column %s has %d values, segment %s has %d rows",
			column, len(values), segment, len(f.times))
	}

	f.columns[column] = values
	return nil
}

// Len returns the number of rows in the frame
func (f *Frame) Len() int {
	return len(f.times)
}

// Times returns the frame's timestamps. The slice is shared; callers
// must not modify it.
func (f *Frame) Times() []time.Time {
	return f.times
}

// Column returns the raw values (including NaN for missing) of a column.
// The slice is shared; callers must not modify it.
func (f *Frame) Column(column string) ([]float64, error) {
	col, ok := f.columns[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	return col, nil
}
