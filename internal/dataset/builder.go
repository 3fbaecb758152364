package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Builder accumulates points and assembles them into a Dataset.
// Rows are keyed by (segment, instant); observations for the same row
// merge into one row, duplicate observations for the same column are
// rejected. The built dataset carries the union of all seen columns in
// every segment, with NaN where a row has no observation.
type Builder struct {
	name    string
	rows    map[string]map[int64]map[string]float64
	instant map[int64]time.Time
	columns map[string]struct{}
	points  int
}

// NewBuilder creates a builder for a named dataset
func NewBuilder(name string) *Builder {
	return &Builder{
		name:    name,
		rows:    make(map[string]map[int64]map[string]float64),
		instant: make(map[int64]time.Time),
		columns: make(map[string]struct{}),
	}
}

// Add records the observations of one point. A nil or empty values map
// is rejected; NaN observations are rejected (missing values are
// expressed by absence, not by NaN payloads).
func (b *Builder) Add(segment string, ts time.Time, values map[string]float64) error {
	if segment == "" {
		return fmt.Errorf("segment name is required")
	}
	if len(values) == 0 {
		return fmt.Errorf("point for segment %s has no values", segment)
	}

	seg, ok := b.rows[segment]
	if !ok {
		seg = make(map[int64]map[string]float64)
		b.rows[segment] = seg
	}

	key := ts.UnixNano()
	row, ok := seg[key]
	if !ok {
		row = make(map[string]float64)
		seg[key] = row
		b.instant[key] = ts
		b.points++
	}

	for column, value := range values {
		if column == "" {
			return fmt.Errorf("column name is required")
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("non-finite value for segment %s column %s at %s",
				segment, column, ts.Format(time.RFC3339))
		}
		if _, dup := row[column]; dup {
			return fmt.Errorf("duplicate observation for segment %s column %s at %s",
				segment, column, ts.Format(time.RFC3339))
		}
		row[column] = value
		b.columns[column] = struct{}{}
	}

	return nil
}

// Build assembles the dataset. It fails on an empty builder.
func (b *Builder) Build() (*Dataset, error) {
	if b.name == "" {
		return nil, fmt.Errorf("dataset name is required")
	}
	if len(b.rows) == 0 {
		return nil, fmt.Errorf("dataset has no points")
	}

	columns := make([]string, 0, len(b.columns))
	for column := range b.columns {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	frames := make(map[string]*Frame, len(b.rows))
	for segment, seg := range b.rows {
		keys := make([]int64, 0, len(seg))
		for key := range seg {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		f := &Frame{
			times:   make([]time.Time, len(keys)),
			columns: make(map[string][]float64, len(columns)),
		}
		for _, column := range columns {
			f.columns[column] = make([]float64, len(keys))
		}

		for i, key := range keys {
			f.times[i] = b.instant[key]
			row := seg[key]
			for _, column := range columns {
				if v, ok := row[column]; ok {
					f.columns[column][i] = v
				} else {
					f.columns[column][i] = math.NaN()
				}
			}
		}

		frames[segment] = f
	}

	return &Dataset{name: b.name, frames: frames}, nil
}

// NumPoints returns the number of distinct rows added so far
func (b *Builder) NumPoints() int {
	return b.points
}
