package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// CSV layout: a header row "timestamp,segment,<column>..." followed by
// one row per (segment, timestamp). Timestamps are RFC 3339; an empty
// cell marks a missing observation.

// ReadCSV parses a dataset from CSV
func ReadCSV(r io.Reader, name string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 3 || header[0] != "timestamp" || header[1] != "segment" {
		return nil, fmt.Errorf("invalid header: want timestamp,segment,<columns...>")
	}
	columns := header[2:]

	builder := NewBuilder(name)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		line++

		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(record))
		}

		ts, err := time.Parse(time.RFC3339Nano, record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp %q: %w", line, record[0], err)
		}

		values := make(map[string]float64)
		for i, column := range columns {
			cell := record[i+2]
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q for column %s: %w", line, cell, column, err)
			}
			values[column] = v
		}
		if len(values) == 0 {
			// A fully-missing row still defines the timestamp
			continue
		}

		if err := builder.Add(record[1], ts, values); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	return builder.Build()
}

// WriteCSV writes a dataset as CSV
func WriteCSV(w io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(w)

	columns := ds.Columns()
	header := append([]string{"timestamp", "segment"}, columns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for _, segment := range ds.Segments() {
		f, err := ds.Frame(segment)
		if err != nil {
			return err
		}

		cols := make([][]float64, len(columns))
		for j, column := range columns {
			if cols[j], err = f.Column(column); err != nil {
				return err
			}
		}

		for i, ts := range f.Times() {
			record[0] = ts.Format(time.RFC3339Nano)
			record[1] = segment
			for j := range columns {
				if math.IsNaN(cols[j][i]) {
					record[j+2] = ""
				} else {
					record[j+2] = strconv.FormatFloat(cols[j][i], 'g', -1, 64)
				}
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
