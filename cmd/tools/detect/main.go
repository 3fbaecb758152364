package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/analytics/outliers"
	"github.com/driftwatch/driftwatch/internal/dataset"
)

// result is the JSON document the tool prints: one entry per flagged
// segment plus run totals.
type result struct {
	Dataset         string              `json:"dataset"`
	Column          string              `json:"column"`
	Method          string              `json:"method"`
	Outliers        map[string][]string `json:"outliers"`
	SegmentsFlagged int                 `json:"segments_flagged"`
	SegmentsSkipped int                 `json:"segments_skipped"`
	TotalOutliers   int                 `json:"total_outliers"`
}

func main() {
	// Command line flags mirror the detection options
	input := flag.String("input", "", "Input dataset file (.csv or .snap)")
	format := flag.String("format", "auto", "Input format (auto, csv, snapshot)")
	column := flag.String("column", "target", "Column to analyze")
	method := flag.String("method", "density", "Detection method (density, median)")
	windowSize := flag.Int("window", 15, "Sliding window size")
	distanceCoef := flag.Float64("coef", 3, "Distance threshold = coef * population std")
	nNeighbors := flag.Int("neighbors", 3, "Min close neighbors for a normal point")
	gapPolicy := flag.String("gap-policy", "compact", "Internal gap handling (compact, fail)")
	workers := flag.Int("workers", 1, "Concurrent segment workers")
	output := flag.String("output", "", "Output JSON file (default: stdout)")

	flag.Parse()

	// Validate required parameters
	if *input == "" {
		log.Fatal("Error: -input parameter is required")
	}

	ds, err := readDataset(*input, *format)
	if err != nil {
		log.Fatalf("Error reading dataset: %v\n", err)
	}

	fmt.Fprintf(os.Stderr, "Loaded dataset %q: %d segments, %d points\n",
		ds.Name(), len(ds.Segments()), ds.NumPoints())

	opts := outliers.Options{
		Column:       *column,
		Method:       *method,
		WindowSize:   *windowSize,
		DistanceCoef: *distanceCoef,
		NNeighbors:   *nNeighbors,
		GapPolicy:    outliers.GapPolicy(*gapPolicy),
		Workers:      *workers,
	}

	detected, err := outliers.Detect(ds, opts)
	if err != nil {
		log.Fatalf("Error running detection: %v\n", err)
	}
	skipped, err := outliers.SkippedSegments(ds, *column)
	if err != nil {
		log.Fatalf("Error counting skipped segments: %v\n", err)
	}

	res := result{
		Dataset:         ds.Name(),
		Column:          *column,
		Method:          *method,
		Outliers:        make(map[string][]string, len(detected)),
		SegmentsFlagged: len(detected),
		SegmentsSkipped: skipped,
	}
	for segment, stamps := range detected {
		formatted := make([]string, len(stamps))
		for i, ts := range stamps {
			formatted[i] = ts.UTC().Format(time.RFC3339)
		}
		res.Outliers[segment] = formatted
		res.TotalOutliers += len(stamps)
	}

	if err := writeResult(*output, res); err != nil {
		log.Fatalf("Error writing result: %v\n", err)
	}

	segments := make([]string, 0, len(detected))
	for segment := range detected {
		segments = append(segments, segment)
	}
	sort.Strings(segments)
	for _, segment := range segments {
		fmt.Fprintf(os.Stderr, "  %s: %d outliers\n", segment, len(detected[segment]))
	}
	fmt.Fprintf(os.Stderr, "Flagged %d of %d segments (%d skipped)\n",
		len(detected), len(ds.Segments()), skipped)
}

// readDataset loads a dataset from CSV or snapshot form. With -format
// auto the file extension decides.
func readDataset(path, format string) (*dataset.Dataset, error) {
	if format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = "csv"
		case ".snap":
			format = "snapshot"
		default:
			return nil, fmt.Errorf("cannot infer format of %s, use -format", path)
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch format {
	case "csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()
		return dataset.ReadCSV(file, name)

	case "snapshot":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return dataset.DecodeSnapshot(data)

	default:
		return nil, fmt.Errorf("invalid format %q. Valid options: auto, csv, snapshot", format)
	}
}

// writeResult marshals the result and writes it to the output file, or
// stdout when none is given.
func writeResult(path string, res result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
