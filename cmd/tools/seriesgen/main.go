package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/dataset"
)

func main() {
	// Command line flags
	name := flag.String("name", "synthetic", "Dataset name")
	segments := flag.Int("segments", 3, "Number of segments")
	points := flag.Int("points", 500, "Points per segment")
	start := flag.String("start", "2024-01-01T00:00:00Z", "First timestamp (RFC3339)")
	step := flag.Duration("step", time.Hour, "Spacing between points")
	column := flag.String("column", "target", "Value column name")
	arCoefs := flag.String("ar", "1", "Comma-separated AR coefficients")
	scale := flag.Float64("scale", 1, "Noise standard deviation")
	seed := flag.Int64("seed", 1, "RNG seed")
	spikeEvery := flag.Int("spike-every", 0, "Inject a spike every N points (0 disables)")
	spikeScale := flag.Float64("spike-scale", 10, "Spike magnitude in units of scale")
	output := flag.String("output", "", "Output CSV file (default: stdout)")

	flag.Parse()

	startTime, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		log.Fatalf("Error: invalid -start %q, expected RFC3339\n", *start)
	}

	coefs, err := parseCoefs(*arCoefs)
	if err != nil {
		log.Fatalf("Error: %v\n", err)
	}

	fmt.Fprintf(os.Stderr, "=== DriftWatch Series Generator ===\n")
	fmt.Fprintf(os.Stderr, "Configuration:\n")
	fmt.Fprintf(os.Stderr, "  Name: %s\n", *name)
	fmt.Fprintf(os.Stderr, "  Segments: %d\n", *segments)
	fmt.Fprintf(os.Stderr, "  Points: %d\n", *points)
	fmt.Fprintf(os.Stderr, "  Start: %s\n", startTime.Format(time.RFC3339))
	fmt.Fprintf(os.Stderr, "  Step: %s\n", *step)
	fmt.Fprintf(os.Stderr, "  AR coefficients: %v\n", coefs)
	fmt.Fprintf(os.Stderr, "  Scale: %v\n", *scale)
	fmt.Fprintf(os.Stderr, "  Seed: %d\n", *seed)
	if *spikeEvery > 0 {
		fmt.Fprintf(os.Stderr, "  Spikes: every %d points at %vx scale\n", *spikeEvery, *spikeScale)
	}

	ds, err := dataset.GenerateAR(dataset.GenerateOptions{
		Name:       *name,
		Segments:   *segments,
		Points:     *points,
		Start:      startTime,
		Step:       *step,
		Column:     *column,
		ARCoefs:    coefs,
		Scale:      *scale,
		Seed:       *seed,
		SpikeEvery: *spikeEvery,
		SpikeScale: *spikeScale,
	})
	if err != nil {
		log.Fatalf("Error generating dataset: %v\n", err)
	}

	out := os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Error creating output file: %v\n", err)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	if err := dataset.WriteCSV(out, ds); err != nil {
		log.Fatalf("Error writing CSV: %v\n", err)
	}

	if *output != "" {
		fmt.Fprintf(os.Stderr, "Successfully exported %d points to: %s\n", ds.NumPoints(), *output)
	}
}

// parseCoefs parses a comma-separated coefficient list
func parseCoefs(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	coefs := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid AR coefficient %q", part)
		}
		coefs = append(coefs, v)
	}
	if len(coefs) == 0 {
		return nil, fmt.Errorf("at least one AR coefficient is required")
	}
	return coefs, nil
}
