package dataset

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateOptions controls synthetic dataset generation
type GenerateOptions struct {
	Name     string        // Dataset name (default "synthetic")
	Segments int           // Number of segments (default 1)
	Points   int           // Points per segment (default 100)
	Start    time.Time     // First timestamp (default 2024-01-01 UTC)
	Step     time.Duration // Spacing between points (default 1h)
	Column   string        // Value column name (default "target")

	ARCoefs []float64 // AR coefficients (default {1}, a random walk)
	Scale   float64   // Noise standard deviation (default 1)
	Seed    int64     // RNG seed; fixed seed gives a fixed dataset

	SpikeEvery int     // Inject a spike every N points (0 disables)
	SpikeScale float64 // Spike magnitude in units of Scale (default 10)
}

func (o *GenerateOptions) setDefaults() {
	if o.Name == "" {
		o.Name = "synthetic"
	}
	if o.Segments <= 0 {
		o.Segments = 1
	}
	if o.Points <= 0 {
		o.Points = 100
	}
	if o.Start.IsZero() {
		o.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.Step <= 0 {
		o.Step = time.Hour
	}
	if o.Column == "" {
		o.Column = "target"
	}
	if len(o.ARCoefs) == 0 {
		o.ARCoefs = []float64{1}
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.SpikeScale <= 0 {
		o.SpikeScale = 10
	}
}

// GenerateAR builds a synthetic multi-segment dataset from an AR process
// x[t] = Σ coef[i]·x[t−1−i] + noise. The default coefficients produce a
// random walk. Spikes, when enabled, alternate sign.
func GenerateAR(opts GenerateOptions) (*Dataset, error) {
	opts.setDefaults()

	rng := rand.New(rand.NewSource(opts.Seed))
	builder := NewBuilder(opts.Name)

	for s := 0; s < opts.Segments; s++ {
		segment := fmt.Sprintf("segment_%d", s)
		history := make([]float64, 0, opts.Points)

		for t := 0; t < opts.Points; t++ {
			value := rng.NormFloat64() * opts.Scale
			for i, coef := range opts.ARCoefs {
				lag := t - 1 - i
				if lag < 0 {
					break
				}
				value += coef * history[lag]
			}
			history = append(history, value)

			// Spikes are transient: they distort the observation but not
			// the process history, so the series recovers immediately.
			observed := value
			if opts.SpikeEvery > 0 && (t+1)%opts.SpikeEvery == 0 {
				sign := 1.0
				if rng.Intn(2) == 0 {
					sign = -1.0
				}
				observed += sign * opts.SpikeScale * opts.Scale
			}

			ts := opts.Start.Add(time.Duration(t) * opts.Step)
			if err := builder.Add(segment, ts, map[string]float64{opts.Column: observed}); err != nil {
				return nil, err
			}
		}
	}

	return builder.Build()
}
