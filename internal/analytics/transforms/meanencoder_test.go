package transforms

import (
	"math"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/dataset"
)

var meanBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAddExpandingMean(t *testing.T) {
	ds := buildDaily(t, meanBase, []float64{2, 4, 6, 8})

	if err := AddExpandingMean(ds, MeanEncoderOptions{}); err != nil {
		t.Fatal(err)
	}

	got := columnValues(t, ds, "main", "target_mean")
	if !math.IsNaN(got[0]) {
		t.Errorf("expected first row missing, got %v", got[0])
	}
	want := []float64{0, 2, 3, 4}
	for i := 1; i < len(want); i++ {
		if got[i] != want[i] {
			t.Errorf("row %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestAddExpandingMeanSkipsMissing(t *testing.T) {
	b := dataset.NewBuilder("gappy")
	values := []float64{2, 4, 0, 6}
	for i, v := range values {
		obs := map[string]float64{"filler": 1}
		if i != 2 {
			obs["target"] = v
		}
		if err := b.Add("main", meanBase.AddDate(0, 0, i), obs); err != nil {
			t.Fatal(err)
		}
	}
	ds, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	if err := AddExpandingMean(ds, MeanEncoderOptions{}); err != nil {
		t.Fatal(err)
	}

	// The missing row inherits the running mean without updating it, so
	// the following row sees the same history.
	got := columnValues(t, ds, "main", "target_mean")
	if !math.IsNaN(got[0]) {
		t.Errorf("expected first row missing, got %v", got[0])
	}
	if got[1] != 2 || got[2] != 3 || got[3] != 3 {
		t.Errorf("expected [NaN 2 3 3], got %v", got)
	}
}

func TestAddExpandingMeanPerSegment(t *testing.T) {
	b := dataset.NewBuilder("multi")
	for i, v := range []float64{10, 20} {
		if err := b.Add("a", meanBase.AddDate(0, 0, i), map[string]float64{"target": v}); err != nil {
			t.Fatal(err)
		}
	}
	for i, v := range []float64{100, 200} {
		if err := b.Add("b", meanBase.AddDate(0, 0, i), map[string]float64{"target": v}); err != nil {
			t.Fatal(err)
		}
	}
	ds, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	if err := AddExpandingMean(ds, MeanEncoderOptions{}); err != nil {
		t.Fatal(err)
	}

	a := columnValues(t, ds, "a", "target_mean")
	bb := columnValues(t, ds, "b", "target_mean")
	if a[1] != 10 {
		t.Errorf("segment a: expected 10, got %v", a[1])
	}
	if bb[1] != 100 {
		t.Errorf("segment b: expected 100, got %v", bb[1])
	}
}

func TestAddExpandingMeanCustomColumns(t *testing.T) {
	ds := buildDaily(t, meanBase, []float64{1, 3})

	opts := MeanEncoderOptions{InColumn: "target", OutColumn: "encoded"}
	if err := AddExpandingMean(ds, opts); err != nil {
		t.Fatal(err)
	}

	if !ds.HasColumn("encoded") {
		t.Error("expected column 'encoded' to exist")
	}
}

func TestAddExpandingMeanUnknownColumn(t *testing.T) {
	ds := buildDaily(t, meanBase, []float64{1, 3})

	err := AddExpandingMean(ds, MeanEncoderOptions{InColumn: "pressure"})
	if err == nil {
		t.Fatal("expected error for unknown column")
	}

	// A failed transform must not leave partial columns behind.
	if ds.HasColumn("pressure_mean") {
		t.Error("expected dataset to stay untouched after failure")
	}
}
