package transforms

import (
	"testing"
	"time"
)

func TestTransformInterface(t *testing.T) {
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		transform Transform
		outColumn string
	}{
		{"holiday defaults", &Holiday{Options: HolidayOptions{Country: "us"}}, "holiday"},
		{"holiday custom column", &Holiday{Options: HolidayOptions{Country: "gb", Column: "bank_holiday"}}, "bank_holiday"},
		{"expanding mean defaults", &ExpandingMean{}, "target_mean"},
		{"expanding mean custom", &ExpandingMean{Options: MeanEncoderOptions{InColumn: "target", OutColumn: "enc"}}, "enc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.transform.OutColumn(); got != tt.outColumn {
				t.Errorf("expected out column %q, got %q", tt.outColumn, got)
			}

			ds := buildDaily(t, start, []float64{1, 2, 3, 4})
			if err := tt.transform.Apply(ds); err != nil {
				t.Fatal(err)
			}
			if !ds.HasColumn(tt.outColumn) {
				t.Errorf("expected column %q after apply", tt.outColumn)
			}
		})
	}
}

func TestTransformNames(t *testing.T) {
	names := Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 transforms, got %d", len(names))
	}
	if names[0] != "holiday" || names[1] != "expanding_mean" {
		t.Errorf("unexpected transform names: %v", names)
	}
}
