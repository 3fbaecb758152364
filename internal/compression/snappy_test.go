package compression

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestSnappy_Algorithm(t *testing.T) {
	if got := snappyCompressor{}.Algorithm(); got != Snappy {
		t.Errorf("Expected algorithm Snappy (%d), got %d", Snappy, got)
	}
}

// snapshotPayload builds the kind of JSON document the store compresses:
// repeated column keys, RFC3339 timestamps, nulls for missing values.
func snapshotPayload(t *testing.T, points int) []byte {
	t.Helper()

	type row struct {
		Timestamp string   `json:"timestamp"`
		Target    *float64 `json:"target"`
	}

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]row, 0, points)
	for i := 0; i < points; i++ {
		v := math.Sin(float64(i) / 12.0)
		r := row{Timestamp: start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)}
		if i%17 != 0 {
			r.Target = &v
		}
		rows = append(rows, r)
	}

	data, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("Failed to build payload: %v", err)
	}
	return data
}

func TestSnappy_SnapshotRoundTrip(t *testing.T) {
	compressor := snappyCompressor{}
	original := snapshotPayload(t, 500)

	compressed, err := compressor.Compress(original)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(original) {
		t.Errorf("Expected snapshot JSON to shrink, got %d -> %d bytes", len(original), len(compressed))
	}

	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(original, decompressed) {
		t.Error("Decompressed payload does not match original")
	}
}

func TestSnappy_EmptyData(t *testing.T) {
	compressor := snappyCompressor{}

	compressed, err := compressor.Compress(nil)
	if err != nil {
		t.Fatalf("Compress empty data failed: %v", err)
	}
	if len(compressed) != 0 {
		t.Errorf("Expected empty compressed data, got length %d", len(compressed))
	}

	decompressed, err := compressor.Decompress([]byte{})
	if err != nil {
		t.Fatalf("Decompress empty data failed: %v", err)
	}
	if len(decompressed) != 0 {
		t.Errorf("Expected empty decompressed data, got length %d", len(decompressed))
	}
}

// Raw float64 bits barely compress; the round trip must still be exact.
func TestSnappy_RawSeriesBits(t *testing.T) {
	compressor := snappyCompressor{}

	original := make([]byte, 0, 8*1024)
	value := 42.0
	for i := 0; i < 1024; i++ {
		value += math.Sin(value) * 0.7
		original = binary.LittleEndian.AppendUint64(original, math.Float64bits(value))
	}

	compressed, err := compressor.Compress(original)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(original, decompressed) {
		t.Error("Decompressed series bits do not match original")
	}
}

func TestSnappy_InvalidCompressedData(t *testing.T) {
	compressor := snappyCompressor{}

	if _, err := compressor.Decompress([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err == nil {
		t.Error("Expected error when decompressing invalid data, got nil")
	}
}
