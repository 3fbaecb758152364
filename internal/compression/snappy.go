package compression

import (
	"fmt"

	"github.com/golang/snappy"
)

// snappyCompressor encodes payloads with the snappy block format.
// Snapshot JSON is repetitive enough to shrink well while staying cheap
// to decode on every read.
type snappyCompressor struct{}

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

func (snappyCompressor) Algorithm() Algorithm {
	return Snappy
}
