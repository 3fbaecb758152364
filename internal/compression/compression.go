// Package compression provides the codecs used for snapshot payloads on
// disk. The Algorithm byte is persisted in the snapshot header, so the
// numeric values are part of the file format and must not change.
package compression

import "fmt"

// Algorithm identifies a payload codec.
type Algorithm uint8

const (
	None   Algorithm = 0
	Snappy Algorithm = 1
)

// String returns the configuration name for the algorithm.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	}
	return fmt.Sprintf("algorithm(%d)", uint8(a))
}

// ParseAlgorithm maps a configuration string to an Algorithm. The empty
// string selects Snappy, the default codec.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "none":
		return None, nil
	case "snappy", "":
		return Snappy, nil
	}
	return None, fmt.Errorf("unsupported compression algorithm: %s", name)
}

// Compressor encodes and decodes snapshot payloads.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() Algorithm
}

// GetCompressor returns the codec for algo.
func GetCompressor(algo Algorithm) (Compressor, error) {
	switch algo {
	case None:
		return noneCompressor{}, nil
	case Snappy:
		return snappyCompressor{}, nil
	}
	return nil, fmt.Errorf("unsupported compression algorithm: %d", algo)
}

// noneCompressor stores payloads verbatim. Useful when inspecting
// snapshot files by hand.
type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) Algorithm() Algorithm                   { return None }
