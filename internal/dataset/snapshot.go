package dataset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/driftwatch/driftwatch/internal/compression"
)

const (
	// SnapshotMagic identifies dataset snapshot files ("DWSN")
	SnapshotMagic uint32 = 0x4E535744

	// SnapshotVersion is the current snapshot format version
	SnapshotVersion byte = 1

	snapshotHeaderSize = 6 // 4 bytes magic + version + algorithm
)

// snapshotFrame is the wire form of one segment. Missing observations
// are encoded as null (JSON has no NaN).
type snapshotFrame struct {
	Times   []time.Time           `json:"times"`
	Columns map[string][]*float64 `json:"columns"`
}

type snapshotEnvelope struct {
	Name     string                   `json:"name"`
	Segments map[string]snapshotFrame `json:"segments"`
}

// EncodeSnapshot serializes a dataset:
// 4-byte magic | version | compression algorithm | compressed JSON body.
func EncodeSnapshot(ds *Dataset, algo compression.Algorithm) ([]byte, error) {
	compressor, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}

	env := snapshotEnvelope{
		Name:     ds.Name(),
		Segments: make(map[string]snapshotFrame, len(ds.frames)),
	}

	for segment, f := range ds.frames {
		sf := snapshotFrame{
			Times:   f.times,
			Columns: make(map[string][]*float64, len(f.columns)),
		}
		for column, values := range f.columns {
			cells := make([]*float64, len(values))
			for i := range values {
				if !math.IsNaN(values[i]) {
					v := values[i]
					cells[i] = &v
				}
			}
			sf.Columns[column] = cells
		}
		env.Segments[segment] = sf
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot body: %w", err)
	}

	compressed, err := compressor.Compress(body)
	if err != nil {
		return nil, fmt.Errorf("failed to compress snapshot body: %w", err)
	}

	out := make([]byte, snapshotHeaderSize, snapshotHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:4], SnapshotMagic)
	out[4] = SnapshotVersion
	out[5] = byte(algo)
	return append(out, compressed...), nil
}

// DecodeSnapshot deserializes a dataset snapshot
func DecodeSnapshot(data []byte) (*Dataset, error) {
	if len(data) < snapshotHeaderSize {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}

	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != SnapshotMagic {
		return nil, fmt.Errorf("invalid snapshot magic: 0x%X", magic)
	}
	if data[4] != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", data[4])
	}

	compressor, err := compression.GetCompressor(compression.Algorithm(data[5]))
	if err != nil {
		return nil, err
	}

	body, err := compressor.Decompress(data[snapshotHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot body: %w", err)
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot body: %w", err)
	}
	if env.Name == "" {
		return nil, fmt.Errorf("snapshot has no dataset name")
	}

	frames := make(map[string]*Frame, len(env.Segments))
	for segment, sf := range env.Segments {
		f := &Frame{
			times:   sf.Times,
			columns: make(map[string][]float64, len(sf.Columns)),
		}
		for column, cells := range sf.Columns {
			if len(cells) != len(sf.Times) {
				return nil, fmt.Errorf("segment %s column %s has %d cells, want %d",
					segment, column, len(cells), len(sf.Times))
			}
			values := make([]float64, len(cells))
			for i, cell := range cells {
				if cell == nil {
					values[i] = math.NaN()
				} else {
					values[i] = *cell
				}
			}
			f.columns[column] = values
		}
		frames[segment] = f
	}

	return &Dataset{name: env.Name, frames: frames}, nil
}
