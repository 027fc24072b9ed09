package sketch

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Snapshot layout, all integers little-endian:
//
//	+-------+---------+------+----------+-------+-------+------+-------------+------------------+
//	| Magic | Version | Kind | Reserved | Width | Depth | Seed | TotalWeight | Counters...      |
//	| 4B    | 2B      | 1B   | 1B       | 4B    | 4B    | 8B   | 8B          | Depth*Width*4B   |
//	+-------+---------+------+----------+-------+-------+------+-------------+------------------+
//
// Counters follow the header in row-major order.
const (
	magic         = "CMSK"
	formatVersion = 1
	headerSize    = 32
	counterSize   = 4

	// maxCells keeps the payload size of any accepted header representable as an int.
	maxCells = (math.MaxInt - headerSize) / counterSize
)

// Header describes a serialized snapshot.
type Header struct {
	Version     uint16
	Kind        Kind
	Width       int
	Depth       int
	Seed        uint64
	TotalWeight uint64
}

// PayloadSize is the exact snapshot length the header declares.
func (h Header) PayloadSize() uint64 {
	return headerSize + uint64(h.Width)*uint64(h.Depth)*counterSize
}

// PeekHeader decodes and validates the snapshot header without reading counters.
func PeekHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("%w: truncated header (%d of %d bytes)", FormatError, len(data), headerSize)
	}
	if string(data[0:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", FormatError, data[0:4])
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(data[4:6]),
		Kind:        Kind(data[6]),
		Width:       int(binary.LittleEndian.Uint32(data[8:12])),
		Depth:       int(binary.LittleEndian.Uint32(data[12:16])),
		Seed:        binary.LittleEndian.Uint64(data[16:24]),
		TotalWeight: binary.LittleEndian.Uint64(data[24:32]),
	}
	if h.Version != formatVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %d", FormatError, h.Version)
	}
	if h.Width <= 0 || h.Depth <= 0 {
		return Header{}, fmt.Errorf("%w: non-positive dimensions %dx%d", FormatError, h.Depth, h.Width)
	}
	// both are below 2^32, so the product itself cannot wrap
	if uint64(h.Width)*uint64(h.Depth) > maxCells {
		return Header{}, fmt.Errorf("%w: dimensions %dx%d are too large", FormatError, h.Depth, h.Width)
	}
	return h, nil
}

// ToBytes serializes the full state of the sketch.
func (s *Sketch[K]) ToBytes() []byte {
	buf := make([]byte, headerSize, headerSize+len(s.matrix.cells)*counterSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:6], formatVersion)
	buf[6] = byte(s.codec.Kind())
	binary.LittleEndian.PutUint32(buf[8:12], uint32(s.matrix.width))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(s.matrix.depth))
	binary.LittleEndian.PutUint64(buf[16:24], s.seed)
	binary.LittleEndian.PutUint64(buf[24:32], s.total)
	for _, v := range s.matrix.cells {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return buf
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Sketch[K]) MarshalBinary() ([]byte, error) {
	return s.ToBytes(), nil
}

// FromBytes restores a sketch serialized by ToBytes. The snapshot must have been written
// with the same key codec kind. On any error no sketch is returned.
func FromBytes[K any](codec Codec[K], data []byte) (*Sketch[K], error) {
	h, err := PeekHeader(data)
	if err != nil {
		return nil, err
	}
	if codec != nil && h.Kind != codec.Kind() {
		return nil, fmt.Errorf("%w: snapshot holds %s keys, want %s", FormatError, h.Kind, codec.Kind())
	}
	switch want := h.PayloadSize(); {
	case uint64(len(data)) < want:
		return nil, fmt.Errorf("%w: truncated payload (%d of %d bytes)", FormatError, len(data), want)
	case uint64(len(data)) > want:
		return nil, fmt.Errorf("%w: oversized payload (%d of %d bytes)", FormatError, len(data), want)
	}

	s, err := New(codec, h.Width, h.Depth, h.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", FormatError, err)
	}
	s.total = h.TotalWeight
	counters := data[headerSize:]
	for i := range s.matrix.cells {
		s.matrix.cells[i] = binary.LittleEndian.Uint32(counters[i*counterSize:])
	}
	return s, nil
}

// StringFromBytes restores a string-keyed sketch.
func StringFromBytes(data []byte) (*Sketch[string], error) {
	return FromBytes[string](TextCodec[string]{}, data)
}

// IntFromBytes restores an int64-keyed sketch.
func IntFromBytes(data []byte) (*Sketch[int64], error) {
	return FromBytes[int64](IntegerCodec[int64]{}, data)
}
