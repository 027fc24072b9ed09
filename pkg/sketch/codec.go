package sketch

import "encoding/binary"

// Kind identifies a key codec inside serialized snapshots. Values are stable across versions.
type Kind uint8

const (
	// TextKind is the codec of string-like keys.
	TextKind Kind = 1
	// IntegerKind is the codec of integer keys.
	IntegerKind Kind = 2
)

func (k Kind) String() string {
	switch k {
	case TextKind:
		return "text"
	case IntegerKind:
		return "integer"
	default:
		return "unknown"
	}
}

// Codec turns a typed key into the canonical byte sequence which is hashed.
// Encode appends to dst and returns the extended slice, so callers may reuse a buffer.
type Codec[K any] interface {
	Kind() Kind
	Encode(dst []byte, key K) []byte
}

// Text is the set of text-like key types.
type Text interface {
	~string | ~[]byte
}

// Integer is the set of integer key types.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// TextCodec encodes a key as its raw bytes. No normalization is applied:
// differently normalized forms of the same text are different keys.
type TextCodec[K Text] struct{}

func (TextCodec[K]) Kind() Kind { return TextKind }

func (TextCodec[K]) Encode(dst []byte, key K) []byte {
	return append(dst, key...)
}

// IntegerCodec encodes a key as a 64-bit two's-complement little-endian word.
// Narrow types are sign- or zero-extended first, so int8(-1) and int64(-1) hash alike.
type IntegerCodec[K Integer] struct{}

func (IntegerCodec[K]) Kind() Kind { return IntegerKind }

func (IntegerCodec[K]) Encode(dst []byte, key K) []byte {
	return binary.LittleEndian.AppendUint64(dst, uint64(key))
}
