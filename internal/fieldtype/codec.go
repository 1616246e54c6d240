package fieldtype

import (
	"encoding/binary"
	"math"
)

// Raw values are stored little-endian, matching the host order the event
// producers use.

// Uint64 widens a raw fixed-width value to uint64.
func Uint64(k Kind, b []byte) uint64 {
	switch Width(k) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		return 0
	}
}

// Int64 widens a raw fixed-width value to int64, sign-extending it
// according to the declared width.
func Int64(k Kind, b []byte) int64 {
	switch Width(k) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case 8:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		return 0
	}
}

// Float64 reinterprets an 8-byte raw value as an IEEE-754 double.
func Float64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// PutUint64 narrows v into b according to the kind's width, truncating to
// the stored width (wrapping semantics).
func PutUint64(k Kind, b []byte, v uint64) {
	switch Width(k) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	}
}

// PutFloat64 stores an IEEE-754 double into b.
func PutFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

// AppendUint appends the little-endian encoding of v at the kind's width.
func AppendUint(k Kind, dst []byte, v uint64) []byte {
	switch Width(k) {
	case 1:
		return append(dst, byte(v))
	case 2:
		return binary.LittleEndian.AppendUint16(dst, uint16(v))
	case 4:
		return binary.LittleEndian.AppendUint32(dst, uint32(v))
	case 8:
		return binary.LittleEndian.AppendUint64(dst, v)
	default:
		return dst
	}
}
