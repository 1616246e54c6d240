// Package value holds the tagged field value representation and the
// double-buffered arena that backs the raw bytes of the current and the
// previously emitted sample.
package value

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// Field is one extracted column value. Data points into an arena slab; Len
// is the value's wire length (it can be shorter than cap(Data) for charbuf
// values); Cnt is the number of source samples folded into the value. A
// zero Cnt marks a defaulted/missing value.
type Field struct {
	Data []byte
	Len  uint32
	Cnt  uint32
}

// Bytes returns the Len-sized window of the value.
func (f *Field) Bytes() []byte {
	if f.Data == nil {
		return nil
	}
	return f.Data[:f.Len]
}

// Hash returns the xxHash64 of the value bytes, used as the row-map key.
func (f *Field) Hash() uint64 {
	return xxhash.Sum64(f.Bytes())
}

// Equal reports whether two fields carry identical bytes.
func (f *Field) Equal(other *Field) bool {
	return f.Len == other.Len && bytes.Equal(f.Bytes(), other.Bytes())
}
