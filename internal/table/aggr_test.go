package table

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evtop/evtop/internal/fieldtype"
	"github.com/evtop/evtop/internal/value"
)

func mkField(t *testing.T, arena *value.Arena, kind fieldtype.Kind, v uint64, cnt uint32) value.Field {
	t.Helper()

	w := fieldtype.Width(kind)
	require.NotZero(t, w, "fixed-width kind required")

	raw := make([]byte, w)
	fieldtype.PutUint64(kind, raw, v)
	return arena.CopyField(raw, w, cnt)
}

func mkDouble(arena *value.Arena, v float64, cnt uint32) value.Field {
	raw := make([]byte, 8)
	fieldtype.PutFloat64(raw, v)
	return arena.CopyField(raw, 8, cnt)
}

func mkBuf(arena *value.Arena, s string) value.Field {
	raw := append([]byte(s), 0)
	return arena.CopyField(raw, uint32(len(raw)), 1)
}

func TestSumFieldsWrapping(t *testing.T) {
	arena := value.NewArena()

	tests := []struct {
		name     string
		kind     fieldtype.Kind
		dst, src uint64
		expected uint64
	}{
		{"uint8 wraps", fieldtype.KindUint8, 200, 100, 44},
		{"uint16 wraps", fieldtype.KindUint16, 65000, 1000, 464},
		{"uint32 plain", fieldtype.KindUint32, 10, 20, 30},
		{"uint64 plain", fieldtype.KindUint64, 1 << 40, 1 << 40, 1 << 41},
		{"int8 wraps", fieldtype.KindInt8, 127, 1, 128}, // -128 as raw byte
		{"reltime", fieldtype.KindRelTime, 500, 250, 750},
		{"bool counts", fieldtype.KindBool, 1, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := mkField(t, arena, tt.kind, tt.dst, 1)
			src := mkField(t, arena, tt.kind, tt.src, 1)

			sumFields(tt.kind, &dst, &src)

			assert.Equal(t, tt.expected, fieldtype.Uint64(tt.kind, dst.Bytes()))
		})
	}
}

func TestSumFieldsNonNumericUntouched(t *testing.T) {
	arena := value.NewArena()

	dst := mkField(t, arena, fieldtype.KindPort, 80, 1)
	src := mkField(t, arena, fieldtype.KindPort, 443, 1)

	sumFields(fieldtype.KindPort, &dst, &src)

	assert.Equal(t, uint64(80), fieldtype.Uint64(fieldtype.KindPort, dst.Bytes()))
}

func TestSumFieldsDouble(t *testing.T) {
	arena := value.NewArena()

	dst := mkDouble(arena, 1.5, 1)
	src := mkDouble(arena, 2.25, 1)

	sumFields(fieldtype.KindDouble, &dst, &src)

	assert.Equal(t, 3.75, fieldtype.Float64(dst.Bytes()))
}

func TestSumOfAvgFields(t *testing.T) {
	arena := value.NewArena()

	// dst holds an accumulated average 30/3, src an average 20/2. The
	// merged value is 10 + 10 and both counts collapse to 1.
	dst := mkField(t, arena, fieldtype.KindUint64, 30, 3)
	src := mkField(t, arena, fieldtype.KindUint64, 20, 2)

	sumOfAvgFields(fieldtype.KindUint64, &dst, &src)

	assert.Equal(t, uint64(20), fieldtype.Uint64(fieldtype.KindUint64, dst.Bytes()))
	assert.Equal(t, uint32(1), dst.Cnt)
	assert.Equal(t, uint32(1), src.Cnt)
}

func TestSumOfAvgFieldsSigned(t *testing.T) {
	arena := value.NewArena()

	dst := mkField(t, arena, fieldtype.KindInt32, uint64(0xfffffff4), 2) // -12 accumulated over 2
	src := mkField(t, arena, fieldtype.KindInt32, uint64(0xfffffffa), 2) // -6 accumulated over 2

	sumOfAvgFields(fieldtype.KindInt32, &dst, &src)

	assert.Equal(t, int64(-9), fieldtype.Int64(fieldtype.KindInt32, dst.Bytes()))
}

func newKernelTable() *Table {
	return &Table{arena: value.NewArena(), log: zerolog.Nop()}
}

func TestMaxFieldsNumeric(t *testing.T) {
	tbl := newKernelTable()

	dst := mkField(t, tbl.arena, fieldtype.KindUint64, 10, 1)
	src := mkField(t, tbl.arena, fieldtype.KindUint64, 42, 1)
	tbl.maxFields(fieldtype.KindUint64, &dst, &src)
	assert.Equal(t, uint64(42), fieldtype.Uint64(fieldtype.KindUint64, dst.Bytes()))

	smaller := mkField(t, tbl.arena, fieldtype.KindUint64, 7, 1)
	tbl.maxFields(fieldtype.KindUint64, &dst, &smaller)
	assert.Equal(t, uint64(42), fieldtype.Uint64(fieldtype.KindUint64, dst.Bytes()))
}

func TestMaxFieldsSignedComparesSigned(t *testing.T) {
	tbl := newKernelTable()

	dst := mkField(t, tbl.arena, fieldtype.KindInt8, uint64(0xff), 1) // -1
	src := mkField(t, tbl.arena, fieldtype.KindInt8, 3, 1)

	tbl.maxFields(fieldtype.KindInt8, &dst, &src)

	assert.Equal(t, int64(3), fieldtype.Int64(fieldtype.KindInt8, dst.Bytes()))
}

func TestMaxFieldsBufferReplaces(t *testing.T) {
	tbl := newKernelTable()

	// Longer source forces a fresh arena allocation.
	dst := mkBuf(tbl.arena, "ab")
	src := mkBuf(tbl.arena, "longer")
	tbl.maxFields(fieldtype.KindCharBuf, &dst, &src)
	assert.Equal(t, src.Len, dst.Len)
	assert.Equal(t, "longer\x00", string(dst.Bytes()))

	// Shorter source reuses the destination allocation.
	short := mkBuf(tbl.arena, "x")
	tbl.maxFields(fieldtype.KindCharBuf, &dst, &short)
	assert.Equal(t, "x\x00", string(dst.Bytes()))
}

func TestMinFieldsNumeric(t *testing.T) {
	tbl := newKernelTable()

	dst := mkField(t, tbl.arena, fieldtype.KindUint32, 9, 1)
	src := mkField(t, tbl.arena, fieldtype.KindUint32, 3, 1)
	tbl.minFields(fieldtype.KindUint32, &dst, &src)
	assert.Equal(t, uint64(3), fieldtype.Uint64(fieldtype.KindUint32, dst.Bytes()))

	bigger := mkField(t, tbl.arena, fieldtype.KindUint32, 100, 1)
	tbl.minFields(fieldtype.KindUint32, &dst, &bigger)
	assert.Equal(t, uint64(3), fieldtype.Uint64(fieldtype.KindUint32, dst.Bytes()))
}

func TestMinFieldsBufferIgnored(t *testing.T) {
	tbl := newKernelTable()

	dst := mkBuf(tbl.arena, "keep")
	src := mkBuf(tbl.arena, "other")

	tbl.minFields(fieldtype.KindCharBuf, &dst, &src)

	assert.Equal(t, "keep\x00", string(dst.Bytes()))
}

func TestAddFieldsMinInitializesEmptyCell(t *testing.T) {
	tbl := newKernelTable()
	tbl.active = &tbl.premerge
	tbl.premerge.types = []fieldtype.Kind{fieldtype.KindCharBuf, fieldtype.KindUint64}

	// A defaulted destination (cnt 0) takes the first real contribution
	// verbatim.
	vals := []value.Field{mkField(t, tbl.arena, fieldtype.KindUint64, 0, 0)}
	src := mkField(t, tbl.arena, fieldtype.KindUint64, 5, 1)
	tbl.addFields(vals, 1, &src, AggrMin)

	assert.Equal(t, uint64(5), fieldtype.Uint64(fieldtype.KindUint64, vals[0].Bytes()))
	assert.Equal(t, uint32(1), vals[0].Cnt)

	// A defaulted source never participates.
	missing := mkField(t, tbl.arena, fieldtype.KindUint64, 1, 0)
	tbl.addFields(vals, 1, &missing, AggrMin)
	assert.Equal(t, uint64(5), fieldtype.Uint64(fieldtype.KindUint64, vals[0].Bytes()))

	// Subsequent contributions apply the true minimum.
	three := mkField(t, tbl.arena, fieldtype.KindUint64, 3, 1)
	tbl.addFields(vals, 1, &three, AggrMin)
	assert.Equal(t, uint64(3), fieldtype.Uint64(fieldtype.KindUint64, vals[0].Bytes()))
}

func TestAddFieldsAvgAccumulates(t *testing.T) {
	tbl := newKernelTable()
	tbl.active = &tbl.premerge
	tbl.premerge.types = []fieldtype.Kind{fieldtype.KindCharBuf, fieldtype.KindUint64}

	vals := []value.Field{mkField(t, tbl.arena, fieldtype.KindUint64, 10, 1)}

	for _, v := range []uint64{20, 30} {
		src := mkField(t, tbl.arena, fieldtype.KindUint64, v, 1)
		tbl.addFields(vals, 1, &src, AggrAvg)
	}

	// Stored value is the running sum; presentation divides by cnt.
	assert.Equal(t, uint64(60), fieldtype.Uint64(fieldtype.KindUint64, vals[0].Bytes()))
	assert.Equal(t, uint32(3), vals[0].Cnt)
}

func TestAddFieldsSumSwitchesToSumOfAverages(t *testing.T) {
	tbl := newKernelTable()
	tbl.active = &tbl.premerge
	tbl.premerge.types = []fieldtype.Kind{fieldtype.KindCharBuf, fieldtype.KindUint64}

	vals := []value.Field{mkField(t, tbl.arena, fieldtype.KindUint64, 100, 1)}

	// Merging an averaged source (cnt >= 2) renormalizes both sides.
	src := mkField(t, tbl.arena, fieldtype.KindUint64, 60, 3)
	tbl.addFields(vals, 1, &src, AggrSum)

	assert.Equal(t, uint64(120), fieldtype.Uint64(fieldtype.KindUint64, vals[0].Bytes()))
	assert.Equal(t, uint32(1), vals[0].Cnt)
}
