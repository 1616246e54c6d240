package table

import (
	"github.com/evtop/evtop/internal/fieldtype"
	"github.com/evtop/evtop/internal/value"
)

// addFields folds src into the payload column dstID of vals according to
// the column's aggregation. dstID is the column position in the active
// view (the key is 0), so the destination is vals[dstID-1].
func (t *Table) addFields(vals []value.Field, dstID uint32, src *value.Field, aggr Aggregation) {
	kind := t.active.types[dstID]
	dst := &vals[dstID-1]

	switch aggr {
	case AggrNone:
		return
	case AggrSum, AggrTimeAvg:
		// Merging an already-averaged source switches to sum-of-averages
		// so that the merged value keeps average semantics.
		if src.Cnt < 2 {
			sumFields(kind, dst, src)
		} else {
			sumOfAvgFields(kind, dst, src)
		}
	case AggrAvg:
		dst.Cnt += src.Cnt
		sumFields(kind, dst, src)
	case AggrMax:
		t.maxFields(kind, dst, src)
	case AggrMin:
		if src.Cnt == 0 {
			return
		}
		if dst.Cnt == 0 {
			// First non-defaulted contribution initializes the cell.
			sumFields(kind, dst, src)
			dst.Cnt++
		} else {
			t.minFields(kind, dst, src)
		}
	default:
		t.log.Error().Uint8("aggr", uint8(aggr)).Msg("unknown aggregation")
	}
}

// sumFields adds src into dst in place with wrapping arithmetic. Kinds the
// kernel does not operate on are left untouched.
func sumFields(kind fieldtype.Kind, dst, src *value.Field) {
	if !fieldtype.Numeric(kind) {
		return
	}

	if kind == fieldtype.KindDouble {
		fieldtype.PutFloat64(dst.Data, fieldtype.Float64(dst.Data)+fieldtype.Float64(src.Data))
		return
	}

	// Truncation to the stored width makes the unsigned add wrap
	// correctly for signed kinds too.
	fieldtype.PutUint64(kind, dst.Data, fieldtype.Uint64(kind, dst.Data)+fieldtype.Uint64(kind, src.Data))
}

// sumOfAvgFields renormalizes dst to an average, adds the averaged src and
// leaves both sides with a count of 1.
func sumOfAvgFields(kind fieldtype.Kind, dst, src *value.Field) {
	cnt1, cnt2 := dst.Cnt, src.Cnt

	if fieldtype.Numeric(kind) {
		switch {
		case kind == fieldtype.KindDouble:
			d := fieldtype.Float64(dst.Data)
			if cnt1 > 1 {
				d /= float64(cnt1)
			}
			d += fieldtype.Float64(src.Data) / float64(cnt2)
			fieldtype.PutFloat64(dst.Data, d)
		case signedKind(kind):
			d := fieldtype.Int64(kind, dst.Data)
			if cnt1 > 1 {
				d /= int64(cnt1)
			}
			d += fieldtype.Int64(kind, src.Data) / int64(cnt2)
			fieldtype.PutUint64(kind, dst.Data, uint64(d))
		default:
			d := fieldtype.Uint64(kind, dst.Data)
			if cnt1 > 1 {
				d /= uint64(cnt1)
			}
			d += fieldtype.Uint64(kind, src.Data) / uint64(cnt2)
			fieldtype.PutUint64(kind, dst.Data, d)
		}
	}

	src.Cnt = 1
	dst.Cnt = 1
}

// maxFields keeps the larger of dst and src in dst. Buffer kinds replace
// the destination bytes, reusing the destination allocation when it is
// large enough.
func (t *Table) maxFields(kind fieldtype.Kind, dst, src *value.Field) {
	switch {
	case kind == fieldtype.KindCharBuf || kind == fieldtype.KindByteBuf:
		t.replaceBuffer(dst, src)
	case !fieldtype.Numeric(kind):
		return
	case compareNumeric(kind, dst, src) < 0:
		copy(dst.Data, src.Data[:fieldtype.Width(kind)])
	}
}

// minFields keeps the smaller of dst and src in dst. Buffer kinds are not
// meaningfully ordered; a min over them is left as-is.
func (t *Table) minFields(kind fieldtype.Kind, dst, src *value.Field) {
	switch {
	case kind == fieldtype.KindCharBuf || kind == fieldtype.KindByteBuf:
		t.log.Warn().Str("kind", kind.String()).Msg("MIN over buffer values has no ordering, ignoring")
		return
	case !fieldtype.Numeric(kind):
		return
	case compareNumeric(kind, dst, src) > 0:
		copy(dst.Data, src.Data[:fieldtype.Width(kind)])
	}
}

// replaceBuffer copies src's bytes over dst, allocating a fresh arena
// buffer only when the destination allocation is too small.
func (t *Table) replaceBuffer(dst, src *value.Field) {
	if dst.Len >= src.Len {
		copy(dst.Data[:src.Len], src.Bytes())
	} else {
		dst.Data = t.arena.Copy(src.Bytes())
	}
	dst.Len = src.Len
}

func signedKind(kind fieldtype.Kind) bool {
	switch kind {
	case fieldtype.KindInt8, fieldtype.KindInt16, fieldtype.KindInt32, fieldtype.KindInt64:
		return true
	default:
		return false
	}
}

// compareNumeric orders two numeric fields of the same kind.
func compareNumeric(kind fieldtype.Kind, a, b *value.Field) int {
	return fieldtype.Compare(kind, a.Bytes(), b.Bytes())
}
