package table

import (
	"sort"

	"github.com/evtop/evtop/internal/fieldtype"
	"github.com/evtop/evtop/internal/value"
)

// sortRows orders the sample by the payload column col. Values carrying a
// count greater than one are accumulated averages, so the comparator
// scales both operands by their counts before comparing.
func sortRows(sample []Row, col uint32, kind fieldtype.Kind, ascending bool) {
	sort.Slice(sample, func(i, j int) bool {
		a := &sample[i].Values[col]
		b := &sample[j].Values[col]

		var cmp int
		if a.Cnt > 1 || b.Cnt > 1 {
			cmp = compareAvg(kind, a, b)
		} else {
			cmp = fieldtype.Compare(kind, a.Bytes(), b.Bytes())
		}

		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})
}

func compareAvg(kind fieldtype.Kind, a, b *value.Field) int {
	cntA, cntB := max(a.Cnt, 1), max(b.Cnt, 1)

	switch {
	case kind == fieldtype.KindDouble:
		fa := fieldtype.Float64(a.Bytes()) / float64(cntA)
		fb := fieldtype.Float64(b.Bytes()) / float64(cntB)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case !fieldtype.Numeric(kind):
		return fieldtype.Compare(kind, a.Bytes(), b.Bytes())
	case signedKind(kind):
		ia := fieldtype.Int64(kind, a.Bytes()) / int64(cntA)
		ib := fieldtype.Int64(kind, b.Bytes()) / int64(cntB)
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		default:
			return 0
		}
	default:
		ua := fieldtype.Uint64(kind, a.Bytes()) / uint64(cntA)
		ub := fieldtype.Uint64(kind, b.Bytes()) / uint64(cntB)
		switch {
		case ua < ub:
			return -1
		case ua > ub:
			return 1
		default:
			return 0
		}
	}
}
