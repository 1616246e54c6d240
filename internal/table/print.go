package table

import (
	"encoding/json"
	"fmt"
)

// columnTimeDelta returns the time delta the printer should apply for the
// active view's payload column at position id: the sample delta for
// TIME_AVG columns, zero otherwise.
func (t *Table) columnTimeDelta(id uint32, timeDelta uint64) uint64 {
	return bindingTimeDelta(t.active.extractors[id], timeDelta)
}

func bindingTimeDelta(ext *binding, timeDelta uint64) uint64 {
	if ext.aggregation == AggrTimeAvg || ext.mergeAggregation == AggrTimeAvg {
		return timeDelta
	}
	return 0
}

// printRaw writes the sample as space-separated rendered values, one row
// per line, closed by a dashed trailer.
func (t *Table) printRaw(sample []Row, timeDelta uint64) {
	v := t.active

	for i := range sample {
		row := &sample[i]
		for j := uint32(0); j < v.nFields-1; j++ {
			fld := &row.Values[j]
			t.printer.SetVal(v.types[j+1], fld.Data, fld.Len, fld.Cnt, v.legend[j+1].Format)
			fmt.Fprintf(t.writer, "%s ", t.printer.ToStringNice(t.columnTimeDelta(j+1, timeDelta)))
		}
		fmt.Fprintln(t.writer)
	}

	fmt.Fprintln(t.writer, "----------------------")
}

// RenderedRow is a sample row rendered for external consumers (the HTTP
// API). Values carry the printer's JSON representation of each payload
// column.
type RenderedRow struct {
	Key    string `json:"key"`
	Values []any  `json:"values"`
}

// RenderSample renders rows with the output pass's types and legend. It
// must run on the goroutine that owns the table.
func (t *Table) RenderSample(rows []Row, timeDelta uint64) []RenderedRow {
	types, legend, extractors := t.premerge.types, t.premerge.legend, t.premerge.extractors
	if t.doMerging {
		types, legend, extractors = t.postmerge.types, t.postmerge.legend, t.postmerge.extractors
	}

	rendered := make([]RenderedRow, 0, len(rows))

	for i := range rows {
		row := &rows[i]

		t.printer.SetVal(types[0], row.Key.Data, row.Key.Len, row.Key.Cnt, legend[0].Format)
		out := RenderedRow{Key: t.printer.ToString(0), Values: make([]any, 0, len(row.Values))}

		for j := range row.Values {
			fld := &row.Values[j]
			t.printer.SetVal(types[j+1], fld.Data, fld.Len, fld.Cnt, legend[j+1].Format)
			out.Values = append(out.Values, t.printer.ToJSON(bindingTimeDelta(extractors[j+1], timeDelta)))
		}

		rendered = append(rendered, out)
	}

	return rendered
}

// jsonRow is the wire shape of one emitted sample row.
type jsonRow struct {
	K string `json:"k"`
	D []any  `json:"d"`
}

// printJSON writes the configured row window of the sample as a `"data"`
// array fragment.
func (t *Table) printJSON(sample []Row, timeDelta uint64) {
	v := t.active
	t.jsonOutputLines = 0

	size := uint32(len(sample))
	if size == 0 {
		return
	}
	if t.jsonFirstRow >= size {
		return
	}
	if t.jsonLastRow == 0 || t.jsonLastRow >= size-1 {
		t.jsonLastRow = size - 1
	}

	fmt.Fprintf(t.writer, "\"data\": [\n")

	for k := t.jsonFirstRow; k <= t.jsonLastRow; k++ {
		row := &sample[k]

		out := jsonRow{D: make([]any, 0, v.nFields-1)}

		for j := uint32(0); j < v.nFields-1; j++ {
			fld := &row.Values[j]
			t.printer.SetVal(v.types[j+1], fld.Data, fld.Len, fld.Cnt, v.legend[j+1].Format)
			out.D = append(out.D, t.printer.ToJSON(t.columnTimeDelta(j+1, timeDelta)))
		}

		_, out.K = t.GetRowKeyNameAndVal(k, false)

		enc, err := json.Marshal(out)
		if err != nil {
			t.log.Error().Err(err).Msg("marshaling sample row")
			continue
		}
		fmt.Fprintf(t.writer, "%s", enc)

		t.jsonOutputLines++

		if k >= t.jsonLastRow {
			break
		}
		fmt.Fprintln(t.writer, ",")
	}

	fmt.Fprintf(t.writer, "\n],\n")
}
