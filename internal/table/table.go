// Package table implements the streaming aggregation table engine: per-event
// field extraction into a keyed pre-merge map (or an append-only list), an
// optional group-by reaggregation pass at every flush boundary, and sample
// materialization with sorting, free-text filtering and raw/JSON
// presentation.
//
// A table is single-threaded cooperative: the caller serializes
// ProcessEvent, Flush and sample reads. Value bytes live in a
// double-buffered arena, so the last emitted sample stays readable while
// the next interval is being aggregated.
package table

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/evtop/evtop/internal/event"
	"github.com/evtop/evtop/internal/extract"
	"github.com/evtop/evtop/internal/fieldtype"
	"github.com/evtop/evtop/internal/filter"
	"github.com/evtop/evtop/internal/printer"
	"github.com/evtop/evtop/internal/value"
)

const (
	oneSecondNS = uint64(time.Second)

	// listRefreshIntervalNS is forced on list tables to keep them
	// responsive.
	listRefreshIntervalNS = 200 * uint64(time.Millisecond)
)

// ThreadProvider walks the thread registry snapshotted at every flush.
type ThreadProvider interface {
	Loop(visitor func(*event.ThreadInfo) bool)
}

// Row is one materialized sample row.
type Row struct {
	Key    value.Field
	Values []value.Field
}

// rowEntry is one live row of a pre- or post-merge map. Entries with
// colliding key hashes share a bucket and are told apart by key bytes.
type rowEntry struct {
	key  value.Field
	vals []value.Field
}

// view aliases the column vectors of one aggregation pass. Ingestion always
// runs on the pre-merge view; Flush switches the active view to the
// post-merge one while the group-by pass and the presenters run, and
// GetSample restores it.
type view struct {
	extractors []*binding
	types      []fieldtype.Kind
	legend     []extract.FieldInfo
	flds       []value.Field // scratch: the row currently being added
	rows       map[uint64][]*rowEntry
	nFields    uint32
}

// Config carries the collaborators and fixed parameters of a table.
type Config struct {
	Mode              Mode
	RefreshIntervalNS uint64
	Output            Output
	JSONFirstRow      uint32
	JSONLastRow       uint32

	Factory  *extract.Factory
	Compiler *filter.Compiler
	Threads  ThreadProvider
	// Writer receives presenter output; defaults to stdout.
	Writer io.Writer
	Logger zerolog.Logger
}

// Table is one aggregation table or list.
type Table struct {
	mode   Mode
	output Output
	log    zerolog.Logger
	writer io.Writer

	factory  *extract.Factory
	compiler *filter.Compiler
	threads  ThreadProvider
	printer  *printer.Printer
	arena    *value.Arena

	refreshIntervalNS uint64
	nextFlushNS       uint64
	prevFlushNS       uint64

	useDefaults bool
	viewDepth   uint32

	filter         filter.Filter
	freetextFilter string

	premerge  view
	postmerge view
	active    *view
	doMerging bool

	// groupbyColumns maps post-merge positions to pre-merge columns:
	// 0 is the pre-merge key, j >= 1 is payload position j-1.
	groupbyColumns []uint32

	fullSample     []Row
	filteredSample []Row
	sample         *[]Row

	paused        bool
	sortingCol    int32
	sortAscending bool
	justSorted    bool

	jsonFirstRow    uint32
	jsonLastRow     uint32
	jsonOutputLines uint32

	zeroU64    [8]byte
	zeroDouble [8]byte
}

// New creates an unconfigured table.
func New(cfg Config) *Table {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	return &Table{
		mode:              cfg.Mode,
		output:            cfg.Output,
		log:               cfg.Logger,
		writer:            w,
		factory:           cfg.Factory,
		compiler:          cfg.Compiler,
		threads:           cfg.Threads,
		printer:           printer.New(),
		arena:             value.NewArena(),
		refreshIntervalNS: cfg.RefreshIntervalNS,
		jsonFirstRow:      cfg.JSONFirstRow,
		jsonLastRow:       cfg.JSONLastRow,
		sortingCol:        -1,
		justSorted:        true,
	}
}

// Configure binds the column list and the optional filter. It must be
// called exactly once before the first event.
func (t *Table) Configure(columns []ColumnSpec, filterExpr string, useDefaults bool, viewDepth uint32) error {
	t.useDefaults = useDefaults
	t.viewDepth = viewDepth

	// List tables refresh faster to feel live.
	if t.mode == ModeList {
		t.SetRefreshInterval(listRefreshIntervalNS)
	}

	if filterExpr != "" {
		compiled, err := t.compiler.Compile(filterExpr)
		if err != nil {
			return fmt.Errorf("compiling table filter: %w", err)
		}
		t.filter = compiled
	}

	// premergeIndex tracks where each config entry landed in the
	// pre-merge layout (the key is moved to position 0).
	premergeIndex := make([]uint32, len(columns))
	isKeyPresent := false

	for i, col := range columns {
		// The factory resolves any %depth token against viewDepth.
		chk, err := t.factory.FromFieldName(col.Field, viewDepth)
		if err != nil {
			return fmt.Errorf("invalid field name %q: %w", col.Field, err)
		}
		if !fieldtype.Supported(chk.FieldInfo().Kind) {
			return fmt.Errorf("%w: %s (%s)", ErrInvalidFieldKind, col.Field, chk.FieldInfo().Kind)
		}

		wrap := &binding{check: chk, aggregation: col.Aggregation}

		if col.IsKey {
			if isKeyPresent {
				return ErrMultipleKeys
			}
			t.premerge.extractors = append([]*binding{wrap}, t.premerge.extractors...)
			for j := range premergeIndex[:i] {
				premergeIndex[j]++
			}
			premergeIndex[i] = 0
			isKeyPresent = true
		} else {
			premergeIndex[i] = uint32(len(t.premerge.extractors))
			t.premerge.extractors = append(t.premerge.extractors, wrap)
		}
	}

	if t.mode == ModeTable {
		if !isKeyPresent {
			return ErrMissingKey
		}
	} else {
		if isKeyPresent {
			return ErrListHasKey
		}

		// Lists get a synthetic counter key so that the "key is column
		// 0" invariant holds uniformly.
		chk, err := t.factory.FromFieldName("util.cnt", viewDepth)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		t.premerge.extractors = append([]*binding{{check: chk, aggregation: AggrNone}}, t.premerge.extractors...)
		for j := range premergeIndex {
			premergeIndex[j]++
		}
	}

	t.premerge.nFields = uint32(len(t.premerge.extractors))
	t.premerge.flds = make([]value.Field, t.premerge.nFields)
	t.premerge.rows = make(map[uint64][]*rowEntry)
	t.active = &t.premerge

	if t.premerge.nFields < 2 {
		return ErrEmptyTable
	}

	for _, wrap := range t.premerge.extractors {
		info := wrap.check.FieldInfo()
		t.premerge.types = append(t.premerge.types, info.Kind)
		t.premerge.legend = append(t.premerge.legend, *info)
	}

	return t.configureMerge(columns, premergeIndex)
}

// configureMerge builds the post-merge pass when a group-by key is
// configured.
func (t *Table) configureMerge(columns []ColumnSpec, premergeIndex []uint32) error {
	nGroupByKeys := 0
	for _, col := range columns {
		if col.IsGroupByKey {
			nGroupByKeys++
		}
	}

	if nGroupByKeys == 0 {
		t.doMerging = false
		return nil
	}
	if nGroupByKeys > 1 {
		return ErrMultipleGroupByKeys
	}
	if t.mode != ModeTable {
		return ErrListGroupBy
	}

	t.doMerging = true
	isGroupByKeyPresent := false

	for i, col := range columns {
		// The original key does not survive grouping.
		if col.IsKey {
			continue
		}

		wrap := t.premerge.extractors[premergeIndex[i]]
		wrap.mergeAggregation = col.MergeAggregation

		if col.IsGroupByKey {
			if isGroupByKeyPresent {
				return ErrMultipleGroupByKeys
			}
			isGroupByKeyPresent = true
			t.postmerge.extractors = append([]*binding{wrap}, t.postmerge.extractors...)
			t.groupbyColumns = append([]uint32{premergeIndex[i]}, t.groupbyColumns...)
		} else {
			t.postmerge.extractors = append(t.postmerge.extractors, wrap)
			t.groupbyColumns = append(t.groupbyColumns, premergeIndex[i])
		}
	}

	if !isGroupByKeyPresent {
		return ErrMissingGroupByKey
	}
	if len(t.groupbyColumns) < 2 {
		return ErrGroupByHasNoValues
	}

	t.postmerge.nFields = uint32(len(t.postmerge.extractors))
	t.postmerge.flds = make([]value.Field, t.postmerge.nFields)
	t.postmerge.rows = make(map[uint64][]*rowEntry)

	for _, wrap := range t.postmerge.extractors {
		info := wrap.check.FieldInfo()
		t.postmerge.types = append(t.postmerge.types, info.Kind)
		t.postmerge.legend = append(t.postmerge.legend, *info)
	}

	return nil
}

// ProcessEvent runs one event through the filter and the extractors and
// folds it into the pre-merge table (or appends it to the list).
func (t *Table) ProcessEvent(evt event.Event) {
	if t.filter != nil && !t.filter.Run(evt) {
		return
	}

	v := &t.premerge

	for j := uint32(0); j < v.nFields; j++ {
		raw, ok := v.extractors[j].check.Extract(evt)
		if !ok {
			if !t.useDefaults {
				return
			}

			def := t.defaultVal(&v.legend[j])
			if def == nil {
				return
			}

			length := t.fieldLen(v.types[j], def)
			v.flds[j] = t.arena.CopyField(def, length, 0)
			continue
		}

		length := t.fieldLen(v.types[j], raw)
		v.flds[j] = t.arena.CopyField(raw, length, 1)
	}

	t.addRow(false)
}

// addRow folds the staged field scratch of the active view into the active
// row map, or appends it to the list sample.
func (t *Table) addRow(merging bool) {
	v := t.active

	key := v.flds[0]
	key.Cnt = 1

	if t.mode == ModeTable {
		hash := key.Hash()
		bucket := v.rows[hash]

		var entry *rowEntry
		for _, e := range bucket {
			if e.key.Equal(&key) {
				entry = e
				break
			}
		}

		if entry == nil {
			vals := make([]value.Field, v.nFields-1)
			for j := uint32(1); j < v.nFields; j++ {
				vals[j-1] = v.flds[j]
			}
			v.rows[hash] = append(bucket, &rowEntry{key: key, vals: vals})
			return
		}

		for j := uint32(1); j < v.nFields; j++ {
			var aggr Aggregation
			if merging {
				aggr = t.postmerge.extractors[j].mergeAggregation
			} else {
				aggr = t.premerge.extractors[j].aggregation
			}
			t.addFields(entry.vals, j, &v.flds[j], aggr)
		}
		return
	}

	// List mode: append in arrival order.
	if t.paused {
		return
	}

	row := Row{Key: key, Values: make([]value.Field, v.nFields-1)}
	for j := uint32(1); j < v.nFields; j++ {
		fld := v.flds[j]
		fld.Cnt = 1
		row.Values[j-1] = fld
	}
	t.fullSample = append(t.fullSample, row)
}

// processThreadTable feeds every registered thread through the pipeline as
// a synthetic snapshot event stamped just before the closing second, so
// each sample includes durable per-thread state and not just live events.
func (t *Table) processThreadTable(evt event.Event) {
	if t.threads == nil {
		return
	}

	ts := evt.Ts()
	snapshotTS := ts - ts%oneSecondNS - 1

	t.threads.Loop(func(tinfo *event.ThreadInfo) bool {
		snap := &event.Snapshot{Timestamp: snapshotTS, TInfo: tinfo}
		if t.filter != nil && !t.filter.Run(snap) {
			return true
		}
		t.ProcessEvent(snap)
		return true
	})
}

// Flush closes the current sample interval: it snapshots the thread table,
// performs the group-by pass when configured, materializes the sample,
// swaps the arena slabs and advances the flush clock. The very first tick
// only arms the clock.
func (t *Table) Flush(evt event.Event) {
	if !t.paused && t.nextFlushNS != 0 {
		t.processThreadTable(evt)

		if t.doMerging {
			t.active = &t.postmerge
		}

		t.createSample()

		if t.mode == ModeTable {
			// Keep the just-emitted sample's bytes readable while the
			// next interval aggregates into the other slab.
			t.arena.Swap()
			t.arena.Clear()
		}

		clear(t.premerge.rows)
		if t.postmerge.rows != nil {
			clear(t.postmerge.rows)
		}
	}

	ts := evt.Ts()
	t.prevFlushNS = t.nextFlushNS
	t.nextFlushNS = (ts + t.refreshIntervalNS - 1) / t.refreshIntervalNS * t.refreshIntervalNS
}

// createSample materializes the active map into the full sample. In
// group-by mode it first re-inserts every pre-merge row projected through
// groupbyColumns, merging with the per-column merge aggregations.
func (t *Table) createSample() {
	if t.mode != ModeTable {
		// The list sample is already authoritative.
		return
	}

	t.fullSample = t.fullSample[:0]

	if t.doMerging {
		clear(t.postmerge.rows)

		for _, bucket := range t.premerge.rows {
			for _, entry := range bucket {
				for j, col := range t.groupbyColumns {
					if col == 0 {
						t.postmerge.flds[j] = entry.key
					} else {
						t.postmerge.flds[j] = entry.vals[col-1]
					}
				}
				t.addRow(true)
			}
		}
	}

	v := t.active
	for _, bucket := range v.rows {
		for _, entry := range bucket {
			row := Row{Key: entry.key, Values: make([]value.Field, len(entry.vals))}
			copy(row.Values, entry.vals)
			t.fullSample = append(t.fullSample, row)
		}
	}
}

// GetSample filters, sorts and (when configured) prints the current
// sample, then restores the pre-merge view for the next interval.
// timeDelta is the width of the emitted interval in nanoseconds and only
// affects TIME_AVG columns.
func (t *Table) GetSample(timeDelta uint64) []Row {
	if !t.paused {
		if t.freetextFilter != "" {
			t.filterSample()
			t.sample = &t.filteredSample
		} else {
			t.sample = &t.fullSample
		}

		t.sortSample()
	}

	if t.sample != nil {
		switch t.output {
		case OutputRaw:
			t.printRaw(*t.sample, timeDelta)
		case OutputJSON:
			t.printJSON(*t.sample, timeDelta)
		}
	}

	// Event processing resumes on the pre-merge vectors.
	t.active = &t.premerge

	if t.sample == nil {
		return nil
	}
	return *t.sample
}

// filterSample applies the free-text filter: a row survives when any of
// its printable values contains the filter string.
func (t *Table) filterSample() {
	types, legend := t.premerge.types, t.premerge.legend
	if t.doMerging {
		types, legend = t.postmerge.types, t.postmerge.legend
	}

	t.filteredSample = t.filteredSample[:0]

	for _, row := range t.fullSample {
		for j := range row.Values {
			kind := types[j+1]
			if !fieldtype.Stringable(kind) {
				continue
			}

			fld := &row.Values[j]
			t.printer.SetVal(kind, fld.Data, fld.Len, fld.Cnt, legend[j+1].Format)
			if strings.Contains(t.printer.ToStringNice(0), t.freetextFilter) {
				t.filteredSample = append(t.filteredSample, row)
				break
			}
		}
	}
}

// SearchInSample returns the key of the first row any of whose printable
// values contains text, or nil. The type of payload column j is read from
// the pre-merge vector at j+2 when group-by is active (j+1 otherwise),
// mirroring the layout the restored view exposes between samples.
func (t *Table) SearchInSample(text string) *value.Field {
	legend := t.getLegend()

	for i := range t.fullSample {
		row := &t.fullSample[i]
		for j := range row.Values {
			var kind fieldtype.Kind
			if t.doMerging {
				kind = t.premerge.types[j+2]
			} else {
				kind = t.premerge.types[j+1]
			}

			if !fieldtype.Stringable(kind) {
				continue
			}

			fld := &row.Values[j]
			t.printer.SetVal(kind, fld.Data, fld.Len, fld.Cnt, legend[j+1].Format)
			if strings.Contains(t.printer.ToStringNice(0), text) {
				return &row.Key
			}
		}
	}

	return nil
}

// sortSample orders the current sample by the selected column. Lists only
// sort when a sort was explicitly (re)selected; tables sort every call.
func (t *Table) sortSample() {
	if t.mode == ModeList {
		if t.sortingCol == -1 || !t.justSorted {
			return
		}
		t.justSorted = false
	}

	sample := *t.sample
	if len(sample) == 0 {
		return
	}

	if int(t.sortingCol) >= len(sample[0].Values) {
		t.log.Error().Int32("col", t.sortingCol).Msg("sorting column out of range, skipping sort")
		return
	}
	if t.sortingCol < 0 {
		return
	}

	tyid := int(t.sortingCol) + 1
	if t.doMerging {
		tyid = int(t.sortingCol) + 2
	}
	kind := t.premerge.types[tyid]

	sortRows(sample, uint32(t.sortingCol), kind, t.sortAscending)
}

// SetSortingCol selects the sample sorting column. Column 0 is the key:
// invalid for tables, "disable sorting" for lists. Re-selecting the
// current column toggles the direction; a newly selected column starts
// descending for numeric kinds and ascending otherwise.
func (t *Table) SetSortingCol(col uint32) error {
	nFields := t.premerge.nFields
	types := t.premerge.types
	if t.doMerging {
		nFields = t.postmerge.nFields
		types = t.postmerge.types
	}

	if col == 0 {
		if t.mode == ModeTable {
			return fmt.Errorf("%w: cannot sort by key", ErrInvalidSortingCol)
		}
		t.sortingCol = -1
		return nil
	}

	if col >= nFields {
		return ErrInvalidSortingCol
	}

	if col == uint32(t.sortingCol+1) {
		t.sortAscending = !t.sortAscending
	} else {
		t.sortAscending = !fieldtype.SortsDescending(types[col])
	}

	t.justSorted = true
	t.sortingCol = int32(col) - 1

	return nil
}

// GetSortingCol returns the 1-based sorting column (0 when sorting by key
// is disabled).
func (t *Table) GetSortingCol() uint32 {
	return uint32(t.sortingCol + 1)
}

// getLegend returns the legend of the configured output pass.
func (t *Table) getLegend() []extract.FieldInfo {
	if t.doMerging {
		return t.postmerge.legend
	}
	return t.premerge.legend
}

// Legend exposes the output pass legend for external renderers.
func (t *Table) Legend() []extract.FieldInfo {
	return t.getLegend()
}

// GetRowKey returns the key of a sample row, or nil when rownum is out of
// range.
func (t *Table) GetRowKey(rownum uint32) *value.Field {
	if t.sample == nil || rownum >= uint32(len(*t.sample)) {
		return nil
	}
	return &(*t.sample)[rownum].Key
}

// GetRowFromKey returns the ordinal of the sample row with the given key,
// or -1.
func (t *Table) GetRowFromKey(key *value.Field) int32 {
	if t.sample == nil {
		return -1
	}

	for j := range *t.sample {
		rowkey := &(*t.sample)[j].Key
		if rowkey.Len == key.Len && bytes.Equal(rowkey.Bytes(), key.Bytes()) {
			return int32(j)
		}
	}

	return -1
}

// GetRowKeyNameAndVal returns the key column's field info and the rendered
// key of a sample row. With an empty sample the info is nil unless force
// is set.
func (t *Table) GetRowKeyNameAndVal(rownum uint32, force bool) (*extract.FieldInfo, string) {
	extractors := t.premerge.extractors
	types := t.premerge.types
	if t.doMerging {
		extractors = t.postmerge.extractors
		types = t.postmerge.types
	}

	if t.sample == nil || rownum >= uint32(len(*t.sample)) {
		if force {
			return extractors[0].check.FieldInfo(), ""
		}
		return nil, ""
	}

	legend := t.getLegend()
	key := &(*t.sample)[rownum].Key
	t.printer.SetVal(types[0], key.Data, key.Len, key.Cnt, legend[0].Format)

	return extractors[0].check.FieldInfo(), t.printer.ToString(0)
}

// SetPaused suspends sample generation and list appends.
func (t *Table) SetPaused(paused bool) {
	t.paused = paused
}

// Paused reports whether the table is paused.
func (t *Table) Paused() bool {
	return t.paused
}

// SetRefreshInterval changes the flush cadence.
func (t *Table) SetRefreshInterval(ns uint64) {
	t.refreshIntervalNS = ns
}

// RefreshInterval returns the flush cadence in nanoseconds.
func (t *Table) RefreshInterval() uint64 {
	return t.refreshIntervalNS
}

// NextFlushTime returns the next flush boundary in nanoseconds (0 before
// the first tick).
func (t *Table) NextFlushTime() uint64 {
	return t.nextFlushNS
}

// PrevFlushTime returns the previous flush boundary in nanoseconds.
func (t *Table) PrevFlushTime() uint64 {
	return t.prevFlushNS
}

// SetFreetextFilter sets the substring filter applied during sample
// materialization. An empty string clears it.
func (t *Table) SetFreetextFilter(text string) {
	t.freetextFilter = text
}

// SetJSONRows bounds the row window the JSON presenter emits.
func (t *Table) SetJSONRows(first, last uint32) {
	t.jsonFirstRow = first
	t.jsonLastRow = last
}

// JSONOutputLines returns the number of rows the last JSON emission wrote.
func (t *Table) JSONOutputLines() uint32 {
	return t.jsonOutputLines
}

// Mode returns the table mode.
func (t *Table) Mode() Mode {
	return t.mode
}

// Clear empties a list table. It is not valid for keyed tables.
func (t *Table) Clear() {
	if t.mode != ModeList {
		t.log.Error().Msg("clear called on a keyed table")
		return
	}

	t.fullSample = t.fullSample[:0]
	t.arena.Clear()
}

// defaultVal returns the type default substituted for a missed extraction,
// or nil when the event must be dropped instead.
func (t *Table) defaultVal(info *extract.FieldInfo) []byte {
	switch info.Kind {
	case fieldtype.KindInt8, fieldtype.KindInt16, fieldtype.KindInt32, fieldtype.KindInt64,
		fieldtype.KindUint8, fieldtype.KindUint16, fieldtype.KindUint32, fieldtype.KindUint64,
		fieldtype.KindBool, fieldtype.KindRelTime, fieldtype.KindAbsTime:
		if info.Format == fieldtype.FormatDec {
			return t.zeroU64[:]
		}
		return nil
	case fieldtype.KindDouble:
		return t.zeroDouble[:]
	case fieldtype.KindCharBuf:
		// Empty-string placeholder.
		return t.zeroU64[:]
	default:
		return nil
	}
}

// fieldLen computes the stored length of a raw value.
func (t *Table) fieldLen(kind fieldtype.Kind, raw []byte) uint32 {
	switch kind {
	case fieldtype.KindCharBuf:
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			return uint32(i) + 1
		}
		return uint32(len(raw))
	case fieldtype.KindByteBuf:
		return uint32(len(raw))
	case fieldtype.KindIPAddr, fieldtype.KindIPNet:
		if len(raw) == 4 {
			return 4
		}
		return 16
	default:
		if w := fieldtype.Width(kind); w != 0 {
			return w
		}
		t.log.Error().Str("kind", kind.String()).Msg("field length requested for unsupported kind")
		return 0
	}
}
