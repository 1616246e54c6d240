package table

import (
	"fmt"
	"strings"

	"github.com/evtop/evtop/internal/extract"
)

// Mode selects between keyed aggregation and append-only collection.
type Mode uint8

const (
	ModeTable Mode = iota
	ModeList
)

func (m Mode) String() string {
	if m == ModeList {
		return "list"
	}
	return "table"
}

// ParseMode parses a mode name from configuration.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "table", "":
		return ModeTable, nil
	case "list":
		return ModeList, nil
	default:
		return 0, fmt.Errorf("unknown table mode %q", s)
	}
}

// Output selects the presenter invoked at every sample.
type Output uint8

const (
	// OutputNone leaves presentation to an external consumer of the
	// sample vector (e.g. the HTTP API).
	OutputNone Output = iota
	OutputRaw
	OutputJSON
)

func (o Output) String() string {
	switch o {
	case OutputRaw:
		return "raw"
	case OutputJSON:
		return "json"
	default:
		return "none"
	}
}

// ParseOutput parses an output name from configuration.
func ParseOutput(s string) (Output, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return OutputNone, nil
	case "raw":
		return OutputRaw, nil
	case "json":
		return OutputJSON, nil
	default:
		return 0, fmt.Errorf("unknown output type %q", s)
	}
}

// Aggregation is a per-column fold operator.
type Aggregation uint8

const (
	AggrNone Aggregation = iota
	AggrSum
	AggrAvg
	AggrTimeAvg
	AggrMin
	AggrMax
)

func (a Aggregation) String() string {
	switch a {
	case AggrSum:
		return "SUM"
	case AggrAvg:
		return "AVG"
	case AggrTimeAvg:
		return "TIME_AVG"
	case AggrMin:
		return "MIN"
	case AggrMax:
		return "MAX"
	default:
		return "NONE"
	}
}

// ParseAggregation parses an aggregation name from configuration.
func ParseAggregation(s string) (Aggregation, error) {
	switch strings.ToUpper(s) {
	case "NONE", "":
		return AggrNone, nil
	case "SUM":
		return AggrSum, nil
	case "AVG":
		return AggrAvg, nil
	case "TIME_AVG", "TIMEAVG":
		return AggrTimeAvg, nil
	case "MIN":
		return AggrMin, nil
	case "MAX":
		return AggrMax, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", s)
	}
}

// ColumnSpec is one user-configured view column.
type ColumnSpec struct {
	// Field is the extractor field name; it may contain the %depth token.
	Field string
	// Name overrides the legend entry's display name.
	Name string
	// Aggregation folds values into an existing row before group-by.
	Aggregation Aggregation
	// MergeAggregation folds values during the group-by pass.
	MergeAggregation Aggregation
	// IsKey marks the table key column (TABLE mode only).
	IsKey bool
	// IsGroupByKey promotes the column to key of the post-merge pass.
	IsGroupByKey bool
}

// binding couples an extractor with its two fold operators.
type binding struct {
	check            extract.Extractor
	aggregation      Aggregation
	mergeAggregation Aggregation
}
