package table

import (
	"errors"

	"github.com/evtop/evtop/internal/extract"
)

// Configuration errors. All of them are fatal: a table that fails Configure
// must be discarded.
var (
	// ErrInvalidFieldName is the extractor factory's unknown-field error,
	// re-exported so callers can test for it without importing extract.
	ErrInvalidFieldName = extract.ErrUnknownField

	ErrMultipleKeys        = errors.New("invalid table configuration: multiple keys specified")
	ErrMissingKey          = errors.New("table is missing the key")
	ErrListHasKey          = errors.New("list table can't have a key")
	ErrListGroupBy         = errors.New("group by not supported for list tables")
	ErrMultipleGroupByKeys = errors.New("invalid table configuration: more than one groupby key specified")
	ErrMissingGroupByKey   = errors.New("table is missing the groupby key")
	ErrGroupByHasNoValues  = errors.New("groupby table has no values")
	ErrEmptyTable          = errors.New("table has no values")
	ErrInvalidSortingCol   = errors.New("invalid table sorting column")
	ErrInvalidFieldKind    = errors.New("field kind not supported as a table column")
	ErrInternal            = errors.New("internal table error")
)
