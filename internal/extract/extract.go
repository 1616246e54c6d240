// Package extract resolves field names to typed extractors over events.
// The factory replaces the process-wide filter-check registry of classic
// capture tools: every table (and the filter compiler) holds an injected
// *Factory instead of reaching for a global.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/evtop/evtop/internal/event"
	"github.com/evtop/evtop/internal/fieldtype"
)

// ErrUnknownField is returned when a field name has no registered
// definition.
var ErrUnknownField = errors.New("unknown field")

// FieldInfo describes a field: its kind, print format and human legend.
type FieldInfo struct {
	Name        string
	Kind        fieldtype.Kind
	Format      fieldtype.PrintFormat
	Description string
}

// Extractor pulls one field value out of an event. Extract returns the raw
// little-endian value bytes (charbuf values carry their terminating NUL)
// and whether the field was present on the event.
type Extractor interface {
	FieldInfo() *FieldInfo
	Extract(evt event.Event) ([]byte, bool)
}

type extractFunc func(evt event.Event, arg string, scratch []byte) ([]byte, bool)

type fieldDef struct {
	info    FieldInfo
	hasArg  bool // name is a prefix taking a ".arg" suffix
	extract extractFunc
}

type fieldExtractor struct {
	info    FieldInfo
	arg     string
	scratch []byte
	fn      extractFunc
}

func (e *fieldExtractor) FieldInfo() *FieldInfo { return &e.info }

func (e *fieldExtractor) Extract(evt event.Event) ([]byte, bool) {
	return e.fn(evt, e.arg, e.scratch[:0])
}

// Factory creates extractors from field names.
type Factory struct {
	defs map[string]*fieldDef
}

func NewFactory() *Factory {
	f := &Factory{defs: make(map[string]*fieldDef)}
	f.registerAll()
	return f
}

// FromFieldName resolves a field name at the given view depth and returns a
// fresh extractor for it. Field names may reference the depth with the
// %depth token (drill-down views) and may carry an argument suffix, e.g.
// evt.arg.fd.
func (f *Factory) FromFieldName(name string, viewDepth uint32) (Extractor, error) {
	name = strings.ReplaceAll(name, "%depth", strconv.FormatUint(uint64(viewDepth), 10))

	if def, ok := f.defs[name]; ok {
		return &fieldExtractor{info: def.info, fn: def.extract, scratch: make([]byte, 0, 16)}, nil
	}

	// Argument-taking fields: longest registered prefix wins.
	var best *fieldDef
	bestPrefix := ""
	for prefix, def := range f.defs {
		if def.hasArg && strings.HasPrefix(name, prefix+".") && len(prefix) > len(bestPrefix) {
			best, bestPrefix = def, prefix
		}
	}
	if best != nil {
		if arg := name[len(bestPrefix)+1:]; arg != "" {
			info := best.info
			info.Name = name
			return &fieldExtractor{info: info, arg: arg, fn: best.extract, scratch: make([]byte, 0, 16)}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
}

// FieldInfo returns the registered info for an exact field name.
func (f *Factory) FieldInfo(name string) (*FieldInfo, bool) {
	def, ok := f.defs[name]
	if !ok {
		return nil, false
	}
	return &def.info, true
}

func (f *Factory) register(info FieldInfo, hasArg bool, fn extractFunc) {
	f.defs[info.Name] = &fieldDef{info: info, hasArg: hasArg, extract: fn}
}
