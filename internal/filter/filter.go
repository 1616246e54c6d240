// Package filter compiles boolean field expressions into predicates over
// events. Expressions support comparisons (=, !=, <, <=, >, >=, contains,
// icontains), and/or/not, and parentheses:
//
//	proc.name = cat and (evt.buflen > 100 or fd.l4proto = 6)
//
// Compilation resolves field names through the injected extractor factory,
// so a compiled filter is bound to the same field set as the tables.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evtop/evtop/internal/event"
	"github.com/evtop/evtop/internal/extract"
	"github.com/evtop/evtop/internal/fieldtype"
)

// Filter is a compiled predicate.
type Filter interface {
	Run(evt event.Event) bool
}

// ErrSyntax reports a malformed filter expression.
var ErrSyntax = errors.New("filter syntax error")

// Compiler turns expressions into filters.
type Compiler struct {
	factory *extract.Factory
}

func NewCompiler(factory *extract.Factory) *Compiler {
	return &Compiler{factory: factory}
}

// Compile parses the expression and binds its field references.
func (c *Compiler) Compile(expr string) (Filter, error) {
	p := &parser{compiler: c, tokens: tokenize(expr)}
	f, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, p.peek())
	}
	return f, nil
}

type andFilter struct{ left, right Filter }

func (f *andFilter) Run(evt event.Event) bool { return f.left.Run(evt) && f.right.Run(evt) }

type orFilter struct{ left, right Filter }

func (f *orFilter) Run(evt event.Event) bool { return f.left.Run(evt) || f.right.Run(evt) }

type notFilter struct{ inner Filter }

func (f *notFilter) Run(evt event.Event) bool { return !f.inner.Run(evt) }

type compareOp uint8

const (
	opEq compareOp = iota
	opNe
	opLt
	opLe
	opGt
	opGe
	opContains
	opIcontains
)

type comparison struct {
	extractor extract.Extractor
	kind      fieldtype.Kind
	op        compareOp
	rhs       []byte // typed encoding of the right-hand side
	rhsText   string // original text, for contains matching
}

func (f *comparison) Run(evt event.Event) bool {
	raw, ok := f.extractor.Extract(evt)
	if !ok {
		return false
	}

	switch f.op {
	case opContains:
		return strings.Contains(asText(f.kind, raw), f.rhsText)
	case opIcontains:
		return strings.Contains(strings.ToLower(asText(f.kind, raw)), strings.ToLower(f.rhsText))
	}

	cmp := fieldtype.Compare(f.kind, raw, f.rhs)
	switch f.op {
	case opEq:
		return cmp == 0
	case opNe:
		return cmp != 0
	case opLt:
		return cmp < 0
	case opLe:
		return cmp <= 0
	case opGt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

func asText(k fieldtype.Kind, raw []byte) string {
	if k == fieldtype.KindCharBuf && len(raw) > 0 {
		return string(raw[:len(raw)-1])
	}
	return string(raw)
}
