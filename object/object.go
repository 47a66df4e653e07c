// Package object defines the runtime values of Roller and the operations
// defined directly on them.
package object

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/internal/ratio"
)

// ObjectType is a string representation of an object's type.
type ObjectType string

const (
	VOID_OBJ         ObjectType = "VOID"
	NONE_OBJ         ObjectType = "NONE"
	BOOLEAN_OBJ      ObjectType = "BOOLEAN"
	NUM_OBJ          ObjectType = "NUM"
	STRING_OBJ       ObjectType = "STRING"
	LIST_OBJ         ObjectType = "LIST"
	SET_OBJ          ObjectType = "SET"
	MAP_OBJ          ObjectType = "MAP"
	DISTRIBUTION_OBJ ObjectType = "DISTRIBUTION"
	FUNCTION_OBJ     ObjectType = "FUNCTION"

	// signals, never returned from an evaluation
	BREAK_OBJ    ObjectType = "BREAK"
	CONTINUE_OBJ ObjectType = "CONTINUE"
	ERROR_OBJ    ObjectType = "ERROR"
)

// Object is the interface that all runtime values implement.
type Object interface {
	// Type returns the type of the object.
	Type() ObjectType
	// Inspect returns a string representation of the object's value.
	Inspect() string
}

// --- Void Object ---

// Void is the result of expressions with no interesting value. It prints as nothing.
type Void struct{}

func (v *Void) Type() ObjectType { return VOID_OBJ }
func (v *Void) Inspect() string  { return "" }

// --- None Object ---

// None is an explicit empty value.
type None struct{}

func (n *None) Type() ObjectType { return NONE_OBJ }
func (n *None) Inspect() string  { return "none" }

// --- Boolean Object ---

// Boolean represents a boolean value.
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }

func (b *Boolean) Inspect() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// --- Num Object ---

// Num is an exact rational number.
type Num struct {
	Value ratio.Ratio
}

func (n *Num) Type() ObjectType { return NUM_OBJ }
func (n *Num) Inspect() string  { return n.Value.String() }

// NewInt returns the integer i as a Num.
func NewInt(i int64) *Num { return &Num{Value: ratio.Int(i)} }

// --- String Object ---

// String represents a string value.
type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }

// Inspect returns the string verbatim.
func (s *String) Inspect() string { return s.Value }

// Quote returns the string as a double-quoted literal that NewString reads back.
func (s *String) Quote() string {
	var out strings.Builder
	out.WriteByte('"')
	for _, ch := range s.Value {
		switch ch {
		case '\\':
			out.WriteString(`\\`)
		case '"':
			out.WriteString(`\"`)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case '\t':
			out.WriteString(`\t`)
		default:
			out.WriteRune(ch)
		}
	}
	out.WriteByte('"')
	return out.String()
}

// --- List Object ---

// List is an ordered sequence of values.
type List struct {
	Elements []Object
}

func (l *List) Type() ObjectType { return LIST_OBJ }

func (l *List) Inspect() string {
	var out bytes.Buffer
	out.WriteString("[")
	for i, e := range l.Elements {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(inspectNested(e))
	}
	out.WriteString("]")
	return out.String()
}

// --- Set Object ---

// Set is a collection of distinct values kept in Compare order.
type Set struct {
	elements *treeset.Set
}

// NewSet returns a set holding elems; duplicates collapse.
func NewSet(elems ...Object) *Set {
	s := &Set{elements: treeset.NewWith(Comparator)}
	for _, e := range elems {
		s.elements.Add(e)
	}
	return s
}

func (s *Set) Type() ObjectType { return SET_OBJ }

// Len returns the number of elements.
func (s *Set) Len() int { return s.elements.Size() }

// Contains reports whether e is an element.
func (s *Set) Contains(e Object) bool { return s.elements.Contains(e) }

// Elements returns the elements in order.
func (s *Set) Elements() []Object {
	values := s.elements.Values()
	out := make([]Object, len(values))
	for i, v := range values {
		out[i] = v.(Object)
	}
	return out
}

func (s *Set) Inspect() string {
	if s.Len() == 0 {
		return "{,}"
	}
	parts := make([]string, 0, s.Len())
	for _, e := range s.Elements() {
		parts = append(parts, inspectNested(e))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// --- Map Object ---

// Map maps values to values, ordered by key.
type Map struct {
	pairs *treemap.Map
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{pairs: treemap.NewWith(Comparator)}
}

func (m *Map) Type() ObjectType { return MAP_OBJ }

// Len returns the number of entries.
func (m *Map) Len() int { return m.pairs.Size() }

// Get looks up key.
func (m *Map) Get(key Object) (Object, bool) {
	v, ok := m.pairs.Get(key)
	if !ok {
		return nil, false
	}
	return v.(Object), true
}

// Put stores value under key. Maps reachable from a binding must not be
// written to; write to a Copy instead.
func (m *Map) Put(key, value Object) {
	m.pairs.Put(key, value)
}

// Keys returns the keys in order.
func (m *Map) Keys() []Object {
	keys := m.pairs.Keys()
	out := make([]Object, len(keys))
	for i, k := range keys {
		out[i] = k.(Object)
	}
	return out
}

// Each calls fn for every entry in key order.
func (m *Map) Each(fn func(key, value Object)) {
	m.pairs.Each(func(k, v interface{}) {
		fn(k.(Object), v.(Object))
	})
}

// Copy returns a shallow copy of m.
func (m *Map) Copy() *Map {
	c := NewMap()
	m.Each(c.Put)
	return c
}

func (m *Map) Inspect() string {
	parts := make([]string, 0, m.Len())
	m.Each(func(k, v Object) {
		parts = append(parts, inspectNested(k)+": "+inspectNested(v))
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// --- Distribution Object ---

// Distribution maps outcomes to positive integer weights. The probability of
// an outcome is its weight divided by Total. Package distribution holds the
// algorithms that build and combine distributions.
type Distribution struct {
	weights *treemap.Map
	total   uint64
}

// NewDistribution returns an empty distribution. An empty distribution is
// only valid while being built; see distribution.Builder.
func NewDistribution() *Distribution {
	return &Distribution{weights: treemap.NewWith(Comparator)}
}

func (d *Distribution) Type() ObjectType { return DISTRIBUTION_OBJ }

// AddWeight adds w to the weight of outcome. Zero weights are ignored.
// Like Map.Put it is only meant for distributions under construction.
func (d *Distribution) AddWeight(outcome Object, w uint64) error {
	if w == 0 {
		return nil
	}
	total := d.total + w
	if total < d.total {
		return NewError(ArithmeticError, "distribution weight overflow")
	}
	if old, ok := d.weights.Get(outcome); ok {
		w += old.(uint64)
	}
	d.weights.Put(outcome, w)
	d.total = total
	return nil
}

// Len returns the number of distinct outcomes.
func (d *Distribution) Len() int { return d.weights.Size() }

// Total returns the sum of all weights.
func (d *Distribution) Total() uint64 { return d.total }

// Weight returns the weight of outcome, 0 if absent.
func (d *Distribution) Weight(outcome Object) uint64 {
	if w, ok := d.weights.Get(outcome); ok {
		return w.(uint64)
	}
	return 0
}

// Outcomes returns the outcomes in order.
func (d *Distribution) Outcomes() []Object {
	keys := d.weights.Keys()
	out := make([]Object, len(keys))
	for i, k := range keys {
		out[i] = k.(Object)
	}
	return out
}

// Each calls fn for every outcome in order until fn returns false.
func (d *Distribution) Each(fn func(outcome Object, weight uint64) bool) {
	it := d.weights.Iterator()
	for it.Next() {
		if !fn(it.Key().(Object), it.Value().(uint64)) {
			return
		}
	}
}

func (d *Distribution) Inspect() string {
	parts := make([]string, 0, d.Len())
	d.Each(func(o Object, w uint64) bool {
		parts = append(parts, "("+inspectNested(o)+", "+strconv.FormatUint(w, 10)+")")
		return true
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// --- Function Object ---

// Function is a closure: parameter names, a body, and the scope snapshot
// captured where the function value was created.
type Function struct {
	Params []string
	Body   ast.Expr
	Env    *Environment
}

// NewFunction returns a validated function literal with no captured scope.
func NewFunction(params []string, body ast.Expr) (*Function, error) {
	fn := &Function{Params: params, Body: body}
	if err := fn.CheckValid(); err != nil {
		return nil, err
	}
	return fn, nil
}

// CheckValid reports the first parameter name that appears more than once.
func (f *Function) CheckValid() error {
	seen := make(map[string]struct{}, len(f.Params))
	for _, name := range f.Params {
		if _, dup := seen[name]; dup {
			return NewError(InvalidArg, "argument `%s` appeared more than once", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }

func (f *Function) Inspect() string {
	return "fn(" + strings.Join(f.Params, ", ") + ") " + f.Body.String()
}

// --- Signals ---

// BreakStatement represents a break statement. It's a singleton.
type BreakStatement struct{}

func (bs *BreakStatement) Type() ObjectType { return BREAK_OBJ }
func (bs *BreakStatement) Inspect() string  { return "break" }

// ContinueStatement represents a continue statement. It's a singleton.
type ContinueStatement struct{}

func (cs *ContinueStatement) Type() ObjectType { return CONTINUE_OBJ }
func (cs *ContinueStatement) Inspect() string  { return "continue" }

// --- Global Instances ---

// Pre-create global instances for common values to save allocations.
var (
	VOID     = &Void{}
	NONE     = &None{}
	TRUE     = &Boolean{Value: true}
	FALSE    = &Boolean{Value: false}
	BREAK    = &BreakStatement{}
	CONTINUE = &ContinueStatement{}
)

// NativeBool returns the TRUE or FALSE singleton.
func NativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// inspectNested renders a value inside a container, where strings are quoted.
func inspectNested(o Object) string {
	if s, ok := o.(*String); ok {
		return s.Quote()
	}
	return o.Inspect()
}
