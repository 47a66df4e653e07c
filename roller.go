// Package roller evaluates Roller scripts: dice expressions with exact
// rational arithmetic and probability distributions as first-class values.
package roller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"reflect"
	"sort"

	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/evaluator"
	"github.com/podhmo/roller/internal/ratio"
	"github.com/podhmo/roller/object"
	"github.com/podhmo/roller/parser"
)

// Interpreter is the main entry point for the Roller language.
// It holds the global scope, which persists across calls to Eval and
// EvalString.
type Interpreter struct {
	eval      *evaluator.Evaluator
	globalEnv *object.Environment

	logger  *slog.Logger
	rand    *rand.Rand
	stdout  io.Writer
	globals map[string]any
}

// Option is a functional option for configuring the Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger used by the evaluator.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// WithSeed makes every sampling of a distribution reproducible.
func WithSeed(seed int64) Option {
	return func(i *Interpreter) {
		i.rand = rand.New(rand.NewSource(seed))
	}
}

// WithRand sets the random source used to sample distributions.
// It overrides WithSeed.
func WithRand(r *rand.Rand) Option {
	return func(i *Interpreter) {
		i.rand = r
	}
}

// WithStdout sets where `print` writes.
func WithStdout(w io.Writer) Option {
	return func(i *Interpreter) {
		i.stdout = w
	}
}

// WithGlobals binds Go values in the global scope. Supported values are
// booleans, integers, floats, strings, slices, maps, nil and object.Object.
func WithGlobals(globals map[string]any) Option {
	return func(i *Interpreter) {
		for name, value := range globals {
			i.globals[name] = value
		}
	}
}

// NewInterpreter creates a new interpreter instance, configured with options.
func NewInterpreter(options ...Option) (*Interpreter, error) {
	i := &Interpreter{
		globalEnv: object.NewEnvironment(),
		stdout:    os.Stdout,
		globals:   map[string]any{},
	}
	for _, opt := range options {
		opt(i)
	}

	names := make([]string, 0, len(i.globals))
	for name := range i.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		val, err := FromGo(i.globals[name])
		if err != nil {
			return nil, fmt.Errorf("binding global %q: %w", name, err)
		}
		i.globalEnv.Set(name, val)
	}

	i.eval = evaluator.New(evaluator.Config{
		Logger: i.logger,
		Rand:   i.rand,
		Stdout: i.stdout,
	})
	return i, nil
}

// Eval evaluates a single expression tree in the global scope.
func (i *Interpreter) Eval(ctx context.Context, expr ast.Expr) (*Result, error) {
	val, err := i.eval.Evaluate(ctx, expr, i.globalEnv)
	if err != nil {
		return nil, err
	}
	return &Result{Value: val}, nil
}

// EvalString parses source as a program and evaluates its expressions in
// order. The result is the value of the last one; an empty program yields
// a void result.
func (i *Interpreter) EvalString(ctx context.Context, source string) (*Result, error) {
	exprs, err := parser.ParseProgram(source)
	if err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	result := &Result{Value: object.VOID}
	for _, expr := range exprs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err = i.Eval(ctx, expr)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Get returns the value bound to name in the global scope.
func (i *Interpreter) Get(name string) (object.Object, bool) {
	return i.globalEnv.Get(name)
}

// Names returns the globally bound names followed by the built-in function
// names, for completion.
func (i *Interpreter) Names() []string {
	return append(i.globalEnv.Names(), evaluator.BuiltinNames()...)
}

// Result holds the outcome of an evaluation.
type Result struct {
	Value object.Object
}

// String renders the value the way the REPL shows it.
func (r *Result) String() string {
	return r.Value.Inspect()
}

// As unmarshals the result into a Go variable. The target must be a
// non-nil pointer. Numbers go into integer kinds only when they are whole;
// sets become slices; distributions become maps from outcome to weight.
func (r *Result) As(target any) error {
	if target == nil {
		return fmt.Errorf("target cannot be nil")
	}
	dstVal := reflect.ValueOf(target)
	if dstVal.Kind() != reflect.Ptr || dstVal.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, but got %T", target)
	}
	return unmarshal(r.Value, dstVal.Elem())
}

func unmarshal(src object.Object, dst reflect.Value) error {
	if !dst.CanSet() {
		return fmt.Errorf("cannot set destination value of type %s", dst.Type())
	}
	for dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		dst = dst.Elem()
	}
	switch s := src.(type) {
	case *object.None, *object.Void:
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	case *object.Num:
		return unmarshalNum(s.Value, dst)
	case *object.String:
		switch dst.Kind() {
		case reflect.String:
			dst.SetString(s.Value)
		case reflect.Interface:
			dst.Set(reflect.ValueOf(s.Value))
		default:
			return fmt.Errorf("cannot unmarshal string into %s", dst.Type())
		}
		return nil
	case *object.Boolean:
		switch dst.Kind() {
		case reflect.Bool:
			dst.SetBool(s.Value)
		case reflect.Interface:
			dst.Set(reflect.ValueOf(s.Value))
		default:
			return fmt.Errorf("cannot unmarshal boolean into %s", dst.Type())
		}
		return nil
	case *object.List:
		return unmarshalSlice("list", s.Elements, dst)
	case *object.Set:
		return unmarshalSlice("set", s.Elements(), dst)
	case *object.Map:
		newMap, err := makeMap("map", dst)
		if err != nil {
			return err
		}
		s.Each(func(k, v object.Object) {
			if err == nil {
				err = setMapIndex(newMap, k, v)
			}
		})
		if err != nil {
			return err
		}
		dst.Set(newMap)
		return nil
	case *object.Distribution:
		newMap, err := makeMap("distribution", dst)
		if err != nil {
			return err
		}
		s.Each(func(o object.Object, w uint64) bool {
			if w > math.MaxInt64 {
				err = fmt.Errorf("weight %d of %s does not fit in int64", w, o.Inspect())
				return false
			}
			err = setMapIndex(newMap, o, object.NewInt(int64(w)))
			return err == nil
		})
		if err != nil {
			return err
		}
		dst.Set(newMap)
		return nil
	default:
		return fmt.Errorf("unsupported object type for unmarshaling: %s", src.Type())
	}
}

func unmarshalNum(r ratio.Ratio, dst reflect.Value) error {
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !r.IsInteger() {
			return fmt.Errorf("cannot unmarshal fraction %s into %s", r, dst.Type())
		}
		if dst.OverflowInt(r.Numer()) {
			return fmt.Errorf("%s overflows %s", r, dst.Type())
		}
		dst.SetInt(r.Numer())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !r.IsInteger() || r.Sign() < 0 {
			return fmt.Errorf("cannot unmarshal %s into %s", r, dst.Type())
		}
		if dst.OverflowUint(uint64(r.Numer())) {
			return fmt.Errorf("%s overflows %s", r, dst.Type())
		}
		dst.SetUint(uint64(r.Numer()))
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(r.Float64())
	case reflect.Interface:
		if r.IsInteger() {
			dst.Set(reflect.ValueOf(r.Numer()))
		} else {
			dst.Set(reflect.ValueOf(r.Float64()))
		}
	default:
		return fmt.Errorf("cannot unmarshal number into %s", dst.Type())
	}
	return nil
}

func unmarshalSlice(kind string, elems []object.Object, dst reflect.Value) error {
	sliceType := dst.Type()
	switch dst.Kind() {
	case reflect.Interface:
		sliceType = reflect.TypeOf([]any(nil))
	case reflect.Slice:
	default:
		return fmt.Errorf("cannot unmarshal %s into non-slice type %s", kind, dst.Type())
	}
	newSlice := reflect.MakeSlice(sliceType, len(elems), len(elems))
	for i, elem := range elems {
		if err := unmarshal(elem, newSlice.Index(i)); err != nil {
			return fmt.Errorf("error in %s element %d: %w", kind, i, err)
		}
	}
	dst.Set(newSlice)
	return nil
}

// makeMap returns an empty map to unmarshal into dst; map[any]any when dst
// is an interface.
func makeMap(kind string, dst reflect.Value) (reflect.Value, error) {
	switch dst.Kind() {
	case reflect.Interface:
		return reflect.ValueOf(map[any]any{}), nil
	case reflect.Map:
		return reflect.MakeMap(dst.Type()), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot unmarshal %s into non-map type %s", kind, dst.Type())
}

func setMapIndex(m reflect.Value, k, v object.Object) error {
	key := reflect.New(m.Type().Key()).Elem()
	if err := unmarshal(k, key); err != nil {
		return fmt.Errorf("error in map key: %w", err)
	}
	if !key.Comparable() {
		return fmt.Errorf("map key %s cannot be a Go map key", k.Inspect())
	}
	val := reflect.New(m.Type().Elem()).Elem()
	if err := unmarshal(v, val); err != nil {
		return fmt.Errorf("error in map value for key %s: %w", k.Inspect(), err)
	}
	m.SetMapIndex(key, val)
	return nil
}

// FromGo converts a Go value into a Roller value.
func FromGo(v any) (object.Object, error) {
	if v == nil {
		return object.NONE, nil
	}
	if obj, ok := v.(object.Object); ok {
		return obj, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return object.NativeBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return object.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", rv.Uint())
		}
		return object.NewInt(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		r, err := ratio.FromFloat(rv.Float())
		if err != nil {
			return nil, fmt.Errorf("converting %v: %w", v, err)
		}
		return &object.Num{Value: r}, nil
	case reflect.String:
		return &object.String{Value: rv.String()}, nil
	case reflect.Slice, reflect.Array:
		elems := make([]object.Object, rv.Len())
		for i := range elems {
			elem, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = elem
		}
		return &object.List{Elements: elems}, nil
	case reflect.Map:
		m := object.NewMap()
		iter := rv.MapRange()
		for iter.Next() {
			k, err := FromGo(iter.Key().Interface())
			if err != nil {
				return nil, fmt.Errorf("map key: %w", err)
			}
			val, err := FromGo(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("map value for key %v: %w", iter.Key(), err)
			}
			m.Put(k, val)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported Go type %T", v)
}
