// Package rollertest provides helpers for tests that build expression trees
// by hand or run Roller scripts.
package rollertest

import (
	"context"
	"testing"

	"github.com/podhmo/roller"
	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/internal/ratio"
	"github.com/podhmo/roller/object"
)

// Seed is the seed Run uses unless options override it.
const Seed = 1

// Int returns an integer literal.
func Int(n int64) *ast.Val { return &ast.Val{Value: object.NewInt(n)} }

// Frac returns the literal n/d.
func Frac(n, d int64) *ast.Val { return &ast.Val{Value: &object.Num{Value: ratio.MustNew(n, d)}} }

// Str returns a string literal.
func Str(s string) *ast.Val { return &ast.Val{Value: &object.String{Value: s}} }

// Bool returns a boolean literal.
func Bool(b bool) *ast.Val { return &ast.Val{Value: object.NativeBool(b)} }

// Id returns a reference to name.
func Id(name string) *ast.Id { return &ast.Id{Name: name} }

// Let returns `let name = value`.
func Let(name string, value ast.Expr) *ast.Decl { return &ast.Decl{Name: name, Value: value} }

// Op applies a built-in operator.
func Op(code ast.OpCode, args ...ast.Expr) *ast.Op { return ast.NewCall(code, args...) }

// Call calls the function bound to name with positional arguments.
func Call(name string, args ...ast.Expr) *ast.Op { return ast.NewNamedCall(name, args, nil) }

// Dice returns the literal count d sides.
func Dice(count, sides int64) *ast.Op { return ast.NewCall(ast.OpDice, Int(count), Int(sides)) }

// Fn returns a function literal. It fails the test on duplicate parameters.
func Fn(t testing.TB, params []string, body ast.Expr) *ast.Val {
	t.Helper()
	fn, err := object.NewFunction(params, body)
	if err != nil {
		t.Fatalf("NewFunction(%v) failed: %v", params, err)
	}
	return &ast.Val{Value: fn}
}

// New returns an interpreter seeded with Seed, configured with options.
func New(t testing.TB, options ...roller.Option) *roller.Interpreter {
	t.Helper()
	opts := append([]roller.Option{roller.WithSeed(Seed)}, options...)
	interp, err := roller.NewInterpreter(opts...)
	if err != nil {
		t.Fatalf("NewInterpreter failed: %v", err)
	}
	return interp
}

// Run evaluates src in a fresh interpreter and returns its result. It fails
// the test on any error.
func Run(t testing.TB, src string, options ...roller.Option) object.Object {
	t.Helper()
	result, err := New(t, options...).EvalString(context.Background(), src)
	if err != nil {
		t.Fatalf("EvalString(%q) failed: %v", src, err)
	}
	return result.Value
}

// RunError evaluates src in a fresh interpreter and returns the error it
// must produce.
func RunError(t testing.TB, src string, options ...roller.Option) error {
	t.Helper()
	result, err := New(t, options...).EvalString(context.Background(), src)
	if err == nil {
		t.Fatalf("EvalString(%q) = %s, want an error", src, result.Value.Inspect())
	}
	return err
}
